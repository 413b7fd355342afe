package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solomatovs/gauss/internal/config"
	"github.com/solomatovs/gauss/internal/pipeline"
	"github.com/solomatovs/gauss/internal/pluginhost"
	"github.com/solomatovs/gauss/internal/topic"

	_ "github.com/solomatovs/gauss/plugins/format/json"
	_ "github.com/solomatovs/gauss/plugins/processor/symbolfilter"
	_ "github.com/solomatovs/gauss/plugins/storage/memory"
)

// newTestEngine builds an Engine without going through Bootstrap, so tests
// can exercise topic/processor wiring without binding a real API port.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		host:             pluginhost.NewHost(),
		registry:         topic.NewRegistry(),
		formats:          make(map[string]pipeline.FormatSerializer),
		formatHandles:    make(map[string]*pluginhost.Handle),
		storageHandles:   make(map[string]*pluginhost.Handle),
		processors:       make(map[string]*processorEntry),
		processorHandles: make(map[string]*pluginhost.Handle),
		sources:          make(map[string]*taskEntry),
		sinks:            make(map[string]*taskEntry),
		ctx:              ctx,
		cancel:           cancel,
	}
	t.Cleanup(cancel)

	require.NoError(t, e.loadFormat(config.FormatConfig{Name: "f", Plugin: "json"}))
	return e
}

func TestRegisterTopicAndReloadAdditiveOnly(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.registerTopic(config.TopicConfig{Name: "ticks", Storage: "memory", Format: "f"}))

	require.NoError(t, e.reloadTopics([]config.TopicConfig{
		{Name: "ticks", Storage: "memory", Format: "f"},
		{Name: "derived", Storage: "memory", Format: "f"},
	}))
	_, ok := e.registry.Get("derived")
	require.True(t, ok, "reload should have added the new topic")

	err := e.reloadTopics([]config.TopicConfig{{Name: "derived", Storage: "memory", Format: "f"}})
	require.Error(t, err, "reload must reject dropping an existing topic")
}

func TestReconfigureTopicStorageRejectsPluginChange(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.registerTopic(config.TopicConfig{Name: "ticks", Storage: "memory", Format: "f"}))
	tp, _ := e.registry.Get("ticks")

	err := e.reconfigureTopicStorage(tp, config.TopicConfig{Name: "ticks", Storage: "postgres", Format: "f"})
	require.Error(t, err)
}

func TestReconfigureTopicStorageRejectsFrozenParamChange(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.registerTopic(config.TopicConfig{
		Name: "ticks", Storage: "memory", Format: "f",
		StorageConfig: map[string]any{"capacity": 100},
	}))
	tp, _ := e.registry.Get("ticks")

	err := e.reconfigureTopicStorage(tp, config.TopicConfig{
		Name: "ticks", Storage: "memory", Format: "f",
		StorageConfig: map[string]any{"capacity": 200},
	})
	require.Error(t, err, "capacity is a postmaster-context param and must not change across reload")
}

func TestProcessorLifecycleStartReloadStop(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.registerTopic(config.TopicConfig{Name: "in", Storage: "memory", Format: "f"}))
	require.NoError(t, e.registerTopic(config.TopicConfig{Name: "out", Storage: "memory", Format: "f"}))

	p := config.ProcessorConfig{
		Plugin:  "symbol_filter",
		Trigger: "in",
		Config:  map[string]any{"symbols": "AAPL", "target_topic": "out"},
	}
	require.NoError(t, e.startProcessor(p))

	key := processorKey(p)
	e.mu.Lock()
	_, running := e.processors[key]
	e.mu.Unlock()
	require.True(t, running)

	// Reload with the identical processor config must leave it running
	// untouched rather than stop/restart it.
	require.NoError(t, e.reloadProcessors([]config.ProcessorConfig{p}))
	e.mu.Lock()
	entryAfter, stillRunning := e.processors[key]
	e.mu.Unlock()
	require.True(t, stillRunning)
	require.NotNil(t, entryAfter)

	// Reload with an empty processor list stops it.
	require.NoError(t, e.reloadProcessors(nil))
	e.mu.Lock()
	_, goneAfterReload := e.processors[key]
	e.mu.Unlock()
	require.False(t, goneAfterReload)
}

func TestProcessorKeyChangesWithConfig(t *testing.T) {
	a := config.ProcessorConfig{Plugin: "symbol_filter", Trigger: "in", Config: map[string]any{"symbols": "AAPL"}}
	b := config.ProcessorConfig{Plugin: "symbol_filter", Trigger: "in", Config: map[string]any{"symbols": "MSFT"}}
	require.NotEqual(t, processorKey(a), processorKey(b))
	require.Equal(t, processorKey(a), processorKey(a))
}

func TestCheckEndpointsUnchangedDetectsAddRemoveModify(t *testing.T) {
	e := newTestEngine(t)

	running := map[string]*taskEntry{
		"src-a": {cfg: config.EndpointConfig{Name: "src-a", Transport: "tcp"}},
	}

	// Identical config: no error.
	require.NoError(t, e.checkEndpointsUnchanged("source", running, []config.EndpointConfig{
		{Name: "src-a", Transport: "tcp"},
	}))

	// Changed config: error.
	require.Error(t, e.checkEndpointsUnchanged("source", running, []config.EndpointConfig{
		{Name: "src-a", Transport: "nats"},
	}))

	// Removed: error.
	require.Error(t, e.checkEndpointsUnchanged("source", running, nil))

	// Added: error.
	require.Error(t, e.checkEndpointsUnchanged("source", running, []config.EndpointConfig{
		{Name: "src-a", Transport: "tcp"},
		{Name: "src-b", Transport: "tcp"},
	}))
}

func TestParseOverflowFallsBackOnUnknown(t *testing.T) {
	require.Equal(t, topic.Drop, parseOverflow("drop", topic.BackPressure))
	require.Equal(t, topic.BackPressure, parseOverflow("back-pressure", topic.Drop))
	require.Equal(t, topic.BackPressure, parseOverflow("bogus", topic.BackPressure))
}

func TestShutdownUnloadsHandlesAndFlushesTopics(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.registerTopic(config.TopicConfig{Name: "ticks", Storage: "memory", Format: "f"}))

	e.Shutdown()

	_, ok := e.registry.Get("ticks")
	require.True(t, ok, "shutdown must not deregister topics, only flush and unload plugin handles")
}
