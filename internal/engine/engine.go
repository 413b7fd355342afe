// Package engine translates a parsed configuration into a running graph of
// topics, processors, sources and sinks (spec.md §4.5), and applies
// SIGHUP-driven live reconfiguration to that graph (spec.md §4.6).
package engine

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/solomatovs/gauss/internal/apiserver"
	"github.com/solomatovs/gauss/internal/config"
	"github.com/solomatovs/gauss/internal/logging"
	"github.com/solomatovs/gauss/internal/pipeline"
	"github.com/solomatovs/gauss/internal/pluginhost"
	"github.com/solomatovs/gauss/internal/record"
	"github.com/solomatovs/gauss/internal/topic"
)

// DrainTimeout is the fixed drain window the bootstrap waits after
// cancellation before aborting stragglers (spec.md §4.5 step 7).
const DrainTimeout = 5 * time.Second

// Engine owns every live component the bootstrap assembled: the plugin
// host, the topic registry, running processor/source/sink tasks, and the
// shared shutdown token.
type Engine struct {
	host     *pluginhost.Host
	registry *topic.Registry

	mu            sync.Mutex
	formats          map[string]pipeline.FormatSerializer
	formatHandles    map[string]*pluginhost.Handle
	storageHandles   map[string]*pluginhost.Handle
	processors       map[string]*processorEntry
	processorHandles map[string]*pluginhost.Handle
	sources          map[string]*taskEntry
	sinks            map[string]*taskEntry

	cron *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cfg *config.Engine
}

// taskEntry tracks one running source/sink's cancellation and the
// effective EndpointConfig it was started from, for reload diffing.
type taskEntry struct {
	cfg    config.EndpointConfig
	cancel context.CancelFunc
	done   chan struct{}
}

// processorEntry tracks one running processor task.
type processorEntry struct {
	cfg    config.ProcessorConfig
	cancel context.CancelFunc
	done   chan struct{}
}

// Bootstrap assembles a running Engine from cfg, in the dependency order
// spec.md §4.5 prescribes: formats, topics, processors, sinks, sources,
// the API server.
func Bootstrap(cfg *config.Engine) (*Engine, error) {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		host:           pluginhost.NewHost(),
		registry:       topic.NewRegistry(),
		formats:          make(map[string]pipeline.FormatSerializer),
		formatHandles:    make(map[string]*pluginhost.Handle),
		storageHandles:   make(map[string]*pluginhost.Handle),
		processors:       make(map[string]*processorEntry),
		processorHandles: make(map[string]*pluginhost.Handle),
		sources:          make(map[string]*taskEntry),
		sinks:            make(map[string]*taskEntry),
		ctx:            ctx,
		cancel:         cancel,
	}

	log := logging.Component("engine")

	for _, f := range cfg.Formats {
		if err := e.loadFormat(f); err != nil {
			cancel()
			return nil, err
		}
	}

	for _, t := range cfg.Topics {
		if err := e.registerTopic(t); err != nil {
			cancel()
			return nil, err
		}
	}

	for _, p := range cfg.Processors {
		if err := e.startProcessor(p); err != nil {
			cancel()
			return nil, err
		}
	}

	for _, s := range cfg.Sinks {
		if err := e.startSink(s); err != nil {
			cancel()
			return nil, err
		}
	}

	for _, s := range cfg.Sources {
		if err := e.startSource(s); err != nil {
			cancel()
			return nil, err
		}
	}

	overflow := parseOverflow(cfg.WSOverflow, topic.Drop)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		apiserver.Serve(ctx, e.registry, cfg.APIPort, cfg.WSBuffer, overflow)
	}()

	e.cron = cron.New()
	if _, err := e.cron.AddFunc("@every 30s", func() {
		for _, err := range e.registry.FlushAll() {
			log.Warn().Err(err).Msg("periodic topic flush failed")
		}
	}); err != nil {
		log.Warn().Err(err).Msg("failed to schedule periodic flush job")
	}
	e.cron.Start()

	e.cfg = cfg
	log.Info().Int("topics", len(cfg.Topics)).Int("processors", len(cfg.Processors)).
		Int("sources", len(cfg.Sources)).Int("sinks", len(cfg.Sinks)).Msg("engine bootstrapped")
	return e, nil
}

func (e *Engine) loadFormat(f config.FormatConfig) error {
	ser, handle, err := pluginhost.LoadTyped[pipeline.FormatSerializer](e.host, pluginhost.KindFormatSerializer, f.Plugin, f.Config)
	if err != nil {
		return err
	}
	e.formats[f.Name] = ser
	e.formatHandles[f.Name] = handle
	return nil
}

func (e *Engine) registerTopic(t config.TopicConfig) error {
	var schema *record.Schema
	if ser, ok := e.formats[t.Format]; ok {
		schema = ser.Schema()
	}

	storage, handle, err := pluginhost.LoadTyped[topic.Storage](e.host, pluginhost.KindTopicStorage, t.Storage, t.StorageConfig)
	if err != nil {
		return err
	}

	tp, err := topic.New(t.Name, t.Format, schema, storage)
	if err != nil {
		return err
	}
	if err := e.registry.Register(tp); err != nil {
		return err
	}
	e.storageHandles[t.Name] = handle
	return nil
}

// Registry exposes the topic registry for the API server collaborator.
func (e *Engine) Registry() *topic.Registry { return e.registry }

// Run blocks until ctx is cancelled (normally by the caller's signal
// handler), then drains the engine (spec.md §4.5 step 7).
func (e *Engine) Run(ctx context.Context) {
	<-ctx.Done()
	e.Shutdown()
}

// Shutdown cancels the shared token, waits up to DrainTimeout for every
// spawned task to stop, flushes every topic's storage, then unloads every
// processor, format, storage and plugin source/sink handle, best-effort.
// Plugin sinks get no flush call of their own; their handles are only
// unloaded.
func (e *Engine) Shutdown() {
	log := logging.Component("engine")
	e.cancel()

	if e.cron != nil {
		cronCtx := e.cron.Stop()
		<-cronCtx.Done()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(DrainTimeout):
		log.Warn().Msg("drain timeout exceeded, some tasks may still be running")
	}

	for _, err := range e.registry.FlushAll() {
		log.Warn().Err(err).Msg("topic flush failed during shutdown")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, h := range e.processorHandles {
		_ = e.host.Unload(h)
	}
	for _, h := range e.formatHandles {
		_ = e.host.Unload(h)
	}
	for _, h := range e.storageHandles {
		_ = e.host.Unload(h)
	}
	log.Info().Msg("engine shutdown complete")
}

func parseOverflow(s string, fallback topic.OverflowPolicy) topic.OverflowPolicy {
	switch s {
	case string(topic.Drop):
		return topic.Drop
	case string(topic.BackPressure):
		return topic.BackPressure
	default:
		return fallback
	}
}

// processorKey returns the canonical identity the hot-reload diff uses to
// match a processor across configs, since spec.md's processors[] carries no
// explicit name — two processor entries are "the same" iff this key
// matches (plugin path, config subtree, trigger topic, buffer/overflow).
func processorKey(p config.ProcessorConfig) string {
	cfgJSON, _ := json.Marshal(p.Config)
	return p.Plugin + "|" + p.Trigger + "|" + string(cfgJSON) + "|" + strconv.Itoa(p.Buffer) + "|" + p.Overflow
}

func endpointKey(ep config.EndpointConfig) string {
	return ep.Name
}
