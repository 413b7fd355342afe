package engine

import (
	"context"

	"github.com/solomatovs/gauss/internal/config"
	"github.com/solomatovs/gauss/internal/logging"
	"github.com/solomatovs/gauss/internal/perr"
	"github.com/solomatovs/gauss/internal/pipeline"
	"github.com/solomatovs/gauss/internal/pluginhost"
	"github.com/solomatovs/gauss/internal/topic"
)

// startSource spawns one source endpoint, either as a self-driven plugin
// (TopicSource) or as a composed transport/framing/middleware/codec
// pipeline (spec.md §4.5 step 5).
func (e *Engine) startSource(s config.EndpointConfig) error {
	t, ok := e.registry.Get(s.Topic)
	if !ok {
		return perr.Config(s.Topic, "source target topic not found")
	}

	ctx, cancel := context.WithCancel(e.ctx)
	done := make(chan struct{})

	if s.IsPluginMode() {
		src, handle, err := pluginhost.LoadTyped[pipeline.TopicSource](e.host, pluginhost.KindTopicSource, s.Plugin, s.PluginConfig)
		if err != nil {
			cancel()
			return err
		}
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			defer close(done)
			if err := pipeline.RunPluginSource(ctx, src, t); err != nil {
				logging.Component("engine").Warn().Err(err).Str("source", s.Name).Msg("plugin source exited with error")
			}
		}()
		e.trackSource(s, cancel, done, handle)
		return nil
	}

	endpoint, handles, err := buildEndpoint(e.host, s)
	if err != nil {
		cancel()
		return err
	}

	overflow := parseOverflow(s.Overflow, topic.BackPressure)
	connOverflow := parseOverflow(s.ConnOverflow, topic.BackPressure)
	cfg := pipeline.SourceConfig{
		Name:         s.Name,
		Endpoint:     endpoint,
		Buffer:       s.Buffer,
		Overflow:     overflow,
		ConnBuffer:   s.ConnBuffer,
		ConnOverflow: connOverflow,
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(done)
		defer handles.unload(e.host)
		if err := pipeline.RunPipelineSource(ctx, cfg, t); err != nil {
			logging.Component("engine").Warn().Err(err).Str("source", s.Name).Msg("pipeline source exited with error")
		}
	}()
	e.trackSource(s, cancel, done, nil)
	return nil
}

// startSink spawns one sink endpoint. Plugin-mode sinks subscribe to only
// the first topic named in Topics: pipeline.RunPluginSink takes a single
// *topic.Subscription, and that type cannot be synthesized outside
// internal/topic to fan in several topics for a self-driven plugin.
// Pipeline-mode sinks have no such limit — RunPipelineSink feeds its
// broadcaster from every configured topic.
func (e *Engine) startSink(s config.EndpointConfig) error {
	var topics []*topic.Topic
	for _, name := range s.Topics {
		t, ok := e.registry.Get(name)
		if !ok {
			return perr.Config(name, "sink target topic not found")
		}
		topics = append(topics, t)
	}
	if len(topics) == 0 {
		return perr.Config(s.Name, "sink declares no topics")
	}

	ctx, cancel := context.WithCancel(e.ctx)
	done := make(chan struct{})

	if s.IsPluginMode() {
		sink, handle, err := pluginhost.LoadTyped[pipeline.TopicSink](e.host, pluginhost.KindSink, s.Plugin, s.PluginConfig)
		if err != nil {
			cancel()
			return err
		}
		overflow := parseOverflow(s.Overflow, topic.BackPressure)
		sub := topics[0].Subscribe(s.Buffer, overflow)

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			defer close(done)
			defer sub.Close()
			if err := pipeline.RunPluginSink(ctx, sink, sub); err != nil {
				logging.Component("engine").Warn().Err(err).Str("sink", s.Name).Msg("plugin sink exited with error")
			}
		}()
		e.trackSink(s, cancel, done, handle)
		return nil
	}

	endpoint, handles, err := buildEndpoint(e.host, s)
	if err != nil {
		cancel()
		return err
	}

	overflow := parseOverflow(s.Overflow, topic.BackPressure)
	connOverflow := parseOverflow(s.ConnOverflow, topic.BackPressure)
	cfg := pipeline.SinkConfig{
		Name:         s.Name,
		Endpoint:     endpoint,
		Buffer:       s.Buffer,
		Overflow:     overflow,
		ConnBuffer:   s.ConnBuffer,
		ConnOverflow: connOverflow,
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(done)
		defer handles.unload(e.host)
		if err := pipeline.RunPipelineSink(ctx, cfg, topics); err != nil {
			logging.Component("engine").Warn().Err(err).Str("sink", s.Name).Msg("pipeline sink exited with error")
		}
	}()
	e.trackSink(s, cancel, done, nil)
	return nil
}

func (e *Engine) trackSource(s config.EndpointConfig, cancel context.CancelFunc, done chan struct{}, handle *pluginhost.Handle) {
	key := endpointKey(s)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sources[key] = &taskEntry{cfg: s, cancel: cancel, done: done}
	if handle != nil {
		e.storageHandles["source:"+key] = handle
	}
	logging.Component("engine").Info().Str("source", s.Name).Msg("source started")
}

func (e *Engine) trackSink(s config.EndpointConfig, cancel context.CancelFunc, done chan struct{}, handle *pluginhost.Handle) {
	key := endpointKey(s)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks[key] = &taskEntry{cfg: s, cancel: cancel, done: done}
	if handle != nil {
		e.storageHandles["sink:"+key] = handle
	}
	logging.Component("engine").Info().Str("sink", s.Name).Msg("sink started")
}

// stopTask cancels a tracked source or sink task and waits for it to exit.
func stopTask(entries map[string]*taskEntry, key string) {
	entry, ok := entries[key]
	if !ok {
		return
	}
	delete(entries, key)
	entry.cancel()
	<-entry.done
}
