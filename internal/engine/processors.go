package engine

import (
	"context"

	"github.com/solomatovs/gauss/internal/config"
	"github.com/solomatovs/gauss/internal/logging"
	"github.com/solomatovs/gauss/internal/perr"
	"github.com/solomatovs/gauss/internal/pluginhost"
	"github.com/solomatovs/gauss/internal/processor"
	"github.com/solomatovs/gauss/internal/topic"
)

// startProcessor subscribes to p's trigger topic and spawns the processor's
// run loop (spec.md §4.4 Lifecycle). The entry is tracked under its
// canonical key so Reload can diff it against a future configuration.
func (e *Engine) startProcessor(p config.ProcessorConfig) error {
	trigger, ok := e.registry.Get(p.Trigger)
	if !ok {
		return perr.Config(p.Trigger, "processor trigger topic not found")
	}

	proc, handle, err := pluginhost.LoadTyped[processor.Processor](e.host, pluginhost.KindProcessor, p.Plugin, p.Config)
	if err != nil {
		return err
	}

	overflow := parseOverflow(p.Overflow, topic.BackPressure)
	sub := trigger.Subscribe(p.Buffer, overflow)

	ctx, cancel := context.WithCancel(e.ctx)
	runner := &processor.Runner{
		Name:         p.Plugin,
		SourceTopic:  p.Trigger,
		Subscription: sub,
		Processor:    proc,
		Ctx: processor.Context{
			Publisher: registryPublisher{e.registry},
			Codec:     jsonCodec{e.registry},
			Inspector: registryInspector{e.registry},
		},
	}

	done := make(chan struct{})
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(done)
		runner.Run(ctx)
	}()

	key := processorKey(p)
	e.mu.Lock()
	e.processors[key] = &processorEntry{cfg: p, cancel: cancel, done: done}
	e.processorHandles[key] = handle
	e.mu.Unlock()

	logging.Component("engine").Info().Str("plugin", p.Plugin).Str("trigger", p.Trigger).Msg("processor started")
	return nil
}

// stopProcessor cancels a running processor and waits for its run loop to
// exit; the wait has no timeout.
func (e *Engine) stopProcessor(key string) {
	e.mu.Lock()
	entry, ok := e.processors[key]
	if ok {
		delete(e.processors, key)
	}
	handle := e.processorHandles[key]
	delete(e.processorHandles, key)
	e.mu.Unlock()
	if !ok {
		return
	}
	entry.cancel()
	<-entry.done
	if handle != nil {
		_ = e.host.Unload(handle)
	}
}
