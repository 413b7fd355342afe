package engine

import (
	"encoding/json"
	"fmt"

	"github.com/solomatovs/gauss/internal/config"
	"github.com/solomatovs/gauss/internal/logging"
	"github.com/solomatovs/gauss/internal/perr"
	"github.com/solomatovs/gauss/internal/pluginhost"
	"github.com/solomatovs/gauss/internal/topic"
)

// Reload applies a freshly parsed configuration to the running engine, on
// receipt of SIGHUP (spec.md §4.6). Steps run in order and the first rule
// violation aborts the reload; changes made by earlier steps (such as newly
// registered topics) stay in place. Topics are additive-only, a changed
// source/sink fails the reload with a diagnostic, and topic storage
// reconfiguration is rejected if any postmaster-context parameter would
// change. Processors are diffed by their canonical key and started/stopped
// accordingly.
func (e *Engine) Reload(cfg *config.Engine) error {
	log := logging.Component("engine")

	if err := e.reloadTopics(cfg.Topics); err != nil {
		return err
	}
	if err := e.checkEndpointsUnchanged("source", e.sources, cfg.Sources); err != nil {
		return err
	}
	if err := e.checkEndpointsUnchanged("sink", e.sinks, cfg.Sinks); err != nil {
		return err
	}
	if err := e.reloadProcessors(cfg.Processors); err != nil {
		return err
	}

	e.cfg = cfg
	log.Info().Msg("reload applied")
	return nil
}

// reloadTopics registers any newly declared topic and reconfigures storage
// for existing ones; it refuses an attempt to remove a topic outright.
func (e *Engine) reloadTopics(topics []config.TopicConfig) error {
	seen := make(map[string]bool, len(topics))
	for _, t := range topics {
		seen[t.Name] = true

		existing, ok := e.registry.Get(t.Name)
		if !ok {
			if err := e.registerTopic(t); err != nil {
				return err
			}
			continue
		}
		if err := e.reconfigureTopicStorage(existing, t); err != nil {
			return err
		}
	}

	for _, name := range e.registry.Names() {
		if !seen[name] {
			return perr.Config(name, "reload cannot delete an existing topic")
		}
	}
	return nil
}

// reconfigureTopicStorage rejects a storage plugin swap (requires restart)
// and any postmaster-context parameter change, then applies the sighup
// subset to the live storage instance.
func (e *Engine) reconfigureTopicStorage(t *topic.Topic, cfg config.TopicConfig) error {
	e.mu.Lock()
	handle, ok := e.storageHandles[cfg.Name]
	e.mu.Unlock()
	if !ok {
		return nil
	}
	if handle.Name != cfg.Storage {
		return perr.Config(cfg.Name, fmt.Sprintf(
			"topic storage plugin changed from %q to %q, requires restart", handle.Name, cfg.Storage))
	}

	parsed, err := pluginhost.ParseConfig(cfg.StorageConfig, handle.Params)
	if err != nil {
		return err
	}
	updated, err := pluginhost.ValidateAndBuild(parsed, handle.Params)
	if err != nil {
		return err
	}
	if err := pluginhost.CheckFrozenParams(handle.Values, updated, handle.Params); err != nil {
		return err
	}

	if _, ok := handle.Object.(topic.Reconfigurable); !ok {
		// Storage does not support live reconfiguration; nothing to apply.
		return nil
	}
	if err := t.Reconfigure(cfg.StorageConfig); err != nil {
		return err
	}
	handle.Values = updated
	return nil
}

// checkEndpointsUnchanged fails the reload with a diagnostic the moment any
// tracked source/sink's effective configuration differs from the new one,
// per the "requires restart" decision for endpoints.
func (e *Engine) checkEndpointsUnchanged(kind string, running map[string]*taskEntry, incoming []config.EndpointConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	byKey := make(map[string]config.EndpointConfig, len(incoming))
	for _, ep := range incoming {
		byKey[endpointKey(ep)] = ep
	}

	for key, entry := range running {
		next, ok := byKey[key]
		if !ok {
			return perr.Config(key, fmt.Sprintf("%s %q removed by reload, requires restart", kind, key))
		}
		if !endpointConfigEqual(entry.cfg, next) {
			return perr.Config(key, fmt.Sprintf("%s %q configuration changed by reload, requires restart", kind, key))
		}
	}
	for key := range byKey {
		if _, ok := running[key]; !ok {
			return perr.Config(key, fmt.Sprintf("%s %q added by reload, requires restart", kind, key))
		}
	}
	return nil
}

func endpointConfigEqual(a, b config.EndpointConfig) bool {
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	return string(aj) == string(bj)
}

// reloadProcessors stops processors whose key disappeared, starts ones
// whose key is new, and leaves unchanged ones running untouched.
func (e *Engine) reloadProcessors(processors []config.ProcessorConfig) error {
	e.mu.Lock()
	toStop := make([]string, 0)
	wanted := make(map[string]config.ProcessorConfig, len(processors))
	for _, p := range processors {
		wanted[processorKey(p)] = p
	}
	for key := range e.processors {
		if _, ok := wanted[key]; !ok {
			toStop = append(toStop, key)
		}
	}
	e.mu.Unlock()

	for _, key := range toStop {
		e.stopProcessor(key)
	}

	for key, p := range wanted {
		e.mu.Lock()
		_, running := e.processors[key]
		e.mu.Unlock()
		if running {
			continue
		}
		if err := e.startProcessor(p); err != nil {
			return err
		}
	}
	return nil
}
