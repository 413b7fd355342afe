// Package symbolfilter is a minimal reference Processor: it forwards
// records whose Key is in a configured allow-list to a target topic,
// unchanged. The record's Value is not inspected. SPEC_FULL.md §C names it a runnable demonstration of
// the Processor Runtime, not part of the core ABI.
package symbolfilter

import (
	"context"
	"strings"

	"github.com/solomatovs/gauss/internal/perr"
	"github.com/solomatovs/gauss/internal/pluginhost"
	"github.com/solomatovs/gauss/internal/processor"
	"github.com/solomatovs/gauss/internal/record"
)

func init() {
	params := []pluginhost.ConfigParam{
		{Name: "symbols", Type: pluginhost.ParamStr, Context: pluginhost.ContextSighup, Required: true,
			Description: "comma-separated list of allowed symbol values"},
		{Name: "target_topic", Type: pluginhost.ParamStr, Context: pluginhost.ContextPostmaster, Required: true,
			Description: "topic matching records are published to"},
	}
	pluginhost.RegisterBuiltin(pluginhost.KindProcessor, "symbol_filter", params, func(cfg pluginhost.ConfigValues) (any, error) {
		return New(cfg.String("symbols", ""), cfg.String("target_topic", "")), nil
	})
}

// Processor implements processor.Processor.
type Processor struct {
	allowed     map[string]bool
	targetTopic string
}

func New(symbolsCSV, targetTopic string) *Processor {
	allowed := make(map[string]bool)
	for _, s := range strings.Split(symbolsCSV, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			allowed[s] = true
		}
	}
	return &Processor{allowed: allowed, targetTopic: targetTopic}
}

func (p *Processor) Process(ctx context.Context, pctx processor.Context, sourceTopic string, rec record.Record) error {
	if !p.allowed[rec.Key] {
		return nil
	}
	if err := pctx.Publisher.Publish(ctx, p.targetTopic, rec); err != nil {
		return perr.Wrap(perr.KindIO, "symbol_filter", "publish to target topic failed", err)
	}
	return nil
}

func (p *Processor) Close() error { return nil }
