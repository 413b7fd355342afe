package engine

import (
	"context"
	"encoding/json"

	"github.com/solomatovs/gauss/internal/perr"
	"github.com/solomatovs/gauss/internal/record"
	"github.com/solomatovs/gauss/internal/topic"
)

// registryPublisher adapts *topic.Registry to processor.Publisher: publish
// into any topic by name.
type registryPublisher struct{ registry *topic.Registry }

func (p registryPublisher) Publish(ctx context.Context, topicName string, rec record.Record) error {
	t, ok := p.registry.Get(topicName)
	if !ok {
		return perr.Config(topicName, "publish to unknown topic")
	}
	return t.Publish(rec)
}

// jsonCodec is the "in practice trivial" processor.Codec spec.md §4.4
// describes: once value already lives on the record, serializing it
// against a topic's declared format reduces to generic JSON marshaling,
// independent of which format that topic nominally declared.
type jsonCodec struct{ registry *topic.Registry }

func (c jsonCodec) EncodeFor(topicName string, value any) ([]byte, error) {
	if _, ok := c.registry.Get(topicName); !ok {
		return nil, perr.Config(topicName, "encode for unknown topic")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, perr.Wrap(perr.KindFormat, topicName, "encode failed", err)
	}
	return data, nil
}

func (c jsonCodec) DecodeFor(topicName string, data []byte) (any, error) {
	if _, ok := c.registry.Get(topicName); !ok {
		return nil, perr.Config(topicName, "decode for unknown topic")
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, perr.Wrap(perr.KindFormat, topicName, "decode failed", err)
	}
	return value, nil
}

// registryInspector adapts *topic.Registry to processor.Inspector.
type registryInspector struct{ registry *topic.Registry }

func (i registryInspector) Query(topicName string, q topic.Query) (topic.QueryResult, error) {
	t, ok := i.registry.Get(topicName)
	if !ok {
		return topic.QueryResult{}, perr.Config(topicName, "query unknown topic")
	}
	return t.Query(q)
}

func (i registryInspector) Topics() []string { return i.registry.Names() }
