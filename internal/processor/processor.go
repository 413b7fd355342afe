// Package processor defines the contract for subscription-driven operators
// that consume one topic and may publish derived records to any other.
//
// The processor's one monolithic context is deliberately split into three
// narrow capabilities — Publisher, Codec, Inspector — rather than handed a
// single object with full engine access; this is the later-generation shape
// the original design notes prefer, since it is more restrictive per
// call-site and simpler to mock in tests.
package processor

import (
	"context"

	"github.com/solomatovs/gauss/internal/record"
	"github.com/solomatovs/gauss/internal/topic"
)

// Publisher lets a processor publish into any topic by name.
type Publisher interface {
	Publish(ctx context.Context, topicName string, rec record.Record) error
}

// Codec lets a processor serialize/deserialize values against a topic's
// declared data format, for processors that need to produce raw bytes
// (e.g. to hand to a sink expecting zero-copy passthrough).
type Codec interface {
	EncodeFor(topicName string, value any) ([]byte, error)
	DecodeFor(topicName string, data []byte) (any, error)
}

// Inspector lets a processor query any topic and enumerate topic names, for
// joins and lookups against other topics.
type Inspector interface {
	Query(topicName string, q topic.Query) (topic.QueryResult, error)
	Topics() []string
}

// Context bundles the three capabilities a running Processor receives.
type Context struct {
	Publisher Publisher
	Codec     Codec
	Inspector Inspector
}

// Processor is the plugin interface: one call per record from the
// processor's trigger topic. A returned error is never fatal to the engine
// — it is logged and the loop continues (see engine's lifecycle).
type Processor interface {
	Process(ctx context.Context, pctx Context, sourceTopic string, rec record.Record) error
	Close() error
}
