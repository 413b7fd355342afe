// Package topic implements the in-memory broker: named topics backed by a
// pluggable Storage, ordered publish-notify, and bounded per-subscriber
// channels with an overflow policy chosen per subscription.
//
// The notification model is deliberately mpsc-per-subscriber rather than a
// shared broadcast-and-poll channel: it gives each subscriber its own
// overflow policy directly, at the cost of a small amount of per-subscriber
// bookkeeping (see subscriber.go).
package topic

import (
	"sync"

	"github.com/solomatovs/gauss/internal/logging"
	"github.com/solomatovs/gauss/internal/perr"
	"github.com/solomatovs/gauss/internal/record"
)

// Storage is the persistence contract every topic delegates to. Init is
// invoked exactly once per topic before any Save. Save is called with
// one-or-more records atomically per call. Flush runs at shutdown.
type Storage interface {
	Init(schema *record.Schema) error
	Save(records []record.Record) error
	Query(q Query) (QueryResult, error)
	Flush() error
}

// Reconfigurable is implemented by storages whose sighup-context
// parameters can be applied to a running instance without a restart.
type Reconfigurable interface {
	Reconfigure(values map[string]any) error
}

// Order controls result direction for Query.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// Query is the read-only projection parameters over a topic's storage.
// From is inclusive, To is exclusive. When Limit is set without Offset,
// storages return the Limit most recent matching records in Order.
type Query struct {
	Key    *string
	FromMs *int64
	ToMs   *int64
	Limit  *int
	Offset *int
	Order  Order
}

// QueryResult is what a storage's Query returns.
type QueryResult struct {
	Records    []record.Record
	NextOffset *int64
}

// Topic is a named, persistent channel with exactly one storage backend and
// a set of live subscribers. The storage identity never changes for the
// lifetime of a Topic value.
type Topic struct {
	name    string
	format  string
	schema  *record.Schema
	storage Storage

	mu          sync.Mutex
	subscribers []*subscriber
}

// New constructs a Topic and calls storage.Init(schema) exactly once, per
// the invariant that init precedes any save.
func New(name, format string, schema *record.Schema, storage Storage) (*Topic, error) {
	if err := storage.Init(schema); err != nil {
		return nil, perr.Wrap(perr.KindConfig, name, "storage init failed", err)
	}
	return &Topic{name: name, format: format, schema: schema, storage: storage}, nil
}

func (t *Topic) Name() string          { return t.name }
func (t *Topic) Format() string        { return t.format }
func (t *Topic) Schema() *record.Schema { return t.schema }

// Publish persists rec then notifies subscribers, in that order — on a
// storage failure no subscriber is notified, since persistence is the
// source of truth for what counts as published.
func (t *Topic) Publish(rec record.Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.storage.Save([]record.Record{rec}); err != nil {
		return perr.Wrap(perr.KindIO, t.name, "storage save failed", err)
	}

	log := logging.Component("topic").With().Str("topic", t.name).Logger()
	live := t.subscribers[:0]
	for _, sub := range t.subscribers {
		if sub.isClosed() {
			sub.reap()
			continue
		}
		sub.deliver(rec, log)
		live = append(live, sub)
	}
	t.subscribers = live
	return nil
}

// Subscribe creates a new bounded channel and begins delivering newly
// published records to it immediately; history is not replayed.
func (t *Topic) Subscribe(buffer int, overflow OverflowPolicy) *Subscription {
	sub := newSubscriber(buffer, overflow)

	t.mu.Lock()
	t.subscribers = append(t.subscribers, sub)
	t.mu.Unlock()

	return &Subscription{sub: sub}
}

// Query is a read-only projection over the topic's storage.
func (t *Topic) Query(q Query) (QueryResult, error) {
	return t.storage.Query(q)
}

// Flush asks the storage backend to flush, at shutdown.
func (t *Topic) Flush() error {
	return t.storage.Flush()
}

// Reconfigure applies new sighup-context values to the storage, if it
// supports live reconfiguration.
func (t *Topic) Reconfigure(values map[string]any) error {
	r, ok := t.storage.(Reconfigurable)
	if !ok {
		return perr.Config(t.name, "storage does not support reconfiguration")
	}
	return r.Reconfigure(values)
}
