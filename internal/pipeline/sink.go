package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/solomatovs/gauss/internal/logging"
	"github.com/solomatovs/gauss/internal/perr"
	"github.com/solomatovs/gauss/internal/record"
	"github.com/solomatovs/gauss/internal/topic"
)

// SinkConfig is the composed configuration for one pipeline-mode sink
// endpoint subscribed to one or more topics.
type SinkConfig struct {
	Name         string
	Endpoint     *Endpoint
	Buffer       int
	Overflow     topic.OverflowPolicy
	ConnBuffer   int
	ConnOverflow topic.OverflowPolicy
}

// broadcaster fans records out to every connected writer worker. Slow
// consumers are handled the same way a lagged broadcast receiver is: the
// record is dropped for that consumer and logged, never blocking the feed.
type broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan record.Record
	next int
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan record.Record)}
}

func (b *broadcaster) subscribe(buffer int) (int, <-chan record.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan record.Record, buffer)
	b.subs[id] = ch
	return id, ch
}

func (b *broadcaster) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *broadcaster) publish(rec record.Record, log zerolog.Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- rec:
		default:
			log.Warn().Msg("sink broadcast lagged, dropping record for slow connection")
		}
	}
}

// RunPipelineSink drives one sink endpoint: an acceptor/receiver pair
// spawning one blocking writer worker per connection, fed by a broadcast
// feeder that subscribes to every configured topic.
func RunPipelineSink(ctx context.Context, cfg SinkConfig, topics []*topic.Topic) error {
	log := logging.Component("sink").With().Str("sink", cfg.Name).Logger()

	if err := cfg.Endpoint.Transport.Start(); err != nil {
		return perr.Wrap(perr.KindIO, cfg.Name, "transport start failed", err)
	}
	defer cfg.Endpoint.Transport.Stop()

	bc := newBroadcaster()

	var wg sync.WaitGroup
	for _, t := range topics {
		wg.Add(1)
		go func(t *topic.Topic) {
			defer wg.Done()
			feedBroadcast(ctx, t, bc)
		}(t)
	}

	connCh := make(chan Conn, cfg.ConnBuffer)
	go acceptLoop(ctx, cfg.Endpoint.Transport, connCh, cfg.ConnOverflow, log)

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case conn, ok := <-connCh:
			if !ok {
				wg.Wait()
				return nil
			}
			go writerWorker(ctx, conn, cfg.Endpoint, bc, cfg.Buffer, log)
		}
	}
}

// feedBroadcast subscribes to one topic and forwards every record into the
// sink's broadcaster. Running one of these per configured topic is what
// the spec calls the per-topic forwarder merging into a single feed; with
// exactly one topic it degenerates to feeding the broadcast directly.
func feedBroadcast(ctx context.Context, t *topic.Topic, bc *broadcaster) {
	sub := t.Subscribe(256, topic.BackPressure)
	defer sub.Close()
	log := logging.Component("sink").With().Str("topic", t.Name()).Logger()

	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-sub.Records():
			if !ok {
				return
			}
			bc.publish(rec, log)
		}
	}
}

// writerWorker is the blocking per-connection writer: subscribes to the
// broadcaster and, for each record, runs the encode chain and writes the
// resulting frame. I/O errors terminate the connection.
func writerWorker(ctx context.Context, conn Conn, endpoint *Endpoint, bc *broadcaster, buffer int, log zerolog.Logger) {
	defer conn.Close()
	id, ch := bc.subscribe(buffer)
	defer bc.unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-ch:
			if !ok {
				return
			}
			frame, err := endpoint.EncodeRecord(rec)
			if err != nil {
				log.Warn().Err(err).Msg("encode error, skipping record")
				continue
			}
			if _, err := conn.Write(frame); err != nil {
				log.Debug().Err(err).Msg("write error, closing connection")
				return
			}
		}
	}
}

// TopicSink is a self-driven sink plugin that owns its own I/O.
type TopicSink interface {
	Run(ctx context.Context, sub *topic.Subscription) error
	Stop() error
}

// RunPluginSink races a TopicSink's Run against ctx cancellation.
func RunPluginSink(ctx context.Context, sink TopicSink, sub *topic.Subscription) error {
	done := make(chan error, 1)
	go func() { done <- sink.Run(ctx, sub) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = sink.Stop()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
		return nil
	}
}
