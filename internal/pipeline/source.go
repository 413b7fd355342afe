package pipeline

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/solomatovs/gauss/internal/logging"
	"github.com/solomatovs/gauss/internal/perr"
	"github.com/solomatovs/gauss/internal/record"
	"github.com/solomatovs/gauss/internal/topic"
)

// TopicPublisher is the narrow slice of *topic.Topic a source needs.
type TopicPublisher interface {
	Publish(rec record.Record) error
}

// SourceConfig is the composed configuration for one pipeline-mode source
// endpoint (spec.md §6 sources[]).
type SourceConfig struct {
	Name         string
	Endpoint     *Endpoint
	Buffer       int
	Overflow     topic.OverflowPolicy
	ConnBuffer   int
	ConnOverflow topic.OverflowPolicy
}

// RunPipelineSource drives one source endpoint's full two-tier stack:
// a dedicated acceptor goroutine, a receiver goroutine that spawns one
// blocking reader worker per connection, and a publish loop that drains
// decoded records into the topic. It blocks until ctx is cancelled or the
// transport fails to start.
func RunPipelineSource(ctx context.Context, cfg SourceConfig, pub TopicPublisher) error {
	log := logging.Component("source").With().Str("source", cfg.Name).Logger()

	if err := cfg.Endpoint.Transport.Start(); err != nil {
		return perr.Wrap(perr.KindIO, cfg.Name, "transport start failed", err)
	}
	defer cfg.Endpoint.Transport.Stop()

	connCh := make(chan Conn, cfg.ConnBuffer)
	inbound := make(chan record.Record, cfg.Buffer)

	go acceptLoop(ctx, cfg.Endpoint.Transport, connCh, cfg.ConnOverflow, log)
	go receiveLoop(ctx, connCh, cfg.Endpoint, inbound, cfg.Overflow, log)

	for {
		select {
		case <-ctx.Done():
			return nil
		case rec, ok := <-inbound:
			if !ok {
				return nil
			}
			if err := pub.Publish(rec); err != nil {
				log.Warn().Err(err).Msg("publish failed")
			}
		}
	}
}

// acceptLoop is the acceptor role: calls NextConnection in a loop, handing
// each connection across connCh with the configured overflow policy.
// Transient errors are logged and retried after a short backoff.
func acceptLoop(ctx context.Context, tr Transport, connCh chan<- Conn, overflow topic.OverflowPolicy, log zerolog.Logger) {
	defer close(connCh)
	backoff := 50 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := tr.NextConnection()
		if err == ErrNoMoreConnections {
			return
		}
		if err != nil {
			log.Warn().Err(err).Msg("accept error, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}

		switch overflow {
		case topic.Drop:
			select {
			case connCh <- conn:
			default:
				log.Warn().Msg("connection backlog full, dropping new connection")
				_ = conn.Close()
			}
		default:
			select {
			case connCh <- conn:
			case <-ctx.Done():
				_ = conn.Close()
				return
			}
		}
	}
}

// receiveLoop is the async receiver role: pulls accepted connections and
// spawns one blocking reader worker per connection.
func receiveLoop(ctx context.Context, connCh <-chan Conn, endpoint *Endpoint, inbound chan<- record.Record, overflow topic.OverflowPolicy, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case conn, ok := <-connCh:
			if !ok {
				return
			}
			go readerWorker(ctx, conn, endpoint, inbound, overflow, log)
		}
	}
}

// readerWorker is the blocking per-connection reader: grows a scratch
// buffer, decodes frames as they complete, and forwards decoded records.
// A format-kind decode error is logged and the connection stays up; any
// other error terminates it.
func readerWorker(ctx context.Context, conn Conn, endpoint *Endpoint, inbound chan<- record.Record, overflow topic.OverflowPolicy, log zerolog.Logger) {
	defer conn.Close()

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)

	for {
		frame, consumed, ferr := endpoint.Framing.Decode(buf)
		if ferr == ErrIncomplete {
			n, rerr := conn.Read(chunk)
			if n > 0 {
				buf = append(buf, chunk[:n]...)
			}
			if rerr != nil {
				if !errors.Is(rerr, io.EOF) {
					log.Debug().Err(rerr).Msg("connection read error, closing")
				}
				return
			}
			continue
		}
		if ferr != nil {
			log.Warn().Err(ferr).Msg("framing error, closing connection")
			return
		}
		buf = buf[consumed:]

		rec, err := endpoint.DecodeRecord(frame, time.Now)
		if err != nil {
			if perr.Is(err, perr.KindFormat) {
				log.Warn().Err(err).Msg("decode error, skipping frame")
				continue
			}
			log.Warn().Err(err).Msg("non-format decode error, closing connection")
			return
		}

		switch overflow {
		case topic.Drop:
			select {
			case inbound <- rec:
			default:
				log.Warn().Msg("source inbound channel full, dropping record")
			}
		default:
			select {
			case inbound <- rec:
			case <-ctx.Done():
				return
			}
		}
	}
}

// TopicSource is a self-driven source plugin that owns its own I/O and
// publishes directly, instead of composing transport+framing+codec.
type TopicSource interface {
	Run(ctx context.Context, pub TopicPublisher) error
	Stop() error
}

// RunPluginSource races a TopicSource's Run against ctx cancellation,
// calling Stop on cancellation — the single-task supervisor pattern the
// spec describes for plugin-mode sources.
func RunPluginSource(ctx context.Context, src TopicSource, pub TopicPublisher) error {
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, pub) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = src.Stop()
		<-done
		return nil
	}
}
