package topic

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/solomatovs/gauss/internal/record"
)

// OverflowPolicy is chosen per subscription: Drop trades loss for latency
// stability, BackPressure trades latency for loss-freedom.
type OverflowPolicy string

const (
	Drop         OverflowPolicy = "drop"
	BackPressure OverflowPolicy = "back-pressure"
)

// subscriber is a bounded single-producer-single-consumer channel plus its
// overflow policy. For BackPressure subscribers, publish never blocks: a
// dedicated forwarder goroutine owns an unbounded internal queue and performs
// the blocking channel send on the publisher's behalf, preserving
// per-subscriber delivery order since the queue has exactly one consumer.
type subscriber struct {
	ch       chan record.Record
	overflow OverflowPolicy
	closed   atomic.Bool

	// BackPressure-only forwarding state.
	qmu   sync.Mutex
	qcond *sync.Cond
	queue []record.Record
	done  chan struct{}
	wg    sync.WaitGroup
}

func newSubscriber(buffer int, overflow OverflowPolicy) *subscriber {
	s := &subscriber{
		ch:       make(chan record.Record, buffer),
		overflow: overflow,
	}
	if overflow == BackPressure {
		s.qcond = sync.NewCond(&s.qmu)
		s.done = make(chan struct{})
		s.wg.Add(1)
		go s.forward()
	}
	return s
}

func (s *subscriber) isClosed() bool { return s.closed.Load() }

// deliver applies the subscriber's overflow policy to one record. Called
// only from Topic.Publish, which holds the topic's subscriber lock, so
// delivery order across calls for this subscriber matches publish order.
func (s *subscriber) deliver(rec record.Record, log zerolog.Logger) {
	switch s.overflow {
	case Drop:
		select {
		case s.ch <- rec:
		default:
			log.Warn().Msg("subscriber channel full, dropping record")
		}
	case BackPressure:
		s.qmu.Lock()
		s.queue = append(s.queue, rec)
		s.qcond.Signal()
		s.qmu.Unlock()
	}
}

// forward drains the internal queue in order and blocking-sends each
// record to ch, until close signals no more work is coming.
func (s *subscriber) forward() {
	defer s.wg.Done()
	for {
		s.qmu.Lock()
		for len(s.queue) == 0 && !s.isClosed() {
			s.qcond.Wait()
		}
		if len(s.queue) == 0 {
			s.qmu.Unlock()
			return
		}
		rec := s.queue[0]
		s.queue = s.queue[1:]
		s.qmu.Unlock()

		select {
		case s.ch <- rec:
		case <-s.done:
			return
		}
	}
}

// close marks the subscriber closed; the channel itself is closed by reap
// once any in-flight forwarder has stopped, so a Close racing a publish can
// never send on a closed channel.
func (s *subscriber) close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	if s.overflow == BackPressure {
		close(s.done)
		s.qmu.Lock()
		s.qcond.Broadcast()
		s.qmu.Unlock()
	}
}

// reap finalizes a closed subscriber: waits for its forwarder (if any) to
// stop, then closes the delivery channel. Called by the publisher holding
// the topic's subscriber lock on its next publication pass.
func (s *subscriber) reap() {
	if s.overflow == BackPressure {
		s.wg.Wait()
	}
	close(s.ch)
}

// Subscription is the receiver half returned to a consumer.
type Subscription struct {
	sub *subscriber
}

// Records returns the channel yielding records in publish order; it is
// closed (yielding ok=false on receive) at end-of-stream.
func (s *Subscription) Records() <-chan record.Record {
	return s.sub.ch
}

// Close drops this subscription. The underlying channel is closed lazily
// by the topic's next publish.
func (s *Subscription) Close() {
	s.sub.close()
}
