package topic

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solomatovs/gauss/internal/record"
)

// memStorage is a minimal in-test Storage; the real reference plugin lives
// under plugins/storage/memory.
type memStorage struct {
	mu      sync.Mutex
	records []record.Record
}

func (m *memStorage) Init(schema *record.Schema) error { return nil }

func (m *memStorage) Save(records []record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return nil
}

func (m *memStorage) Query(q Query) (QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return QueryResult{Records: append([]record.Record(nil), m.records...)}, nil
}

func (m *memStorage) Flush() error { return nil }

func TestPublishZeroSubscribersPersists(t *testing.T) {
	topic, err := New("T", "json", nil, &memStorage{})
	require.NoError(t, err)

	require.NoError(t, topic.Publish(record.Record{TsMs: 1, Key: "X"}))

	res, err := topic.Query(Query{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
}

func TestSubscribeMidStreamSeesOnlyFutureRecords(t *testing.T) {
	topic, err := New("T", "json", nil, &memStorage{})
	require.NoError(t, err)

	require.NoError(t, topic.Publish(record.Record{TsMs: 1, Key: "before"}))

	sub := topic.Subscribe(4, BackPressure)
	require.NoError(t, topic.Publish(record.Record{TsMs: 2, Key: "after"}))

	select {
	case rec := <-sub.Records():
		require.Equal(t, "after", rec.Key)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for record")
	}
}

func TestBackPressureSubscriberReceivesAllInOrder(t *testing.T) {
	topic, err := New("T", "json", nil, &memStorage{})
	require.NoError(t, err)

	sub := topic.Subscribe(1, BackPressure)

	const n = 10
	done := make(chan struct{})
	go func() {
		for i := 0; i < n; i++ {
			require.NoError(t, topic.Publish(record.Record{TsMs: int64(i), Key: "k"}))
		}
		close(done)
	}()

	received := make([]int64, 0, n)
	for len(received) < n {
		select {
		case rec := <-sub.Records():
			received = append(received, rec.TsMs)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after receiving %d/%d", len(received), n)
		}
	}
	<-done
	for i, ts := range received {
		require.Equal(t, int64(i), ts)
	}
}

func TestDropSubscriberNeverBlocksPublisher(t *testing.T) {
	topic, err := New("T", "json", nil, &memStorage{})
	require.NoError(t, err)

	sub := topic.Subscribe(1, Drop)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			require.NoError(t, topic.Publish(record.Record{TsMs: int64(i)}))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a drop-policy subscriber")
	}
	require.LessOrEqual(t, len(sub.Records()), 1)
}

func TestClosedSubscriberReapedOnNextPublish(t *testing.T) {
	topic, err := New("T", "json", nil, &memStorage{})
	require.NoError(t, err)

	sub := topic.Subscribe(4, Drop)
	sub.Close()

	require.NoError(t, topic.Publish(record.Record{TsMs: 1}))
	topic.mu.Lock()
	count := len(topic.subscribers)
	topic.mu.Unlock()
	require.Equal(t, 0, count)

	_, ok := <-sub.Records()
	require.False(t, ok, "channel should be closed after reap")
}

func TestRegistryRejectsDuplicateRegistration(t *testing.T) {
	reg := NewRegistry()
	topicA, err := New("A", "json", nil, &memStorage{})
	require.NoError(t, err)
	require.NoError(t, reg.Register(topicA))

	topicA2, err := New("A", "json", nil, &memStorage{})
	require.NoError(t, err)
	require.Error(t, reg.Register(topicA2))
}
