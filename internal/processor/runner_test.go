package processor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solomatovs/gauss/internal/record"
	"github.com/solomatovs/gauss/internal/topic"
)

type countingStorage struct{ saved []record.Record }

func (c *countingStorage) Init(*record.Schema) error { return nil }
func (c *countingStorage) Save(rs []record.Record) error {
	c.saved = append(c.saved, rs...)
	return nil
}
func (c *countingStorage) Query(topic.Query) (topic.QueryResult, error) { return topic.QueryResult{}, nil }
func (c *countingStorage) Flush() error                                 { return nil }

type countingProcessor struct {
	calls   int
	failOn  int
	closed  bool
}

func (p *countingProcessor) Process(ctx context.Context, pctx Context, sourceTopic string, rec record.Record) error {
	p.calls++
	if p.calls == p.failOn {
		return errTest
	}
	return nil
}

func (p *countingProcessor) Close() error {
	p.closed = true
	return nil
}

var errTest = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func TestRunnerContinuesAfterProcessError(t *testing.T) {
	tp, err := topic.New("T", "json", nil, &countingStorage{})
	require.NoError(t, err)
	sub := tp.Subscribe(8, topic.BackPressure)

	proc := &countingProcessor{failOn: 2}
	runner := &Runner{Name: "p", SourceTopic: "T", Subscription: sub, Processor: proc}

	ctx, cancel := context.WithCancel(context.Background())
	go runner.Run(ctx)

	for i := 0; i < 3; i++ {
		require.NoError(t, tp.Publish(record.Record{TsMs: int64(i)}))
	}

	require.Eventually(t, func() bool { return proc.calls == 3 }, time.Second, 10*time.Millisecond)
	cancel()
	require.Eventually(t, func() bool { return proc.closed }, time.Second, 10*time.Millisecond)
}
