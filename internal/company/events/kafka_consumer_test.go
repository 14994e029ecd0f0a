package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// fakeReader serves queued messages, then blocks until ctx is done or the
// reader is closed. Like kafka.Reader, a closed reader returns io.EOF.
type fakeReader struct {
	msgs      chan kafka.Message
	closedCh  chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	committed []kafka.Message
	closed    bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs)), closedCh: make(chan struct{})}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-r.closedCh:
		return kafka.Message{}, io.EOF
	default:
	}
	select {
	case m := <-r.msgs:
		return m, nil
	case <-r.closedCh:
		return kafka.Message{}, io.EOF
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.closeOnce.Do(func() { close(r.closedCh) })
	return nil
}

func (r *fakeReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func eventMessage(t *testing.T, event Event) kafka.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Key: event.Key(), Value: value}
}

func TestConsumer_HandlesAndCommits(t *testing.T) {
	reader := newFakeReader(
		eventMessage(t, Event{Type: CompanyCreated, Company: testCompany()}),
		kafka.Message{Value: []byte("not json")},
	)
	core, recorded := observer.New(zap.ErrorLevel)
	consumer := newConsumer(reader, zap.New(core))

	handled := make(chan Event, 1)
	consumer.RegisterHandler(func(_ context.Context, ev Event) error {
		handled <- ev
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	consumer.Start(ctx)

	select {
	case ev := <-handled:
		assert.Equal(t, CompanyCreated, ev.Type)
		assert.Equal(t, int64(42), ev.Company.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not handled")
	}

	assert.Eventually(t, func() bool { return reader.commits() == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-consumer.Done()

	assert.Equal(t, 1, recorded.FilterMessage("Failed to parse event").Len())
}

func TestConsumer_HandlerErrorSkipsCommit(t *testing.T) {
	reader := newFakeReader(eventMessage(t, Event{Type: CompanyCreated, Company: testCompany()}))
	core, recorded := observer.New(zap.ErrorLevel)
	consumer := newConsumer(reader, zap.New(core))
	consumer.RegisterHandler(func(context.Context, Event) error {
		return errors.New("directory unavailable")
	})

	ctx, cancel := context.WithCancel(context.Background())
	consumer.Start(ctx)

	assert.Eventually(t, func() bool {
		return recorded.FilterMessage("Failed to handle event").Len() == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-consumer.Done()

	assert.Zero(t, reader.commits())
}

func TestConsumer_Close(t *testing.T) {
	reader := newFakeReader()
	consumer := newConsumer(reader, zaptest.NewLogger(t))
	consumer.Close()
	assert.True(t, reader.closed)
}

func TestConsumer_CloseEndsRunningLoop(t *testing.T) {
	reader := newFakeReader()
	core, recorded := observer.New(zap.ErrorLevel)
	consumer := newConsumer(reader, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumer.Start(ctx)
	consumer.Close()

	select {
	case <-consumer.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("consumer loop still running after Close")
	}
	assert.Zero(t, recorded.FilterMessage("Failed to fetch message").Len())
}
