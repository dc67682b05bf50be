package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-retrieval-service/internal/domain"
)

type mockRefresher struct {
	mock.Mock
}

func (m *mockRefresher) Refresh(ctx context.Context, query string) (int, error) {
	args := m.Called(ctx, query)
	return args.Int(0), args.Error(1)
}

// fakeReader replays messages, then blocks until the context ends.
type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	fetchErrs []error
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func eventMessage(t *testing.T, offset int64, eventType string, payload any) kafka.Message {
	t.Helper()
	event, err := domain.NewEvent(eventType, "k", payload)
	require.NoError(t, err)
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: value}
}

func TestRefreshListener_Run(t *testing.T) {
	reader := &fakeReader{
		fetchErrs: []error{errors.New("broker restarting")},
		messages: []kafka.Message{
			eventMessage(t, 1, domain.EventTypeRefreshRequested, domain.RefreshRequestedPayload{Query: "protein folding"}),
			{Offset: 2, Value: []byte("{not json")},
			eventMessage(t, 3, domain.EventTypePapersRefreshed, domain.PapersRefreshedPayload{Query: "ignored"}),
			eventMessage(t, 4, domain.EventTypeRefreshRequested, domain.RefreshRequestedPayload{Query: "   "}),
			eventMessage(t, 5, domain.EventTypeRefreshRequested, domain.RefreshRequestedPayload{Query: "dark matter"}),
		},
	}

	refresher := new(mockRefresher)
	refresher.On("Refresh", mock.Anything, "protein folding").Return(7, nil)
	refresher.On("Refresh", mock.Anything, "dark matter").Return(0, errors.New("store unavailable"))

	l := newRefreshListener(reader, refresher, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(reader.commits()) == 5
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, reader.commits())
	refresher.AssertExpectations(t)
	refresher.AssertNumberOfCalls(t, "Refresh", 2)
}

func TestRefreshListener_Run_BacksOffOnFetchErrors(t *testing.T) {
	reader := &fakeReader{
		fetchErrs: []error{
			errors.New("broker down"),
			errors.New("broker down"),
			errors.New("broker down"),
		},
		messages: []kafka.Message{
			eventMessage(t, 1, domain.EventTypeRefreshRequested, domain.RefreshRequestedPayload{Query: "q"}),
		},
	}
	refresher := new(mockRefresher)
	refresher.On("Refresh", mock.Anything, "q").Return(1, nil)

	l := newRefreshListener(reader, refresher, zerolog.Nop())
	l.backoffMin = 20 * time.Millisecond
	l.backoffMax = 40 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	start := time.Now()
	go func() { _ = l.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(reader.commits()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	// 20ms + 40ms + 40ms of pauses before the message is reached.
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestRefreshListener_Run_StopsWhenReaderCloses(t *testing.T) {
	reader := &fakeReader{fetchErrs: []error{io.EOF}}

	done := make(chan error, 1)
	go func() { done <- newRefreshListener(reader, new(mockRefresher), zerolog.Nop()).Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listener kept running after the reader closed")
	}
}

func TestRefreshListener_Run_CancelDuringBackoff(t *testing.T) {
	reader := &fakeReader{fetchErrs: []error{errors.New("broker down")}}
	l := newRefreshListener(reader, new(mockRefresher), zerolog.Nop())
	l.backoffMin = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop during backoff")
	}
}

func TestDecodeRefreshRequest(t *testing.T) {
	good := eventMessage(t, 0, domain.EventTypeRefreshRequested, domain.RefreshRequestedPayload{Query: "CRISPR", RequestedBy: "cli"})
	q, err := decodeRefreshRequest(good.Value)
	require.NoError(t, err)
	assert.Equal(t, "CRISPR", q)

	other := eventMessage(t, 0, domain.EventTypePapersRefreshed, nil)
	_, err = decodeRefreshRequest(other.Value)
	assert.ErrorIs(t, err, errSkipped)

	_, err = decodeRefreshRequest([]byte(`{"event_type":"papers.refresh_requested","payload":"nope"}`))
	assert.ErrorContains(t, err, "unmarshal refresh payload")
}

func TestRefreshListener_Close(t *testing.T) {
	reader := &fakeReader{}
	require.NoError(t, newRefreshListener(reader, new(mockRefresher), zerolog.Nop()).Close())
	assert.True(t, reader.closed)
}
