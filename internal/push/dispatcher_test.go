package push_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schooltransit/backend/internal/push"
)

// fakeSender records every message and fails the first failures attempts of
// each delivery sequence.
type fakeSender struct {
	mu       sync.Mutex
	attempts int
	sent     []push.Message
	failures int
}

func (s *fakeSender) Send(_ context.Context, msg push.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.attempts <= s.failures {
		return errors.New("gateway unavailable")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSender) delivered() []push.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]push.Message(nil), s.sent...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func closeDispatcher(t *testing.T, d *push.Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
}

func TestDispatcher_DeliversEnqueuedMessages(t *testing.T) {
	sender := &fakeSender{}
	d := push.NewDispatcher(sender, 2, 16, testLogger())

	d.Enqueue(push.Message{Token: "token-1", Type: "trip_started"})
	d.Enqueue(push.Message{Token: "token-2", Type: "child_picked_up"})
	closeDispatcher(t, d)

	assert.Len(t, sender.delivered(), 2)
	stats := d.Stats()
	assert.Equal(t, int64(2), stats.Sent)
	assert.Zero(t, stats.Failed)
	assert.Zero(t, stats.Dropped)
}

func TestDispatcher_RetriesTransientFailure(t *testing.T) {
	// First two attempts fail, the third succeeds.
	sender := &fakeSender{failures: 2}
	d := push.NewDispatcher(sender, 1, 16, testLogger())

	d.Enqueue(push.Message{Token: "token-1", Type: "child_missed"})
	closeDispatcher(t, d)

	require.Len(t, sender.delivered(), 1)
	stats := d.Stats()
	assert.Equal(t, int64(1), stats.Sent)
	assert.Zero(t, stats.Failed)
}

func TestDispatcher_CountsExhaustedRetriesAsFailed(t *testing.T) {
	// More failures than the dispatcher will ever attempt.
	sender := &fakeSender{failures: 1000}
	d := push.NewDispatcher(sender, 1, 16, testLogger())

	d.Enqueue(push.Message{Token: "token-1", Type: "trip_started"})
	closeDispatcher(t, d)

	assert.Empty(t, sender.delivered())
	stats := d.Stats()
	assert.Zero(t, stats.Sent)
	assert.Equal(t, int64(1), stats.Failed)
}

// blockingSender holds every delivery until release is closed, signalling
// started once the first Send is entered.
type blockingSender struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingSender) Send(_ context.Context, _ push.Message) error {
	s.once.Do(func() { close(s.started) })
	<-s.release
	return nil
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	sender := &blockingSender{started: make(chan struct{}), release: make(chan struct{})}
	d := push.NewDispatcher(sender, 1, 1, testLogger())

	// The single worker takes the first message and blocks in Send.
	d.Enqueue(push.Message{Token: "a"})
	<-sender.started

	// Fills the queue slot, then overflows it.
	d.Enqueue(push.Message{Token: "b"})
	d.Enqueue(push.Message{Token: "c"})

	assert.Equal(t, int64(1), d.Stats().Dropped)

	close(sender.release)
	closeDispatcher(t, d)
	assert.Equal(t, int64(2), d.Stats().Sent)
}

func TestNopSender(t *testing.T) {
	assert.NoError(t, push.NopSender{}.Send(context.Background(), push.Message{Token: "x"}))
}
