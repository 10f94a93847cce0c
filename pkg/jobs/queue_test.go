package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	q := New("release", func(_ context.Context, payload string) error {
		if calls.Add(1) < 3 {
			return errors.New("ledger unavailable")
		}
		assert.Equal(t, "sec-1/stu-1", payload)
		return nil
	}, Config{MaxRetries: 5, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue("sec-1/stu-1"))
	q.Wait()
	assert.EqualValues(t, 3, calls.Load())
}

func TestQueueDropsAfterMaxRetries(t *testing.T) {
	var (
		mu      sync.Mutex
		dropped []any
	)
	q := New("release", func(context.Context, int) error {
		return errors.New("still failing")
	}, Config{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		OnDrop: func(payload any, _ error) {
			mu.Lock()
			dropped = append(dropped, payload)
			mu.Unlock()
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(7))
	q.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []any{7}, dropped)
}

func TestQueueRejectsWhenNotRunning(t *testing.T) {
	q := New("release", func(context.Context, int) error { return nil }, Config{})
	assert.ErrorIs(t, q.Enqueue(1), ErrNotRunning)

	q.Start(context.Background())
	q.Stop()
	assert.ErrorIs(t, q.Enqueue(1), ErrNotRunning)
}

func TestQueueBackoffIsCapped(t *testing.T) {
	q := New("release", func(context.Context, int) error { return nil }, Config{RetryDelay: 10 * time.Millisecond, MaxDelay: 35 * time.Millisecond})
	assert.Equal(t, 10*time.Millisecond, q.backoff(1))
	assert.Equal(t, 20*time.Millisecond, q.backoff(2))
	assert.Equal(t, 35*time.Millisecond, q.backoff(3))
	assert.Equal(t, 35*time.Millisecond, q.backoff(8))
}
