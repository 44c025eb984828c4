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

func TestPoolProcessesTasks(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	done := make(chan struct{}, 2)

	pool := NewPool("test", func(ctx context.Context, task Task) error {
		mu.Lock()
		seen[task.ID] = true
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, Config{Workers: 2})
	pool.Start(context.Background())
	defer pool.Stop()

	require.NoError(t, pool.Enqueue(context.Background(), Task{ID: "a"}))
	require.NoError(t, pool.TryEnqueue(Task{ID: "b"}))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("task not processed")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	assert.True(t, seen["a"])
	assert.True(t, seen["b"])
}

func TestPoolRetriesThenGivesUp(t *testing.T) {
	var calls int32
	gaveUp := make(chan Task, 1)

	pool := NewPool("retry", func(ctx context.Context, task Task) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	}, Config{
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
		OnGiveUp:   func(task Task, _ error) { gaveUp <- task },
	})
	pool.Start(context.Background())
	defer pool.Stop()

	require.NoError(t, pool.Enqueue(context.Background(), Task{ID: "x", Kind: "payroll_export"}))

	select {
	case task := <-gaveUp:
		assert.Equal(t, "x", task.ID)
		assert.Equal(t, 3, task.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("task never gave up")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPoolRejectsWhenNotRunning(t *testing.T) {
	pool := NewPool("idle", func(context.Context, Task) error { return nil }, Config{})
	assert.Error(t, pool.Enqueue(context.Background(), Task{ID: "1"}))
	assert.Error(t, pool.TryEnqueue(Task{ID: "1"}))
}

func TestTryEnqueueFull(t *testing.T) {
	block := make(chan struct{})
	pool := NewPool("full", func(ctx context.Context, task Task) error {
		<-block
		return nil
	}, Config{Workers: 1, BufferSize: 1})
	pool.Start(context.Background())
	defer func() {
		close(block)
		pool.Stop()
	}()

	require.NoError(t, pool.TryEnqueue(Task{ID: "1"}))
	require.Eventually(t, func() bool { return pool.Pending() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, pool.TryEnqueue(Task{ID: "2"}))
	assert.ErrorIs(t, pool.TryEnqueue(Task{ID: "3"}), ErrQueueFull)
}
