package locker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_MutualExclusion(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		current int
		max     int
		wg      sync.WaitGroup
	)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "instruction-1")
			require.NoError(t, err)
			defer release()

			mu.Lock()
			current++
			if current > max {
				max = current
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			current--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, max)
}

func TestMemoryLocker_IndependentKeys(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	releaseA, err := l.Acquire(ctx, "instruction-a")
	require.NoError(t, err)
	defer releaseA()

	// A different key must not block.
	done := make(chan struct{})
	go func() {
		releaseB, err := l.Acquire(ctx, "instruction-b")
		assert.NoError(t, err)
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquiring an independent key blocked")
	}
}

func TestMemoryLocker_ContextCancellation(t *testing.T) {
	l := NewMemoryLocker()

	release, err := l.Acquire(context.Background(), "instruction-1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Acquire(ctx, "instruction-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLockHeld)
}

func TestMemoryLocker_ReleaseAllowsReacquire(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "instruction-1")
	require.NoError(t, err)
	release()

	release2, err := l.Acquire(ctx, "instruction-1")
	require.NoError(t, err)
	release2()
}
