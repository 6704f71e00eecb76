package ranking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obstaclehub/records-api/internal/testutil"
)

func TestLockSerializesPerMap(t *testing.T) {
	locks := newLockSet(testutil.NopLogger())
	ctx := context.Background()

	var mu sync.Mutex
	var active, maxActive int

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locks.within(ctx, 1, func() error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)

	// All refs released, the entry is gone.
	locks.mu.Lock()
	assert.Empty(t, locks.locks)
	locks.mu.Unlock()
}

func TestLockDifferentMapsDoNotBlock(t *testing.T) {
	locks := newLockSet(testutil.NopLogger())
	ctx := context.Background()

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = locks.within(ctx, 1, func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	done := make(chan struct{})
	go func() {
		_ = locks.within(ctx, 2, func() error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another map blocked")
	}
}

func TestLockContextCancelled(t *testing.T) {
	locks := newLockSet(testutil.NopLogger())

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = locks.within(context.Background(), 1, func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := locks.within(ctx, 1, func() error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}
