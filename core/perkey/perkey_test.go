package perkey

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

func TestScheduler_SequentialPerKey(t *testing.T) {
	s := New[string]()
	defer s.Close()

	var seq []int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Do("key1", func() error {
				mu.Lock()
				seq = append(seq, i)
				mu.Unlock()
				time.Sleep(10 * time.Millisecond)
				return nil
			})
		}()
		time.Sleep(2 * time.Millisecond)
	}
	wg.Wait()

	require.Equal(t, []int{0, 1, 2}, seq)
}

func TestScheduler_ParallelAcrossKeys(t *testing.T) {
	s := New[string]()
	defer s.Close()

	var running, maxRunning atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		key := string(rune('a' + i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Do(key, func() error {
				cur := running.Add(1)
				for {
					max := maxRunning.Load()
					if cur <= max || maxRunning.CompareAndSwap(max, cur) {
						break
					}
				}
				time.Sleep(50 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	require.GreaterOrEqual(t, maxRunning.Load(), int32(2))
}

func TestScheduler_ErrorPropagation(t *testing.T) {
	s := New[string]()
	defer s.Close()

	expectedErr := errors.New("task error")
	err := s.Do("key", func() error { return expectedErr })
	require.ErrorIs(t, err, expectedErr)
}

func TestScheduler_DoContext_Cancelled(t *testing.T) {
	s := New[string]()
	defer s.Close()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := s.DoContext(ctx, "key", func() error {
		t.Error("task should not execute")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestScheduler_DoContext_Timeout(t *testing.T) {
	s := New[string]()
	defer s.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Do("key", func() error {
			time.Sleep(200 * time.Millisecond)
			return nil
		})
	}()

	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	err := s.DoContext(ctx, "key", func() error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)

	wg.Wait()
}

func TestScheduler_Submit_Ordered(t *testing.T) {
	s := New[string]()

	var mu sync.Mutex
	var seq []int
	for i := 0; i < 50; i++ {
		require.NoError(t, s.Submit("blob", func() error {
			mu.Lock()
			defer mu.Unlock()
			seq = append(seq, i)
			return nil
		}))
	}

	s.Close()

	require.Len(t, seq, 50)
	for i, v := range seq {
		require.Equal(t, i, v)
	}
}

func TestScheduler_Submit_ErrorHandler(t *testing.T) {
	var got atomic.Value
	s := New[string](WithErrorHandler(func(key any, err error) {
		got.Store(err)
		assert.Equal(t, "blob", key)
	}))

	boom := errors.New("quota exceeded")
	require.NoError(t, s.Submit("blob", func() error { return boom }))
	s.Close()

	require.ErrorIs(t, got.Load().(error), boom)
}

func TestScheduler_Submit_AfterClose(t *testing.T) {
	s := New[string]()
	s.Close()
	require.ErrorIs(t, s.Submit("key", func() error { return nil }), ErrSchedulerClosed)
}

func TestScheduler_Close_NoNewTasks(t *testing.T) {
	s := New[string]()
	s.Close()

	err := s.Do("key", func() error { return nil })
	require.ErrorIs(t, err, ErrSchedulerClosed)
}

func TestScheduler_Close_WaitsForQueued(t *testing.T) {
	s := New[string](WithBufferSize(10))

	var executed atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Submit("key", func() error {
			time.Sleep(10 * time.Millisecond)
			executed.Add(1)
			return nil
		}))
	}

	s.Close()
	require.Equal(t, int32(5), executed.Load())
}

func TestScheduler_Close_NoPanic(t *testing.T) {
	s := New[string]()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Do("key", func() error { return nil })
		}()
	}

	go func() {
		time.Sleep(time.Millisecond)
		s.Close()
	}()

	wg.Wait()
}

func TestScheduler_Close_Idempotent(t *testing.T) {
	s := New[string]()
	s.Close()
	s.Close()
}

func TestScheduler_WithBufferSize_Invalid(t *testing.T) {
	s := New[string](WithBufferSize(0))
	s2 := New[string](WithBufferSize(-1))
	defer s.Close()
	defer s2.Close()

	require.Equal(t, 64, s.bufferSize)
	require.Equal(t, 64, s2.bufferSize)
	require.NoError(t, s.Do("key", func() error { return nil }))
}

func TestScheduler_ManyKeys(t *testing.T) {
	s := New[int]()
	defer s.Close()

	var wg sync.WaitGroup
	var total atomic.Int32

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Do(i, func() error {
				total.Add(1)
				return nil
			})
		}()
	}

	wg.Wait()
	require.Equal(t, int32(100), total.Load())
}
