package cache

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

func TestLRU_GetOrLoad(t *testing.T) {
	c := newTestLRU[listing](t, newFakeClock(), Options{})

	var calls atomic.Int32
	load := func(ctx context.Context) (listing, error) {
		calls.Add(1)
		return listing{Title: "sofa", Price: 80}, nil
	}

	v, err := c.GetOrLoad(t.Context(), "ad:7", load, WithTTL(time.Minute))
	require.NoError(t, err)
	require.Equal(t, "sofa", v.Title)

	v, err = c.GetOrLoad(t.Context(), "ad:7", load)
	require.NoError(t, err)
	require.Equal(t, 80, v.Price)
	require.Equal(t, int32(1), calls.Load())

	e, ok := c.Peek("ad:7")
	require.True(t, ok)
	require.Equal(t, time.Minute, e.TTL)
}

func TestLRU_GetOrLoad_SharesConcurrentLoads(t *testing.T) {
	c := newTestLRU[int](t, nil, Options{})

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrLoad(t.Context(), "k", load)
			assert.NoError(t, err)
			assert.Equal(t, 7, v)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
}

func TestLRU_GetOrLoad_ErrorNotCached(t *testing.T) {
	c := newTestLRU[int](t, nil, Options{})
	boom := errors.New("backend down")

	_, err := c.GetOrLoad(t.Context(), "k", func(context.Context) (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
	require.False(t, c.Has("k"))

	v, err := c.GetOrLoad(t.Context(), "k", func(context.Context) (int, error) { return 3, nil })
	require.NoError(t, err)
	require.Equal(t, 3, v)
}

func TestLRU_GetOrLoad_IgnoresCallerCancel(t *testing.T) {
	c := newTestLRU[int](t, nil, Options{})

	started := make(chan struct{})
	release := make(chan struct{})
	load := func(ctx context.Context) (int, error) {
		close(started)
		<-release
		return 7, ctx.Err()
	}

	ctx, cancel := context.WithCancel(t.Context())
	errs := make(chan error, 1)
	go func() {
		_, err := c.GetOrLoad(ctx, "k", load)
		errs <- err
	}()

	<-started
	cancel()
	close(release)

	require.NoError(t, <-errs)
	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, 7, v)
}
