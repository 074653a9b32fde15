package sf

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleflight_Dedup(t *testing.T) {
	s := New[int]()

	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := s.Do("ad:1", func() (int, error) {
				calls.Add(1)
				<-release
				return 42, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		require.Equal(t, 42, v)
	}
}

func TestSingleflight_Error(t *testing.T) {
	s := New[string]()
	boom := errors.New("boom")

	v, _, err := s.Do("k", func() (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)
	require.Empty(t, v)

	// failed calls are not remembered
	v, _, err = s.Do("k", func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	require.Equal(t, "ok", v)
}

func TestSingleflight_NilInterfaceResult(t *testing.T) {
	var s Singleflight[error]
	v, _, err := s.Do("k", func() (error, error) { return nil, nil })
	require.NoError(t, err)
	require.Nil(t, v)
}
