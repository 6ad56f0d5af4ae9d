package sequence

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunner_RunsTasksInOrder(t *testing.T) {
	r := NewRunner("test", nil)
	t.Cleanup(r.Close)

	var (
		mu  sync.Mutex
		got []int
	)
	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		i := i
		require.True(t, r.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	require.True(t, r.Post(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not run")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 50)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestRunner_PostAfterClose(t *testing.T) {
	r := NewRunner("test", nil)
	r.Close()

	require.False(t, r.Post(func() {}))
	// Second close is a no-op.
	r.Close()
}

func TestRunner_RecoversFromPanic(t *testing.T) {
	r := NewRunner("test", nil)
	t.Cleanup(r.Close)

	done := make(chan struct{})
	r.Post(func() { panic("boom") })
	r.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner stopped after panic")
	}
}
