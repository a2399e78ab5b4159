package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFIFOOrdering(t *testing.T) {
	q := New()
	defer q.Close()

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	for i := 0; i < 50; i++ {
		i := i
		q.Post(func() {
			mu.Lock()
			order = append(order, i)
			if len(order) == 50 {
				close(done)
			}
			mu.Unlock()
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for items to drain")
	}

	for i, v := range order {
		require.Equal(t, i, v)
	}
}

func TestCloseDrainsQueued(t *testing.T) {
	q := New()
	n := 0
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		q.Post(func() {
			n++
			if n == 10 {
				close(done)
			}
		})
	}
	q.Close()
	select {
	case <-done:
	default:
		t.Fatal("Close returned before queued items drained")
	}
	require.Equal(t, 10, n)
}
