package crawler

import (
	"sync"
	"testing"
	"time"

	"github.com/alvmarrod/pagedepth/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	assert.True(t, q.IsEmpty())

	for _, u := range []string{"a", "b", "c"} {
		require.True(t, q.Push(&storage.Page{URL: u}))
	}
	assert.Equal(t, 3, q.Size())

	for _, want := range []string{"a", "b", "c"} {
		p, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, want, p.URL)
	}
	assert.True(t, q.IsEmpty())
}

func TestQueueStopDrainsThenCloses(t *testing.T) {
	q := NewQueue()
	q.Push(&storage.Page{URL: "a"})
	q.Stop()

	assert.False(t, q.Push(&storage.Page{URL: "late"}))

	p, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", p.URL)

	p, ok = q.Pop()
	assert.False(t, ok)
	assert.Nil(t, p)
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewQueue()
	got := make(chan string, 1)

	go func() {
		p, ok := q.Pop()
		if ok {
			got <- p.URL
		}
	}()

	select {
	case <-got:
		t.Fatal("Pop returned before anything was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push(&storage.Page{URL: "x"})
	select {
	case u := <-got:
		assert.Equal(t, "x", u)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake up")
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q.Push(&storage.Page{URL: "p"})
			}
		}()
	}
	wg.Wait()
	q.Stop()

	n := 0
	for {
		if _, ok := q.Pop(); !ok {
			break
		}
		n++
	}
	assert.Equal(t, 1000, n)
}
