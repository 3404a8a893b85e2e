package sizeagg

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type obs struct {
	path  string
	size  uint64
	isDir bool
}

var tree = []obs{
	{"/r/a", 0, true},
	{"/r/a/x.bin", 100, false},
	{"/r/a/b", 0, true},
	{"/r/a/b/y.bin", 20, false},
	{"/r/a/b/z.bin", 3, false},
	{"/r/c", 0, true},
	{"/r/top.txt", 7, false},
}

func TestObserveAccumulatesIntoAncestors(t *testing.T) {
	a := New("/r")
	for _, o := range tree {
		a.Observe(o.path, o.size, o.isDir)
	}

	assert.Equal(t, uint64(123), a.Total("/r/a"))
	assert.Equal(t, uint64(23), a.Total("/r/a/b"))
	assert.Equal(t, uint64(0), a.Total("/r/c"))
	assert.Equal(t, uint64(130), a.Total("/r"))
	assert.Equal(t, uint64(0), a.Total("/r/missing"))
}

func TestObserveIgnoresPathsOutsideRoot(t *testing.T) {
	a := New("/r/a")
	a.Observe("/r/other/f", 50, false)
	a.Observe("/r/ab/f", 50, false)
	a.Observe("/r/a/f", 5, false)

	assert.Equal(t, uint64(5), a.Total("/r/a"))
	_, ok := a.Snapshot()["/r/other"]
	assert.False(t, ok)
}

func TestObserveRootSlash(t *testing.T) {
	a := New("/")
	a.Observe("/etc/hosts", 10, false)
	a.Observe("/f", 1, false)

	assert.Equal(t, uint64(10), a.Total("/etc"))
	assert.Equal(t, uint64(11), a.Total("/"))
}

func TestEmptyDirectoryRegistersZero(t *testing.T) {
	a := New("/r")
	a.Observe("/r/empty", 0, true)

	snap := a.Snapshot()
	v, ok := snap["/r/empty"]
	require.True(t, ok)
	assert.Zero(t, v)
}

func TestOrderAndConcurrencyIndependence(t *testing.T) {
	sequential := New("/r")
	for _, o := range tree {
		sequential.Observe(o.path, o.size, o.isDir)
	}
	want := sequential.Snapshot()

	for trial := 0; trial < 20; trial++ {
		shuffled := append([]obs(nil), tree...)
		rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		a := New("/r")
		var wg sync.WaitGroup
		for _, o := range shuffled {
			wg.Add(1)
			go func(o obs) {
				defer wg.Done()
				a.Observe(o.path, o.size, o.isDir)
			}(o)
		}
		wg.Wait()
		require.Equal(t, want, a.Snapshot(), "trial %d", trial)
	}
}

func TestConcurrentContributionsAreNotLost(t *testing.T) {
	a := New("/r")
	const workers, perWorker = 16, 500
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				a.Observe("/r/d/f", 1, false)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(workers*perWorker), a.Total("/r/d"))
	assert.Equal(t, uint64(workers*perWorker), a.Total("/r"))
}
