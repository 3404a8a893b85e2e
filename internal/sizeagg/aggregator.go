// Package sizeagg accumulates cumulative directory sizes from a stream of
// file and directory observations. It performs no I/O.
package sizeagg

import (
	"hash/fnv"
	"path/filepath"
	"sync"
)

const shardCount = 64

type shard struct {
	mu     sync.Mutex
	totals map[string]uint64
}

// Aggregator keeps a running total per directory under root. Contributions
// are plain additions, so the final totals do not depend on the order in
// which observations arrive or on how many goroutines deliver them.
type Aggregator struct {
	root   string
	shards [shardCount]shard
}

// New returns an Aggregator for the tree rooted at root.
func New(root string) *Aggregator {
	a := &Aggregator{root: filepath.Clean(root)}
	for i := range a.shards {
		a.shards[i].totals = make(map[string]uint64)
	}
	a.touch(a.root)
	return a
}

// Root returns the cleaned root path.
func (a *Aggregator) Root() string { return a.root }

// Observe records one filesystem object. A directory registers a zero total
// for itself. A file adds size to every directory from its parent up to and
// including root. Observations outside root are ignored.
func (a *Aggregator) Observe(path string, size uint64, isDir bool) {
	path = filepath.Clean(path)
	if !a.contains(path) {
		return
	}
	if isDir {
		a.touch(path)
		return
	}
	if path == a.root {
		return
	}
	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		a.add(dir, size)
		if dir == a.root {
			return
		}
	}
}

// Total returns the cumulative size recorded for dir, or 0 if nothing was
// observed under it.
func (a *Aggregator) Total(dir string) uint64 {
	dir = filepath.Clean(dir)
	s := a.shardFor(dir)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals[dir]
}

// Snapshot copies all directory totals.
func (a *Aggregator) Snapshot() map[string]uint64 {
	out := make(map[string]uint64)
	for i := range a.shards {
		s := &a.shards[i]
		s.mu.Lock()
		for k, v := range s.totals {
			out[k] = v
		}
		s.mu.Unlock()
	}
	return out
}

func (a *Aggregator) touch(dir string) {
	s := a.shardFor(dir)
	s.mu.Lock()
	if _, ok := s.totals[dir]; !ok {
		s.totals[dir] = 0
	}
	s.mu.Unlock()
}

func (a *Aggregator) add(dir string, n uint64) {
	s := a.shardFor(dir)
	s.mu.Lock()
	s.totals[dir] += n
	s.mu.Unlock()
}

func (a *Aggregator) contains(path string) bool {
	if path == a.root {
		return true
	}
	rel, err := filepath.Rel(a.root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !hasDotDotPrefix(rel)
}

func (a *Aggregator) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &a.shards[h.Sum32()%shardCount]
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
