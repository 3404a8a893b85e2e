package crawler

import "context"

// Run is a crawl executing on its own goroutine. Only the counters are
// visible before it finishes; the entries arrive all at once.
type Run struct {
	root   string
	done   chan struct{}
	stats  *counters
	result Result
}

// Start begins crawling root in the background and returns immediately.
// Canceling ctx stops the walk early; the Result then carries ctx's error.
func (c *Crawler) Start(ctx context.Context, root string) *Run {
	r := &Run{root: root, done: make(chan struct{}), stats: &counters{}}
	go func() {
		defer close(r.done)
		r.result = c.crawl(ctx, root, r.stats)
	}()
	return r
}

// Root returns the path the run was started with.
func (r *Run) Root() string { return r.root }

// Done is closed once the result is available.
func (r *Run) Done() <-chan struct{} { return r.done }

// Result blocks until the crawl has finished.
func (r *Run) Result() Result {
	<-r.done
	return r.result
}

// Progress returns the current counters.
func (r *Run) Progress() Progress { return r.stats.snapshot() }
