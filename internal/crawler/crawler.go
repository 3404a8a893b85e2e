// Package crawler walks a directory tree and reports its immediate children
// with recursive sizes resolved.
//
// The walk runs on a bounded pool of fastwalk workers. Symlinks are never
// followed, objects whose metadata cannot be read are skipped, directories
// that fail an access check are listed but not entered, and virtual
// filesystem roots such as /proc are pruned before they are visited.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/rs/zerolog"

	"nithronos/nosdu/internal/sizeagg"
)

var (
	ErrNotDirectory = errors.New("crawl root is not a directory")
	ErrPanicked     = errors.New("crawl worker panicked")
)

// FileEntry is one direct child of a crawled directory. For directories
// Size is the cumulative size of every regular file below it.
type FileEntry struct {
	Path  string `json:"path" yaml:"path"`
	Size  uint64 `json:"size" yaml:"size"`
	IsDir bool   `json:"is_dir" yaml:"is_dir"`
}

// Progress holds the counters of a crawl in flight.
type Progress struct {
	Visited int64 `json:"visited" yaml:"visited"`
	Skipped int64 `json:"skipped" yaml:"skipped"`
	Pruned  int64 `json:"pruned" yaml:"pruned"`
	Denied  int64 `json:"denied" yaml:"denied"`
}

// Result is the complete outcome of one crawl. Err is set only when the
// crawl as a whole failed; Entries is then empty. A successful crawl of an
// empty directory has no entries and a nil Err.
type Result struct {
	Root     string        `json:"root" yaml:"root"`
	Entries  []FileEntry   `json:"entries" yaml:"entries"`
	Total    uint64        `json:"total" yaml:"total"`
	Progress Progress      `json:"progress" yaml:"progress"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Err      error         `json:"-" yaml:"-"`
}

// Failed reports whether the crawl itself failed, as opposed to finding
// nothing.
func (r Result) Failed() bool { return r.Err != nil }

// Crawler runs crawls with a fixed set of options. It is safe to use from
// several goroutines.
type Crawler struct {
	opts Options
	log  zerolog.Logger
}

// New returns a Crawler.
func New(opts Options) *Crawler {
	log := zerolog.Nop()
	if opts.Verbose {
		log = opts.Logger.With().Str("component", "crawler").Logger()
	}
	return &Crawler{opts: opts, log: log}
}

// Crawl walks root and blocks until the walk completes.
func (c *Crawler) Crawl(ctx context.Context, root string) Result {
	return c.crawl(ctx, root, &counters{})
}

type counters struct {
	visited atomic.Int64
	skipped atomic.Int64
	pruned  atomic.Int64
	denied  atomic.Int64
}

func (c *counters) snapshot() Progress {
	return Progress{
		Visited: c.visited.Load(),
		Skipped: c.skipped.Load(),
		Pruned:  c.pruned.Load(),
		Denied:  c.denied.Load(),
	}
}

type walk struct {
	ctx      context.Context
	root     string
	maxDepth int
	prune    []string
	agg      *sizeagg.Aggregator
	stats    *counters
	log      zerolog.Logger

	mu  sync.Mutex
	top []FileEntry
}

func (c *Crawler) crawl(ctx context.Context, root string, stats *counters) (res Result) {
	start := time.Now()
	res.Root = root
	defer func() {
		if r := recover(); r != nil {
			res = Result{Root: root, Err: fmt.Errorf("%w: %v", ErrPanicked, r)}
		}
		res.Progress = stats.snapshot()
		res.Duration = time.Since(start)
		if res.Entries == nil {
			res.Entries = []FileEntry{}
		}
		if res.Err != nil {
			c.log.Debug().Err(res.Err).Str("root", res.Root).Msg("crawl failed")
		} else {
			c.log.Debug().Str("root", res.Root).Int("entries", len(res.Entries)).Msg("crawl finished")
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	resolved, err := resolveRoot(root)
	if err != nil {
		res.Err = err
		return res
	}
	res.Root = resolved

	w := &walk{
		ctx:      ctx,
		root:     resolved,
		maxDepth: c.opts.MaxDepth,
		prune:    c.opts.pruneRoots(),
		agg:      sizeagg.New(resolved),
		stats:    stats,
		log:      c.log,
	}
	if w.pruned(resolved) {
		stats.pruned.Add(1)
		c.log.Debug().Str("root", resolved).Msg("root is inside a pruned filesystem")
		return res
	}
	if err := checkAccess(resolved); err != nil {
		res.Err = fmt.Errorf("crawl %s: %w", resolved, err)
		return res
	}

	conf := &fastwalk.Config{Follow: false, NumWorkers: c.opts.workers()}
	if err := fastwalk.Walk(conf, resolved, w.visit); err != nil {
		res.Err = fmt.Errorf("crawl %s: %w", resolved, err)
		return res
	}

	res.Entries = w.resolve()
	res.Total = w.agg.Total(resolved)
	return res
}

func resolveRoot(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("crawl: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("crawl %s: %w", root, err)
	}
	// The selected root may itself be a symlink; only links found during
	// the walk are treated as leaves.
	dir, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("crawl %s: %w", root, err)
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("crawl %s: %w", root, err)
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("crawl %s: %w", root, ErrNotDirectory)
	}
	return dir, nil
}

func (w *walk) visit(path string, d fs.DirEntry, walkErr error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrPanicked, path, r)
		}
	}()
	if cerr := w.ctx.Err(); cerr != nil {
		return cerr
	}

	path = filepath.Clean(path)
	if path == w.root {
		return walkErr
	}
	if walkErr != nil {
		// the directory was entered but could not be listed
		w.stats.skipped.Add(1)
		w.log.Debug().Err(walkErr).Str("path", path).Msg("read failed")
		return nil
	}
	if w.pruned(path) {
		w.stats.pruned.Add(1)
		w.log.Debug().Str("path", path).Msg("pruned")
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	}

	info, err := d.Info()
	if err != nil {
		w.stats.skipped.Add(1)
		w.log.Debug().Err(err).Str("path", path).Msg("metadata read failed")
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	}

	isDir := info.IsDir()
	var size uint64
	if info.Mode().IsRegular() && info.Size() > 0 {
		size = uint64(info.Size())
	}
	w.agg.Observe(path, size, isDir)
	w.stats.visited.Add(1)

	depth := w.depth(path)
	if depth == 1 {
		w.mu.Lock()
		w.top = append(w.top, FileEntry{Path: path, Size: size, IsDir: isDir})
		w.mu.Unlock()
		w.log.Debug().Str("path", path).Bool("dir", isDir).Msg("top-level entry")
	}

	if !isDir {
		return nil
	}
	if w.maxDepth > 0 && depth >= w.maxDepth {
		return filepath.SkipDir
	}
	if err := checkAccess(path); err != nil {
		w.stats.denied.Add(1)
		w.log.Debug().Err(err).Str("path", path).Msg("not descending")
		return filepath.SkipDir
	}
	return nil
}

func (w *walk) pruned(path string) bool {
	for _, p := range w.prune {
		if isUnder(path, p) {
			return true
		}
	}
	return false
}

func (w *walk) depth(path string) int {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// resolve fills directory sizes from the aggregate. It runs after the walk
// has finished, so every contribution has been recorded.
func (w *walk) resolve() []FileEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]FileEntry, len(w.top))
	copy(out, w.top)
	for i := range out {
		if out[i].IsDir {
			out[i].Size = w.agg.Total(out[i].Path)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
