package crawler

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
)

// DefaultPruneRoots are the virtual filesystems whose sizes are meaningless
// and whose trees can hang a walk.
var DefaultPruneRoots = []string{"/proc", "/sys", "/dev"}

// Options configures a Crawler. The zero value crawls with the default
// worker count, unbounded depth and the default prune roots.
type Options struct {
	// Workers bounds the number of concurrent directory readers. Values
	// below 1 select DefaultWorkers().
	Workers int
	// MaxDepth limits descent. Directories at MaxDepth are reported but
	// not read. 0 means unbounded.
	MaxDepth int
	// PruneRoots are skipped entirely at first encounter. nil selects
	// DefaultPruneRoots; an empty non-nil slice prunes nothing.
	PruneRoots []string
	// Verbose enables per-object diagnostics. It never changes results.
	Verbose bool
	Logger  zerolog.Logger
}

// DefaultWorkers returns the logical CPU count.
func DefaultWorkers() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return DefaultWorkers()
}

func (o Options) pruneRoots() []string {
	roots := o.PruneRoots
	if roots == nil {
		roots = DefaultPruneRoots
	}
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if strings.TrimSpace(r) == "" {
			continue
		}
		out = append(out, filepath.Clean(r))
	}
	return out
}

func isUnder(path, root string) bool {
	if path == root {
		return true
	}
	if root == string(filepath.Separator) {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
