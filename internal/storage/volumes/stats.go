package volumes

// FsStats is the capacity of a mounted filesystem in bytes.
type FsStats struct {
	Total uint64
	Free  uint64
}

// Used is Total minus Free, never negative.
func (s FsStats) Used() uint64 {
	if s.Free >= s.Total {
		return 0
	}
	return s.Total - s.Free
}

// StatFunc queries filesystem capacity for a mount point.
type StatFunc func(mountPoint string) (FsStats, error)
