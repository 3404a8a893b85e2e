//go:build linux || darwin || freebsd

package volumes

import "golang.org/x/sys/unix"

// Statfs queries the filesystem mounted at path.
func Statfs(path string) (FsStats, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return FsStats{}, err
	}
	bsize := uint64(st.Bsize)
	return FsStats{Total: uint64(st.Blocks) * bsize, Free: uint64(st.Bfree) * bsize}, nil
}
