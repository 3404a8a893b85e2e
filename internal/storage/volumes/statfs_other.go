//go:build !(linux || darwin || freebsd)

package volumes

import "errors"

func Statfs(path string) (FsStats, error) {
	return FsStats{}, errors.New("statfs not supported on this platform")
}
