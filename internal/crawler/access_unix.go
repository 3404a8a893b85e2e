//go:build linux || darwin || freebsd || netbsd || openbsd

package crawler

import "golang.org/x/sys/unix"

// checkAccess reports whether the current user may list and enter dir.
func checkAccess(dir string) error {
	return unix.Access(dir, unix.R_OK|unix.X_OK)
}
