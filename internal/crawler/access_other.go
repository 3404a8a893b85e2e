//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package crawler

import "os"

func checkAccess(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	return f.Close()
}
