// Package mounts reads the kernel mount table.
package mounts

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultPath is where the kernel exposes the mount table.
const DefaultPath = "/proc/mounts"

// ErrMountTable is returned when the mount table cannot be read at all.
var ErrMountTable = errors.New("mount table unavailable")

// Mount is one record of the mount table. Mountpoint has octal escapes such
// as \040 decoded.
type Mount struct {
	Source     string   `json:"source"`
	Mountpoint string   `json:"mountpoint"`
	FSType     string   `json:"fstype"`
	Options    []string `json:"options,omitempty"`
}

// HasOption reports whether opt appears in the mount options.
func (e Mount) HasOption(opt string) bool {
	for _, o := range e.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// Read parses the mount table at path.
func Read(path string) ([]Mount, error) {
	if path == "" {
		path = DefaultPath
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMountTable, err)
	}
	defer f.Close()
	entries, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMountTable, err)
	}
	return entries, nil
}

// Parse reads mount table lines from r. Lines with fewer than three fields
// are ignored.
func Parse(r io.Reader) ([]Mount, error) {
	out := []Mount{}
	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scan.Scan() {
		fields := strings.Fields(scan.Text())
		if len(fields) < 3 {
			continue
		}
		e := Mount{
			Source:     Unescape(fields[0]),
			Mountpoint: Unescape(fields[1]),
			FSType:     fields[2],
		}
		if len(fields) > 3 && fields[3] != "" {
			e.Options = strings.Split(fields[3], ",")
		}
		out = append(out, e)
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Unescape decodes the three-digit octal escapes the kernel uses for
// whitespace and backslashes in mount table fields. Malformed escapes are
// kept verbatim.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && isOctal(s[i+1]) && isOctal(s[i+2]) && isOctal(s[i+3]) {
			v := (s[i+1]-'0')<<6 | (s[i+2]-'0')<<3 | (s[i+3] - '0')
			b.WriteByte(v)
			i += 3
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isOctal(c byte) bool { return c >= '0' && c <= '7' }

// Find returns the first entry whose source is device.
func Find(entries []Mount, device string) (Mount, bool) {
	for _, e := range entries {
		if e.Source == device {
			return e, true
		}
	}
	return Mount{}, false
}
