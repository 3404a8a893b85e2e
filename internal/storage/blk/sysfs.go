// Package blk enumerates block devices from sysfs and the udev database.
package blk

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const (
	DefaultClassPath    = "/sys/class/block"
	DefaultUdevDataPath = "/run/udev/data"
)

// ErrRegistryUnavailable is returned when the block class cannot be listed.
var ErrRegistryUnavailable = errors.New("device registry unavailable")

// Sysfs reads the block class from sysfs and merges each device's udev
// properties. Per-device read failures leave fields empty.
type Sysfs struct {
	ClassPath    string
	UdevDataPath string
	Logger       zerolog.Logger
}

// NewSysfs returns a Sysfs enumerator on the default kernel paths.
func NewSysfs(log zerolog.Logger) *Sysfs {
	return &Sysfs{ClassPath: DefaultClassPath, UdevDataPath: DefaultUdevDataPath, Logger: log}
}

func (s *Sysfs) Devices(ctx context.Context) ([]Device, error) {
	classPath := s.ClassPath
	if classPath == "" {
		classPath = DefaultClassPath
	}
	udevPath := s.UdevDataPath
	if udevPath == "" {
		udevPath = DefaultUdevDataPath
	}
	ents, err := os.ReadDir(classPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	out := make([]Device, 0, len(ents))
	for _, e := range ents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, s.readDevice(filepath.Join(classPath, e.Name()), udevPath, e.Name()))
	}
	return out, nil
}

func (s *Sysfs) readDevice(dir, udevPath, name string) Device {
	d := Device{Name: name, Properties: map[string]string{}}

	uevent, err := readKeyValues(filepath.Join(dir, "uevent"), "")
	if err != nil {
		s.Logger.Debug().Err(err).Str("device", name).Msg("uevent unreadable")
	}
	for k, v := range uevent {
		d.Properties[k] = v
	}
	d.DevType = uevent["DEVTYPE"]
	d.Major, _ = strconv.Atoi(uevent["MAJOR"])
	d.Minor, _ = strconv.Atoi(uevent["MINOR"])
	if dn := uevent["DEVNAME"]; dn != "" {
		d.DevNode = "/dev/" + strings.TrimPrefix(dn, "/dev/")
	}

	if b, err := os.ReadFile(filepath.Join(dir, "size")); err == nil {
		d.SizeSectors, _ = strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
	}

	if _, ok := uevent["MAJOR"]; ok {
		rec := filepath.Join(udevPath, fmt.Sprintf("b%d:%d", d.Major, d.Minor))
		props, err := readKeyValues(rec, "E:")
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			s.Logger.Debug().Err(err).Str("device", name).Msg("udev record unreadable")
		}
		for k, v := range props {
			d.Properties[k] = v
		}
	}
	return d
}

// readKeyValues parses KEY=VALUE lines, keeping only lines that start with
// prefix (which is stripped).
func readKeyValues(path, prefix string) (map[string]string, error) {
	out := map[string]string{}
	f, err := os.Open(path)
	if err != nil {
		return out, err
	}
	defer f.Close()
	scan := bufio.NewScanner(f)
	for scan.Scan() {
		line := scan.Text()
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		k, v, ok := strings.Cut(strings.TrimPrefix(line, prefix), "=")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out, scan.Err()
}
