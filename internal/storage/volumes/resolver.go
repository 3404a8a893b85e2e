// Package volumes resolves the storage topology of the host: which block
// devices carry mounted filesystems, how they group into physical disks,
// and which network filesystems are mounted.
package volumes

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"nithronos/nosdu/internal/storage/blk"
	"nithronos/nosdu/internal/storage/mounts"
)

// DefaultDenylist holds node-path substrings of devices that never carry
// user storage.
var DefaultDenylist = []string{"zram", "snd", "drm", "cpu", "hid"}

const (
	unknownModel = "Unknown Model"
	unknownDisc  = "Unknown Disc"

	iconOptical   = "drive-optical"
	iconSSD       = "drive-harddisk-solidstate"
	iconHDD       = "drive-harddisk"
	iconRemovable = "drive-removable-media"
	iconFloppy    = "drive-floppy"
)

// Options configures a Resolver. Zero values select the live system.
type Options struct {
	Devices    blk.Enumerator
	MountsPath string
	Stat       StatFunc
	Denylist   []string
	Verbose    bool
	Logger     zerolog.Logger
}

// Resolver builds the drive list from the device registry and the mount
// table.
type Resolver struct {
	devices    blk.Enumerator
	mountsPath string
	stat       StatFunc
	denylist   []string
	log        zerolog.Logger
}

func NewResolver(opts Options) *Resolver {
	log := zerolog.Nop()
	if opts.Verbose {
		log = opts.Logger.With().Str("component", "volumes").Logger()
	}
	r := &Resolver{
		devices:    opts.Devices,
		mountsPath: opts.MountsPath,
		stat:       opts.Stat,
		denylist:   opts.Denylist,
		log:        log,
	}
	if r.devices == nil {
		r.devices = blk.NewSysfs(log)
	}
	if r.mountsPath == "" {
		r.mountsPath = mounts.DefaultPath
	}
	if r.stat == nil {
		r.stat = Statfs
	}
	if r.denylist == nil {
		r.denylist = DefaultDenylist
	}
	return r
}

type group struct {
	root    string
	optical bool
	icon    string
	parts   []Partition
}

// Resolve runs one full pass: local disks in discovery order followed by
// network drives in mount-table order. Only a failure to read the device
// registry or the mount table is returned as an error.
func (r *Resolver) Resolve(ctx context.Context) (Drives, error) {
	devs, err := r.devices.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate block devices: %w", err)
	}
	table, err := mounts.Read(r.mountsPath)
	if err != nil {
		return nil, fmt.Errorf("read mounts: %w", err)
	}

	drives, err := r.localDisks(ctx, devs, table)
	if err != nil {
		return nil, err
	}
	local := len(drives)
	drives = append(drives, r.networkDrives(table)...)
	r.log.Debug().Int("local", local).Int("network", len(drives)-local).Msg("resolved drives")
	return drives, nil
}

func (r *Resolver) localDisks(ctx context.Context, devs []blk.Device, table []mounts.Mount) (Drives, error) {
	var order []*group
	byRoot := map[string]*group{}
	byNode := map[string]*blk.Device{}
	seen := map[string]bool{}

	for i := range devs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dev := &devs[i]
		node := dev.DevNode
		if node != "" {
			if _, ok := byNode[node]; !ok {
				byNode[node] = dev
			}
		}
		if !strings.HasPrefix(node, "/dev/") || r.denied(node) || seen[node] {
			continue
		}
		seen[node] = true

		m, ok := mounts.Find(table, node)
		if !ok {
			r.log.Debug().Str("device", node).Msg("skipping, not mounted")
			continue
		}
		if m.FSType == "" || m.FSType == "unknown" {
			r.log.Debug().Str("device", node).Msg("skipping, no filesystem")
			continue
		}

		cls := ClassifyNode(node)
		part := Partition{Device: node, MountPoint: m.Mountpoint, FileSystem: m.FSType}
		part.TotalSpace, part.UsedSpace = r.usage(dev, m.Mountpoint, cls.Optical)
		icon := iconFor(dev, cls.Optical)
		r.log.Debug().Str("device", node).Str("fs", m.FSType).Str("root", cls.Root).Str("icon", icon).Msg("mounted device")

		g, ok := byRoot[cls.Root]
		if !ok {
			g = &group{root: cls.Root, optical: cls.Optical, icon: icon}
			byRoot[cls.Root] = g
			order = append(order, g)
		}
		g.parts = append(g.parts, part)
	}

	out := make(Drives, 0, len(order))
	for _, g := range order {
		d := Disk{
			Model:      modelFor(byNode[g.root], g.optical),
			RootDevice: g.root,
			Partitions: g.parts,
			IsCDROM:    g.optical,
			IconName:   g.icon,
		}
		if g.optical {
			d.IconName = iconOptical
		}
		for _, p := range g.parts {
			d.TotalSpace += p.TotalSpace
		}
		r.log.Debug().Str("root", g.root).Str("model", d.Model).Int("partitions", len(g.parts)).Msg("disk")
		out = append(out, d)
	}
	return out, nil
}

func (r *Resolver) usage(dev *blk.Device, mountPoint string, optical bool) (total, used uint64) {
	st, err := r.stat(mountPoint)
	if optical {
		// read-only media is always full
		if err != nil {
			size := dev.SizeBytes()
			r.log.Debug().Err(err).Str("device", dev.DevNode).Uint64("size", size).Msg("optical size from registry")
			return size, size
		}
		return st.Total, st.Total
	}
	if err != nil {
		r.log.Debug().Err(err).Str("device", dev.DevNode).Str("mount", mountPoint).Msg("statfs failed")
		return 0, 0
	}
	return st.Total, st.Used()
}

func (r *Resolver) networkDrives(table []mounts.Mount) Drives {
	out := Drives{}
	for _, m := range table {
		if !IsNetworkFS(m.FSType) {
			continue
		}
		st, err := r.stat(m.Mountpoint)
		if err != nil {
			r.log.Debug().Err(err).Str("mount", m.Mountpoint).Msg("statfs failed on network drive")
			continue
		}
		out = append(out, NetworkDrive{
			MountPoint: m.Mountpoint,
			FileSystem: m.FSType,
			TotalSpace: st.Total,
			UsedSpace:  st.Used(),
		})
		r.log.Debug().Str("mount", m.Mountpoint).Str("fs", m.FSType).Msg("network drive")
	}
	return out
}

func (r *Resolver) denied(node string) bool {
	for _, s := range r.denylist {
		if s != "" && strings.Contains(node, s) {
			return true
		}
	}
	return false
}

// IsNetworkFS reports whether fstype is a remote filesystem.
func IsNetworkFS(fstype string) bool {
	return strings.HasPrefix(fstype, "nfs") || fstype == "cifs" || fstype == "smbfs"
}

func iconFor(dev *blk.Device, optical bool) string {
	if optical {
		return iconOptical
	}
	media, _ := dev.Property("ID_DRIVE_MEDIA")
	switch media {
	case "solidstate":
		return iconSSD
	case "disk":
		return iconHDD
	case "flash", "usb":
		return iconRemovable
	case "floppy":
		return iconFloppy
	}
	if bus, _ := dev.Property("ID_BUS"); bus == "usb" {
		return iconRemovable
	}
	return iconHDD
}

func modelFor(dev *blk.Device, optical bool) string {
	def, keys := unknownModel, []string{"ID_MODEL", "ID_MODEL_ID"}
	if optical {
		def, keys = unknownDisc, []string{"ID_FS_LABEL", "ID_MODEL"}
	}
	if dev == nil {
		return def
	}
	for _, k := range keys {
		if v, ok := dev.Property(k); ok && v != "" {
			return strings.ReplaceAll(v, "_", " ")
		}
	}
	return def
}
