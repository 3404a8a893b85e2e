package volumes

import (
	"encoding/json"
	"fmt"
)

// Partition is one mounted filesystem on a local device. UsedSpace never
// exceeds TotalSpace; both are zero when the filesystem could not be
// queried.
type Partition struct {
	Device     string `json:"device" yaml:"device"`
	MountPoint string `json:"mount_point" yaml:"mount_point"`
	TotalSpace uint64 `json:"total_space" yaml:"total_space"`
	UsedSpace  uint64 `json:"used_space" yaml:"used_space"`
	FileSystem string `json:"file_system" yaml:"file_system"`
}

// Disk groups the mounted partitions that share one root device.
type Disk struct {
	Model      string      `json:"model" yaml:"model"`
	RootDevice string      `json:"root_device" yaml:"root_device"`
	TotalSpace uint64      `json:"total_space" yaml:"total_space"`
	Partitions []Partition `json:"partitions" yaml:"partitions"`
	IsCDROM    bool        `json:"is_cdrom" yaml:"is_cdrom"`
	IconName   string      `json:"icon_name" yaml:"icon_name"`
}

// UsedSpace sums the used space of every partition.
func (d Disk) UsedSpace() uint64 {
	var n uint64
	for _, p := range d.Partitions {
		n += p.UsedSpace
	}
	return n
}

// NetworkDrive is a mounted remote filesystem.
type NetworkDrive struct {
	MountPoint string `json:"mount_point" yaml:"mount_point"`
	FileSystem string `json:"file_system" yaml:"file_system"`
	UsedSpace  uint64 `json:"used_space" yaml:"used_space"`
	TotalSpace uint64 `json:"total_space" yaml:"total_space"`
}

// Drive is either a Disk or a NetworkDrive. The set is closed; use Match
// to handle both cases.
type Drive interface {
	isDrive()
	Kind() string
}

const (
	KindLocal   = "local"
	KindNetwork = "network"
)

func (Disk) isDrive()         {}
func (NetworkDrive) isDrive() {}

func (Disk) Kind() string         { return KindLocal }
func (NetworkDrive) Kind() string { return KindNetwork }

// Match dispatches d to the handler for its variant.
func Match[T any](d Drive, onLocal func(Disk) T, onNetwork func(NetworkDrive) T) T {
	switch v := d.(type) {
	case Disk:
		return onLocal(v)
	case *Disk:
		return onLocal(*v)
	case NetworkDrive:
		return onNetwork(v)
	case *NetworkDrive:
		return onNetwork(*v)
	}
	panic(fmt.Sprintf("volumes: unknown drive type %T", d))
}

type driveJSON struct {
	Kind    string        `json:"kind" yaml:"kind"`
	Disk    *Disk         `json:"disk,omitempty" yaml:"disk,omitempty"`
	Network *NetworkDrive `json:"network,omitempty" yaml:"network,omitempty"`
}

func wrap(d Drive) driveJSON {
	return Match(d,
		func(l Disk) driveJSON { return driveJSON{Kind: KindLocal, Disk: &l} },
		func(n NetworkDrive) driveJSON { return driveJSON{Kind: KindNetwork, Network: &n} },
	)
}

// Drives is an ordered drive list with a tagged JSON and YAML encoding.
type Drives []Drive

func (ds Drives) MarshalJSON() ([]byte, error) {
	out := make([]driveJSON, 0, len(ds))
	for _, d := range ds {
		out = append(out, wrap(d))
	}
	return json.Marshal(out)
}

func (ds *Drives) UnmarshalJSON(b []byte) error {
	var raw []driveJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(Drives, 0, len(raw))
	for _, r := range raw {
		switch {
		case r.Kind == KindLocal && r.Disk != nil:
			out = append(out, *r.Disk)
		case r.Kind == KindNetwork && r.Network != nil:
			out = append(out, *r.Network)
		default:
			return fmt.Errorf("volumes: invalid drive kind %q", r.Kind)
		}
	}
	*ds = out
	return nil
}

func (ds Drives) MarshalYAML() (any, error) {
	out := make([]driveJSON, 0, len(ds))
	for _, d := range ds {
		out = append(out, wrap(d))
	}
	return out, nil
}

// Counts returns the number of local and network drives.
func (ds Drives) Counts() (local, network int) {
	for _, d := range ds {
		if d.Kind() == KindLocal {
			local++
		} else {
			network++
		}
	}
	return local, network
}
