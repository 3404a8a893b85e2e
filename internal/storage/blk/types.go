package blk

import "context"

// Device is one member of the kernel "block" device class.
type Device struct {
	// Name is the kernel name, e.g. sda1 or nvme0n1p2.
	Name string `json:"name"`
	// DevNode is the device node path, e.g. /dev/sda1. Empty when the
	// kernel did not announce one.
	DevNode     string            `json:"devnode,omitempty"`
	DevType     string            `json:"devtype,omitempty"`
	Major       int               `json:"major"`
	Minor       int               `json:"minor"`
	SizeSectors uint64            `json:"size_sectors"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// Property returns the named device property.
func (d Device) Property(key string) (string, bool) {
	v, ok := d.Properties[key]
	return v, ok
}

// SizeBytes converts the sysfs sector count to bytes.
func (d Device) SizeBytes() uint64 { return d.SizeSectors * SectorSize }

// SectorSize is the fixed unit of the sysfs size attribute.
const SectorSize = 512

// Enumerator lists block devices.
type Enumerator interface {
	Devices(ctx context.Context) ([]Device, error)
}

// EnumeratorFunc adapts a function to Enumerator.
type EnumeratorFunc func(ctx context.Context) ([]Device, error)

func (f EnumeratorFunc) Devices(ctx context.Context) ([]Device, error) { return f(ctx) }
