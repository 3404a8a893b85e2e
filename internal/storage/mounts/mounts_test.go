package mounts

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sample = `sysfs /sys sysfs rw,nosuid,nodev,noexec,relatime 0 0
proc /proc proc rw,nosuid,nodev,noexec,relatime 0 0
/dev/sda1 / ext4 rw,relatime,errors=remount-ro 0 0
/dev/sdb1 /media/usb\040stick vfat rw,nosuid,nodev 0 0
server:/export /mnt/nfs nfs4 rw,relatime,vers=4.2 0 0
short line

/dev/sda1 /srv/bind ext4 rw 0 0
`

func TestParse(t *testing.T) {
	entries, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(entries) != 6 {
		t.Fatalf("expected 6 entries, got %d", len(entries))
	}
	usb := entries[3]
	if usb.Mountpoint != "/media/usb stick" {
		t.Fatalf("escape not decoded: %q", usb.Mountpoint)
	}
	if usb.FSType != "vfat" || !usb.HasOption("nodev") {
		t.Fatalf("unexpected entry: %+v", usb)
	}
	if entries[4].Source != "server:/export" || entries[4].FSType != "nfs4" {
		t.Fatalf("unexpected nfs entry: %+v", entries[4])
	}
}

func TestFindReturnsFirstMount(t *testing.T) {
	entries, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	e, ok := Find(entries, "/dev/sda1")
	if !ok || e.Mountpoint != "/" {
		t.Fatalf("expected first mount of sda1 at /, got %+v ok=%v", e, ok)
	}
	if _, ok := Find(entries, "/dev/sdz9"); ok {
		t.Fatalf("unexpected match")
	}
}

func TestUnescape(t *testing.T) {
	cases := []struct{ in, want string }{
		{`/plain`, "/plain"},
		{`/a\040b`, "/a b"},
		{`/tab\011x`, "/tab\tx"},
		{`/nl\012x`, "/nl\nx"},
		{`/back\134slash`, `/back\slash`},
		{`/two\040\040sp`, "/two  sp"},
		{`/bad\04`, `/bad\04`},
		{`/bad\9zz`, `/bad\9zz`},
		{`/trailing\`, `/trailing\`},
	}
	for _, c := range cases {
		if got := Unescape(c.in); got != c.want {
			t.Fatalf("Unescape(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, ErrMountTable) {
		t.Fatalf("expected ErrMountTable, got %v", err)
	}
}

func TestReadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "mounts")
	if err := os.WriteFile(p, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	entries, err := Read(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 6 {
		t.Fatalf("expected 6 entries, got %d", len(entries))
	}
}
