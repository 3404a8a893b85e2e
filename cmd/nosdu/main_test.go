package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nithronos/nosdu/internal/crawler"
	"nithronos/nosdu/internal/storage/volumes"
)

func init() {
	color.NoColor = true
}

func TestUsageBar(t *testing.T) {
	assert.Equal(t, "[##########          ]  50%", usageBar(50, 100))
	assert.Equal(t, "[####################] 100%", usageBar(200, 100))
	assert.True(t, strings.HasSuffix(usageBar(1, 0), "-"))
}

func TestRenderDrives(t *testing.T) {
	var buf bytes.Buffer
	renderDrives(&buf, volumes.Drives{
		volumes.Disk{
			Model: "Samsung SSD", RootDevice: "/dev/sda", TotalSpace: 1 << 30,
			Partitions: []volumes.Partition{{Device: "/dev/sda1", MountPoint: "/", FileSystem: "ext4", TotalSpace: 1 << 30, UsedSpace: 1 << 29}},
		},
		volumes.NetworkDrive{MountPoint: "/mnt/nfs", FileSystem: "nfs4", TotalSpace: 100, UsedSpace: 25},
	})
	out := buf.String()
	assert.Contains(t, out, "Samsung SSD (/dev/sda, 1.0 GiB)")
	assert.Contains(t, out, "/dev/sda1")
	assert.Contains(t, out, "512 MiB / 1.0 GiB")
	assert.Contains(t, out, "/mnt/nfs (network nfs4)")

	buf.Reset()
	renderDrives(&buf, nil)
	assert.Equal(t, "No mounted drives found\n", buf.String())
}

func TestRenderCrawlLargestFirst(t *testing.T) {
	var buf bytes.Buffer
	renderCrawl(&buf, crawler.Result{
		Root:  "/srv",
		Total: 3072,
		Entries: []crawler.FileEntry{
			{Path: "/srv/a", Size: 1024, IsDir: true},
			{Path: "/srv/b.bin", Size: 2048},
		},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "/srv")
	assert.Contains(t, lines[1], "b.bin")
	assert.Contains(t, lines[2], "a/")
}

func TestProgressLine(t *testing.T) {
	got := progressLine("/home", crawler.Progress{Visited: 12345, Skipped: 2, Denied: 1})
	assert.Equal(t, "Scanning /home: 12,345 objects, 2 skipped, 1 denied", got)
}

func TestCommandsEndToEnd(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	// fake registry: one mounted partition on /
	class := filepath.Join(dir, "class")
	udev := filepath.Join(dir, "udev")
	require.NoError(t, os.MkdirAll(filepath.Join(class, "vda1"), 0o755))
	require.NoError(t, os.MkdirAll(udev, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(class, "vda1", "uevent"), []byte("MAJOR=252\nMINOR=1\nDEVNAME=vda1\nDEVTYPE=partition\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(udev, "b252:1"), []byte("E:ID_MODEL=Virtual_Disk\n"), 0o644))
	mountsPath := filepath.Join(dir, "mounts")
	require.NoError(t, os.WriteFile(mountsPath, []byte("/dev/vda1 / ext4 rw 0 0\n"), 0o644))

	t.Setenv("NOSDU_VOLUMES_SYS_BLOCK_PATH", class)
	t.Setenv("NOSDU_VOLUMES_UDEV_DATA_PATH", udev)
	t.Setenv("NOSDU_VOLUMES_MOUNTS_PATH", mountsPath)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"drives", "--json"})
	require.NoError(t, rootCmd.Execute())

	var drives []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &drives))
	require.Len(t, drives, 1)
	assert.Equal(t, "local", drives[0]["kind"])
	disk := drives[0]["disk"].(map[string]any)
	assert.Equal(t, "/dev/vda", disk["root_device"])
	// the whole-disk node is absent from the registry
	assert.Equal(t, "Unknown Model", disk["model"])

	tree := filepath.Join(dir, "tree")
	require.NoError(t, os.MkdirAll(filepath.Join(tree, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tree, "sub", "f"), make([]byte, 2048), 0o644))

	out.Reset()
	outputJSON = false
	rootCmd.SetArgs([]string{"crawl", tree, "--json", "--workers", "2"})
	require.NoError(t, rootCmd.Execute())
	var res struct {
		Total   uint64              `json:"total"`
		Entries []crawler.FileEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, uint64(2048), res.Total)
	require.Len(t, res.Entries, 1)
	assert.True(t, res.Entries[0].IsDir)

	out.Reset()
	outputJSON = false
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "nosdu version dev")
}
