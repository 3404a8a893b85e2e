package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"nithronos/nosdu/internal/crawler"
	"nithronos/nosdu/internal/storage/volumes"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	dimColor    = color.New(color.Faint)
	dirColor    = color.New(color.FgBlue, color.Bold)
)

const barWidth = 20

func usageBar(used, total uint64) string {
	if total == 0 {
		return "[" + strings.Repeat(" ", barWidth) + "]    -"
	}
	frac := float64(used) / float64(total)
	if frac > 1 {
		frac = 1
	}
	n := int(frac*barWidth + 0.5)
	return fmt.Sprintf("[%s%s] %3.0f%%", strings.Repeat("#", n), strings.Repeat(" ", barWidth-n), frac*100)
}

func renderDrives(w io.Writer, drives volumes.Drives) {
	if len(drives) == 0 {
		fmt.Fprintln(w, "No mounted drives found")
		return
	}
	for _, d := range drives {
		volumes.Match(d,
			func(disk volumes.Disk) struct{} {
				kind := ""
				if disk.IsCDROM {
					kind = " optical"
				}
				headerColor.Fprintf(w, "%s", disk.Model)
				dimColor.Fprintf(w, " (%s%s, %s)\n", disk.RootDevice, kind, humanize.IBytes(disk.TotalSpace))
				for _, p := range disk.Partitions {
					fmt.Fprintf(w, "  %-16s %-24s %-8s %s  %s / %s\n",
						p.Device, p.MountPoint, p.FileSystem,
						usageBar(p.UsedSpace, p.TotalSpace),
						humanize.IBytes(p.UsedSpace), humanize.IBytes(p.TotalSpace))
				}
				return struct{}{}
			},
			func(n volumes.NetworkDrive) struct{} {
				headerColor.Fprintf(w, "%s", n.MountPoint)
				dimColor.Fprintf(w, " (network %s)\n", n.FileSystem)
				fmt.Fprintf(w, "  %s  %s / %s\n",
					usageBar(n.UsedSpace, n.TotalSpace),
					humanize.IBytes(n.UsedSpace), humanize.IBytes(n.TotalSpace))
				return struct{}{}
			},
		)
	}
}

// renderCrawl lists entries largest first.
func renderCrawl(w io.Writer, res crawler.Result) {
	entries := make([]crawler.FileEntry, len(res.Entries))
	copy(entries, res.Entries)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Size > entries[j].Size })

	headerColor.Fprintf(w, "%s", res.Root)
	dimColor.Fprintf(w, "  %s in %d entries\n", humanize.IBytes(res.Total), len(entries))
	for _, e := range entries {
		name := filepath.Base(e.Path)
		if e.IsDir {
			name = dirColor.Sprint(name + "/")
		}
		fmt.Fprintf(w, "%10s  %s  %s\n", humanize.IBytes(e.Size), usageBar(e.Size, res.Total), name)
	}
	if p := res.Progress; p.Skipped+p.Denied > 0 {
		dimColor.Fprintf(w, "%d objects unreadable, %d directories not entered\n", p.Skipped, p.Denied)
	}
}

func progressLine(root string, p crawler.Progress) string {
	return fmt.Sprintf("Scanning %s: %s objects, %d skipped, %d denied",
		root, humanize.Comma(p.Visited), p.Skipped, p.Denied)
}
