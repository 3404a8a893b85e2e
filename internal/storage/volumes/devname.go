package volumes

import (
	"path"
	"strings"
)

// NodeClass describes how a device node fits into the disk/partition
// hierarchy.
type NodeClass struct {
	// Root is the node of the whole device the node belongs to. It equals
	// the node itself when IsRoot is set.
	Root    string
	IsRoot  bool
	Optical bool
}

// families whose partitions are named <disk>p<N>.
var pDelimited = []string{"nvme", "mmcblk", "loop", "nbd", "md"}

// ClassifyNode derives the root device of a /dev node from kernel naming
// conventions:
//
//	/dev/sr0, /dev/cdrom        optical, always a root
//	/dev/nvme0n1p2              partition of /dev/nvme0n1
//	/dev/mmcblk0p1, /dev/loop0p1, /dev/md127p1
//	/dev/dm-3                   root
//	/dev/sda1, /dev/vdb12       partition of /dev/sda, /dev/vdb
//	/dev/sda                    root
func ClassifyNode(node string) NodeClass {
	dir, base := path.Split(node)

	if strings.HasPrefix(base, "sr") || strings.Contains(base, "cdrom") {
		return NodeClass{Root: node, IsRoot: true, Optical: true}
	}
	for _, fam := range pDelimited {
		if !strings.HasPrefix(base, fam) {
			continue
		}
		if disk, ok := splitPartitionSuffix(base); ok {
			return NodeClass{Root: dir + disk}
		}
		return NodeClass{Root: node, IsRoot: true}
	}
	if strings.HasPrefix(base, "dm-") {
		return NodeClass{Root: node, IsRoot: true}
	}

	disk := strings.TrimRight(base, "0123456789")
	if disk == base || disk == "" {
		return NodeClass{Root: node, IsRoot: true}
	}
	return NodeClass{Root: dir + disk}
}

// splitPartitionSuffix splits "nvme0n1p2" into "nvme0n1". The part before
// the final 'p' must itself end in a digit.
func splitPartitionSuffix(base string) (string, bool) {
	i := strings.LastIndexByte(base, 'p')
	if i <= 0 || i == len(base)-1 {
		return "", false
	}
	if !allDigits(base[i+1:]) || !isDigit(base[i-1]) {
		return "", false
	}
	return base[:i], true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return s != ""
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
