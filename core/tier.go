package core

import "strings"

// Tier bounds. Tier 1 is the most critical code, tier 6 the least.
const (
	MostCriticalTier  = 1
	LeastCriticalTier = 6
)

// tierPrefixes maps each tier to the path prefixes that fall under it.
var tierPrefixes = [...][]string{
	1: {"mm/", "kernel/sched/", "kernel/locking/", "net/core/", "init/", "lib/"},
	2: {"kernel/bpf/", "kernel/trace/", "kernel/", "net/", "fs/", "block/", "security/", "crypto/", "ipc/", "virt/kvm/"},
	3: {"drivers/gpu/drm/", "drivers/net/", "drivers/scsi/", "drivers/nvme/", "drivers/ata/", "drivers/usb/", "drivers/pci/", "drivers/input/", "sound/", "arch/"},
	4: {"drivers/", "tools/", "samples/", "scripts/"},
	5: {"Documentation/devicetree/", "MAINTAINERS", "CREDITS", ".mailmap"},
	6: {"Documentation/"},
}

// vfsCoreFiles are classified as tier 1 outright.
var vfsCoreFiles = map[string]struct{}{
	"fs/namei.c":      {},
	"fs/read_write.c": {},
	"fs/super.c":      {},
	"fs/inode.c":      {},
}

// criticalityPoints maps a tier to its subsystem_criticality points.
var criticalityPoints = [...]int{1: 10, 2: 8, 3: 6, 4: 4, 5: 2, 6: 1}

// SubsystemTier classifies a set of touched paths into a criticality tier.
// The most critical tier across all files wins; an empty list is tier 6.
func SubsystemTier(files []string) int {
	best := LeastCriticalTier
	for _, f := range files {
		if _, ok := vfsCoreFiles[f]; ok {
			return MostCriticalTier
		}
		if isDeviceTreeSource(f) {
			best = min(best, 5)
			continue
		}
		if tier, ok := matchTier(f); ok {
			best = min(best, tier)
		}
	}
	return best
}

// matchTier returns the most critical tier whose prefix matches path.
func matchTier(path string) (int, bool) {
	lower := strings.ToLower(path)
	for tier := MostCriticalTier; tier <= LeastCriticalTier; tier++ {
		for _, prefix := range tierPrefixes[tier] {
			if strings.HasPrefix(lower, strings.ToLower(prefix)) {
				return tier, true
			}
		}
	}
	return 0, false
}

func isDeviceTreeSource(path string) bool {
	return strings.Contains(path, "/boot/dts/") && (strings.HasSuffix(path, ".dts") || strings.HasSuffix(path, ".dtsi"))
}

// TierCriticalityPoints returns the subsystem_criticality points for a tier,
// or 0 when the tier is out of range.
func TierCriticalityPoints(tier int) int {
	if tier < MostCriticalTier || tier > LeastCriticalTier {
		return 0
	}
	return criticalityPoints[tier]
}
