//go:build linux || darwin

package dashboard

import "syscall"

// getDiskStatsForPlatform reads volume usage with statfs. Errors yield zero sizes.
func getDiskStatsForPlatform(path string) *DiskStats {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return &DiskStats{Path: path}
	}

	return &DiskStats{
		Free: stat.Bavail * uint64(stat.Bsize),
		Size: stat.Blocks * uint64(stat.Bsize),
		Path: path,
	}
}
