//go:build darwin

package util

import (
	"strings"
	"syscall"
)

func detectMount(path string) (*MountInfo, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil, err
	}
	fsType := strings.ToLower(cString(stat.Fstypename[:]))
	return &MountInfo{
		IsNetwork: isNetworkType(fsType) || fsType == "osxfuse",
		Type:      fsType,
		MountPath: cString(stat.Mntonname[:]),
	}, nil
}

// cString converts a null-terminated int8 array to a string
func cString(arr []int8) string {
	b := make([]byte, 0, len(arr))
	for _, c := range arr {
		if c == 0 {
			break
		}
		b = append(b, byte(c))
	}
	return string(b)
}
