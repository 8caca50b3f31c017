//go:build linux

package util

import (
	"os"
	"syscall"
)

// networkMagic are statfs f_type values of network filesystems
var networkMagic = map[uint32]string{
	0x6969:     "nfs",
	0xff534d42: "cifs",
	0x517b:     "smb",
	0xfe534d42: "smb2",
	0x564c:     "ncp",
}

func detectMount(path string) (*MountInfo, error) {
	info := &MountInfo{}

	if f, err := os.Open("/proc/mounts"); err == nil {
		mounts, err := parseMounts(f)
		f.Close()
		if err == nil {
			if mp, fsType, ok := mounts.lookup(path); ok {
				info.MountPath, info.Type = mp, fsType
				info.IsNetwork = isNetworkType(fsType)
				return info, nil
			}
		}
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil, err
	}
	if fsType, ok := networkMagic[uint32(stat.Type)]; ok {
		info.IsNetwork, info.Type = true, fsType
	}
	return info, nil
}
