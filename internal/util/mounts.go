package util

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MountInfo describes the filesystem a path lives on
type MountInfo struct {
	IsNetwork bool   // network-mounted; SQLite locking and WAL are unreliable there
	Type      string // filesystem type (nfs, cifs, smbfs, ...) when known
	MountPath string
}

// networkTypes are filesystem type names that indicate a network mount
var networkTypes = []string{"nfs", "cifs", "smb", "smbfs", "ncpfs", "afpfs", "webdav", "fuse.sshfs", "fuse.rclone"}

func isNetworkType(fsType string) bool {
	fsType = strings.ToLower(fsType)
	for _, t := range networkTypes {
		if strings.Contains(fsType, t) {
			return true
		}
	}
	return false
}

// DetectMount reports which filesystem holds path. A path that does not
// exist yet is resolved through its nearest existing parent.
func DetectMount(path string) (*MountInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	return detectMount(existingParent(abs))
}

// IsNetworkPath reports whether path is on a network filesystem
func IsNetworkPath(path string) bool {
	info, err := DetectMount(path)
	if err != nil {
		return false
	}
	return info.IsNetwork
}

func existingParent(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}

// mountTable maps mount points to filesystem types
type mountTable map[string]string

// parseMounts reads the /proc/mounts format: device, mount point, type, ...
func parseMounts(r io.Reader) (mountTable, error) {
	mounts := mountTable{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mounts[unescapeMount(fields[1])] = fields[2]
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return mounts, nil
}

// lookup returns the longest mount point containing path
func (m mountTable) lookup(path string) (mountPoint, fsType string, ok bool) {
	for mp, t := range m {
		if !within(path, mp) || (ok && len(mp) <= len(mountPoint)) {
			continue
		}
		mountPoint, fsType, ok = mp, t, true
	}
	return mountPoint, fsType, ok
}

func within(path, mountPoint string) bool {
	if mountPoint == "/" || path == mountPoint {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(mountPoint, "/")+"/")
}

// unescapeMount decodes the octal escapes /proc/mounts uses for spaces and tabs
func unescapeMount(s string) string {
	return strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`).Replace(s)
}
