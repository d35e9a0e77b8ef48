//go:build linux

package workspace

import "golang.org/x/sys/unix"

// Filesystem magic numbers for network filesystems where flock semantics
// are unreliable (see statfs(2)).
const (
	nfsSuperMagic  = 0x6969
	smbSuperMagic  = 0x517b
	smb2SuperMagic = 0xfe534d42
	cifsSuperMagic = 0xff534d42
)

// detectNetworkFilesystem reports whether root lives on a filesystem type
// known to mishandle advisory locks. Detection failures are returned to the
// caller, which treats them as "no signal" rather than an error.
func detectNetworkFilesystem(root string) (bool, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(root, &stat); err != nil {
		return false, err
	}
	switch stat.Type {
	case nfsSuperMagic, smbSuperMagic, smb2SuperMagic, cifsSuperMagic:
		return true, nil
	}
	return false, nil
}
