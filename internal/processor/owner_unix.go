package processor

import (
	"os"
	"os/user"
	"strconv"
	"syscall"
)

// ownerOf resolves the username owning a /proc/<pid> directory, grounded
// on xtop's collector/security.go use of fi.Sys().(*syscall.Stat_t) for
// direct stat field access.
func ownerOf(info os.FileInfo) string {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return ""
	}
	u, err := user.LookupId(strconv.FormatUint(uint64(stat.Uid), 10))
	if err != nil {
		return strconv.FormatUint(uint64(stat.Uid), 10)
	}
	return u.Username
}
