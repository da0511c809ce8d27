//go:build unix

package device

import (
	"golang.org/x/sys/unix"
)

func systemVersion() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return ""
	}
	return unix.ByteSliceToString(uts.Release[:])
}
