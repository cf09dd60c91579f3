//go:build linux

package platform

import (
	"io/fs"
	"syscall"
)

// FileTimes extracts raw stat timestamps. Linux st_* fields carry no
// birth time, so HasBirth is always false and callers fall back to the
// change time.
func FileTimes(info fs.FileInfo) Times {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		mt := info.ModTime()
		return Times{Accessed: mt, Modified: mt, Changed: mt}
	}
	// Conversions keep this building on 32-bit targets, where the
	// stat fields are int32.
	return Times{
		Accessed: ts(int64(stat.Atim.Sec), int64(stat.Atim.Nsec)),
		Modified: ts(int64(stat.Mtim.Sec), int64(stat.Mtim.Nsec)),
		Changed:  ts(int64(stat.Ctim.Sec), int64(stat.Ctim.Nsec)),
	}
}
