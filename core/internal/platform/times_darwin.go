//go:build darwin

package platform

import (
	"io/fs"
	"syscall"
)

// FileTimes extracts raw stat timestamps, including the APFS/HFS+
// birth time.
func FileTimes(info fs.FileInfo) Times {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		mt := info.ModTime()
		return Times{Accessed: mt, Modified: mt, Changed: mt}
	}
	t := Times{
		Accessed: ts(stat.Atimespec.Sec, stat.Atimespec.Nsec),
		Modified: ts(stat.Mtimespec.Sec, stat.Mtimespec.Nsec),
		Changed:  ts(stat.Ctimespec.Sec, stat.Ctimespec.Nsec),
	}
	if stat.Birthtimespec.Sec != 0 || stat.Birthtimespec.Nsec != 0 {
		t.Birth = ts(stat.Birthtimespec.Sec, stat.Birthtimespec.Nsec)
		t.HasBirth = true
	}
	return t
}
