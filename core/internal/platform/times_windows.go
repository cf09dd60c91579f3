//go:build windows

package platform

import (
	"io/fs"
	"syscall"
	"time"
)

// FileTimes extracts raw file timestamps. Windows records a true
// creation time; there is no separate metadata-change time, so Changed
// mirrors Modified.
func FileTimes(info fs.FileInfo) Times {
	attr, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		mt := info.ModTime()
		return Times{Accessed: mt, Modified: mt, Changed: mt}
	}
	modified := time.Unix(0, attr.LastWriteTime.Nanoseconds())
	return Times{
		Accessed: time.Unix(0, attr.LastAccessTime.Nanoseconds()),
		Modified: modified,
		Changed:  modified,
		Birth:    time.Unix(0, attr.CreationTime.Nanoseconds()),
		HasBirth: true,
	}
}
