//go:build !linux && !darwin && !windows

package platform

import "io/fs"

// FileTimes extracts what this platform exposes portably: only the
// modification time. Access and change times mirror it.
func FileTimes(info fs.FileInfo) Times {
	mt := info.ModTime()
	return Times{Accessed: mt, Modified: mt, Changed: mt}
}
