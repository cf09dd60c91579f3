// Package platform isolates the syscall-level filesystem access that
// differs across operating systems: symlink-safe opens and raw stat
// timestamp fields.
package platform

import "time"

// Times carries the raw stat timestamps of one filesystem item.
// Values are built directly from the stat structure's fractional
// fields, never round-tripped through strings.
type Times struct {
	Accessed time.Time
	Modified time.Time

	// Changed is the inode/metadata change time, used as the creation
	// fallback on platforms without a birth-time field.
	Changed time.Time

	// Birth is the true creation time when the platform records one.
	Birth    time.Time
	HasBirth bool
}

func ts(sec, nsec int64) time.Time {
	return time.Unix(sec, nsec)
}
