package models

import "time"

// SyncResult holds the result of mirroring the configured paths.
type SyncResult struct {
	SyncedPaths []string
	Unmounted   bool
	Duration    time.Duration
}

// RotationResult holds the result of rotating one frequency tier.
type RotationResult struct {
	Frequency string
	Depth     int
	Deleted   bool // the oldest generation existed and was removed
	Shifted   int  // generations renamed one slot older
	Created   string
	Duration  time.Duration
}

// Generation is one snapshot directory found on disk.
type Generation struct {
	Frequency string
	Index     int
	Path      string
	ModTime   time.Time
}
