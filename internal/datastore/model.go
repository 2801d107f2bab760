// model.go defines the persisted detection record
package datastore

import "time"

// Detection is one stored keyword detection.
type Detection struct {
	ID         uint      `gorm:"primaryKey"`
	EventID    string    `gorm:"uniqueIndex;size:36"`
	SourceNode string    `gorm:"size:64"`
	Source     string    `gorm:"size:255"` // capture device or input file
	Label      string    `gorm:"index:idx_detections_label;size:64"`
	Category   int       // index into the label table
	Score      int       // moving sum at the time of firing
	Confidence float64   // Score scaled to 0..1
	DetectedAt time.Time `gorm:"index:idx_detections_detected_at"`
}

// LabelCount is one row of a per-label summary.
type LabelCount struct {
	Label string
	Count int64
	Last  time.Time
}

// ListOptions filters List.
type ListOptions struct {
	Label string
	Since time.Time
	Limit int // 0 means DefaultListLimit
}

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 100
