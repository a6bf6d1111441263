package store

import "time"

// Stats represents well_segments statistics
type Stats struct {
	Total      int64 `db:"total" json:"total"`
	Names      int64 `db:"names" json:"names"`
	Vertical   int64 `db:"vertical" json:"vertical"`
	Horizontal int64 `db:"horizontal" json:"horizontal"`
}

// BatchInsertResult represents the result of a batch insert operation
type BatchInsertResult struct {
	Inserted   int64         `json:"inserted"`
	Duplicates int64         `json:"duplicates"`
	Failed     int64         `json:"failed"`
	Duration   time.Duration `json:"duration"`
}
