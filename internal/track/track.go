package track

import "time"

// Track is the persisted metadata of one completed transcode.
type Track struct {
	TrackID   *int64    `json:"track_id,omitempty"`
	Title     string    `json:"title"`
	Duration  string    `json:"duration"`
	CreatedAt time.Time `json:"created_at"`
}
