package core

import "time"

// TrackMetadata describes the media item behind an identifier, as reported
// by whichever strategy resolved it. Best effort; fields may be empty.
type TrackMetadata struct {
	Title       string
	Uploader    string
	DurationSec int
	BitrateKbps int
	Strategy    string
}

// PlayRecord is one append-only history row for a served resolution.
type PlayRecord struct {
	Identifier string    `json:"id"`
	Title      string    `json:"title"`
	CacheHit   bool      `json:"cache_hit"`
	FirstPlay  bool      `json:"first_play"`
	At         time.Time `json:"at"`
}
