// Package extract obtains audio stream candidates for a media identifier
// from the upstream video-info backend and from mirror APIs, and selects the
// best candidate by bitrate.
package extract

import "errors"

// ErrNoAudioStream is returned when no audio-only candidate with a usable
// URL survives filtering.
var ErrNoAudioStream = errors.New("no usable audio stream")

// Candidate is one normalized stream descriptor. Extractors translate
// whatever shape their upstream returns into this type; nothing else in the
// system sees upstream payloads.
type Candidate struct {
	URL         string
	BitrateKbps int
	AudioOnly   bool
}

// Extraction is the outcome of one successful extractor call: the candidate
// list plus whatever item metadata the upstream reported.
type Extraction struct {
	Candidates  []Candidate
	Title       string
	Uploader    string
	DurationSec int
}

// SelectBest picks the single best audio-only candidate: maximum bitrate
// among audio-only candidates with a non-empty URL, ties broken by
// first-seen order. Deterministic and side-effect free.
func SelectBest(candidates []Candidate) (Candidate, error) {
	best := -1
	for i, c := range candidates {
		if !c.AudioOnly || c.URL == "" {
			continue
		}
		if best < 0 || c.BitrateKbps > candidates[best].BitrateKbps {
			best = i
		}
	}
	if best < 0 {
		return Candidate{}, ErrNoAudioStream
	}
	return candidates[best], nil
}
