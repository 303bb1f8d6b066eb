package core

import "errors"

// Terminal resolution outcomes. Per-strategy failures never cross the
// resolver boundary; callers only ever observe one of these.
var (
	// ErrInvalidIdentifier is returned for input that does not normalize to a
	// media identifier. No network call is made.
	ErrInvalidIdentifier = errors.New("invalid_identifier")

	// ErrAllStrategiesExhausted is returned when every configured profile and
	// mirror failed to produce a usable audio stream.
	ErrAllStrategiesExhausted = errors.New("all_strategies_exhausted")

	// ErrTranscodeFailed is returned when the encoder exited non-zero or hit
	// its wall-clock timeout after a strategy had already produced a stream.
	ErrTranscodeFailed = errors.New("transcode_failed")
)

// ErrorKind maps a resolution error to its wire-level kind string.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidIdentifier):
		return "invalid_identifier"
	case errors.Is(err, ErrTranscodeFailed):
		return "transcode_failed"
	case errors.Is(err, ErrAllStrategiesExhausted):
		return "all_strategies_exhausted"
	default:
		return "internal_error"
	}
}
