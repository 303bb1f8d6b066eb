// Package mediaid normalizes user input to an opaque media identifier.
//
// Callers may hand in a bare identifier token or any of the recognized URL
// shapes; everything downstream only ever sees the normalized token.
package mediaid

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalid is returned when the input cannot be normalized to an
// identifier. It is surfaced before any network call is attempted.
var ErrInvalid = errors.New("not a valid media identifier")

// tokenPattern matches a bare identifier: 5-20 characters of the URL-safe
// alphabet used by upstream video IDs.
var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{5,20}$`)

// Valid reports whether s is an already-normalized identifier token.
func Valid(s string) bool {
	return tokenPattern.MatchString(s)
}

// Normalize extracts the identifier from a bare token or a recognized URL.
//
// Recognized URL shapes:
//
//	https://www.youtube.com/watch?v=<id>
//	https://m.youtube.com/watch?v=<id>
//	https://music.youtube.com/watch?v=<id>
//	https://youtu.be/<id>
//	https://www.youtube.com/shorts/<id>
//	https://www.youtube.com/embed/<id>
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalid
	}

	if Valid(raw) {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", ErrInvalid
	}

	hostname := strings.ToLower(u.Hostname())
	switch hostname {
	case "youtu.be":
		// Video ID is the path.
		if id := strings.Trim(u.Path, "/"); Valid(id) {
			return id, nil
		}
		return "", ErrInvalid
	case "youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com":
		if id := u.Query().Get("v"); Valid(id) {
			return id, nil
		}
		// /shorts/<id> and /embed/<id> carry the ID in the path.
		for _, prefix := range []string{"/shorts/", "/embed/"} {
			if strings.HasPrefix(u.Path, prefix) {
				id := strings.Trim(strings.TrimPrefix(u.Path, prefix), "/")
				if Valid(id) {
					return id, nil
				}
			}
		}
		return "", ErrInvalid
	}

	return "", ErrInvalid
}
