package spotify

import (
	"fmt"
	"net/url"
	"strings"
)

const trackURIPrefix = "spotify:track:"

// TrackURI builds a track URI from a raw track ID. IDs already in URI form
// pass through unchanged.
func TrackURI(id string) string {
	if strings.HasPrefix(id, trackURIPrefix) {
		return id
	}
	return trackURIPrefix + id
}

// IsTrackURI reports whether the string is a Spotify track URI.
func IsTrackURI(s string) bool {
	return strings.HasPrefix(s, trackURIPrefix) && len(s) > len(trackURIPrefix)
}

// IsTrackID reports whether the string looks like a bare track ID: 22
// base62 characters, the format Spotify has used for all object IDs.
func IsTrackID(s string) bool {
	if len(s) != 22 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}

// ParseContextURL converts an open.spotify.com album, playlist or artist
// share link into the context URI the player API expects.
func ParseContextURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid link: %w", err)
	}
	if u.Host != "open.spotify.com" {
		return "", fmt.Errorf("not an open.spotify.com link: %q", raw)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// Locale-prefixed paths like /intl-de/album/... carry one extra segment.
	if len(parts) == 3 && strings.HasPrefix(parts[0], "intl-") {
		parts = parts[1:]
	}
	if len(parts) != 2 {
		return "", fmt.Errorf("unrecognized link format: %q", raw)
	}

	kind, id := parts[0], parts[1]
	switch kind {
	case "album", "playlist", "artist":
	default:
		return "", fmt.Errorf("unsupported link type %q, want album, playlist or artist", kind)
	}
	if id == "" {
		return "", fmt.Errorf("link is missing an id: %q", raw)
	}
	return fmt.Sprintf("spotify:%s:%s", kind, id), nil
}
