package session

import "context"

// Track is a single track as seen by the playback provider.
type Track struct {
	URI     string
	Name    string
	Artists []string
}

// Label renders the track the way it is shown in menus and ballots.
func (t Track) Label() string {
	if len(t.Artists) == 0 {
		return t.Name
	}
	return t.Artists[0] + " - " + t.Name
}

// NowPlaying describes the provider's current playback position.
type NowPlaying struct {
	URI     string
	Name    string
	Artists []string
	Playing bool
}

// Device is a playback target known to the provider.
type Device struct {
	ID     string
	Name   string
	Type   string
	Active bool
	Volume int
}

// PlaybackService is the capability the engine needs from the music
// provider. Every method may fail with ErrConnectivity or
// ErrPremiumRequired (wrapped); the engine propagates those untouched and
// leaves its own state unchanged.
type PlaybackService interface {
	Search(ctx context.Context, query string) ([]Track, error)
	AddToQueue(ctx context.Context, uri string) error
	Queue(ctx context.Context) ([]Track, error)

	// CurrentTrack returns nil when nothing is playing.
	CurrentTrack(ctx context.Context) (*NowPlaying, error)

	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	TogglePlayPause(ctx context.Context) error

	SetVolume(ctx context.Context, pct int) error
	Volume() int
	MuteToggle(ctx context.Context) error

	Devices(ctx context.Context) ([]Device, error)
	TransferTo(ctx context.Context, deviceID string) error

	// StartContext starts playback of an album/playlist/artist context URI.
	StartContext(ctx context.Context, uri string) error

	// Release closes the provider session handle.
	Release(ctx context.Context) error
}
