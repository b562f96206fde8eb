package session

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

const volumeStep = 5

// authorizeControl checks that the user may drive playback right now:
// session active, user a member, and either an admin or share mode.
func (e *Engine) authorizeControl(userID snowflake.ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.sess.isActive() {
		return ErrNoSession
	}
	if _, ok := e.sess.members[userID]; !ok {
		return ErrNotMember
	}
	if _, admin := e.sess.admins[userID]; !admin && e.sess.mode != ModeShare {
		return ErrNotAllowed
	}
	return nil
}

// CanControl reports whether the user may drive playback right now.
func (e *Engine) CanControl(userID snowflake.ID) bool {
	return e.authorizeControl(userID) == nil
}

// NowPlaying returns the provider's current track, nil when idle.
func (e *Engine) NowPlaying(ctx context.Context) (*NowPlaying, error) {
	e.mu.Lock()
	if !e.sess.isActive() {
		e.mu.Unlock()
		return nil, ErrNoSession
	}
	e.mu.Unlock()
	return e.playback.CurrentTrack(ctx)
}

// Next skips forward and waits for the change to land, returning the new
// track.
func (e *Engine) Next(ctx context.Context, userID snowflake.ID) (*NowPlaying, error) {
	if err := e.authorizeControl(userID); err != nil {
		return nil, err
	}
	before, err := e.playback.CurrentTrack(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.playback.Next(ctx); err != nil {
		return nil, err
	}
	return e.waitTrackChange(ctx, before)
}

// Previous steps back and waits for the change to land, returning the new
// track.
func (e *Engine) Previous(ctx context.Context, userID snowflake.ID) (*NowPlaying, error) {
	if err := e.authorizeControl(userID); err != nil {
		return nil, err
	}
	before, err := e.playback.CurrentTrack(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.playback.Previous(ctx); err != nil {
		return nil, err
	}
	return e.waitTrackChange(ctx, before)
}

// waitTrackChange polls the provider until the current track differs from
// before, giving up after a bounded number of attempts. The provider
// applies skips asynchronously, so an immediate read would usually still
// show the old track; the bound keeps a wedged provider from pinning the
// caller. On give-up the last observed state is returned without error.
func (e *Engine) waitTrackChange(ctx context.Context, before *NowPlaying) (*NowPlaying, error) {
	var beforeURI string
	if before != nil {
		beforeURI = before.URI
	}

	var last *NowPlaying
	for attempt := 0; attempt < e.trackWaitAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.trackWaitInterval):
		}

		now, err := e.playback.CurrentTrack(ctx)
		if err != nil {
			return nil, err
		}
		last = now
		if now == nil {
			if beforeURI != "" {
				return nil, nil
			}
			continue
		}
		if now.URI != beforeURI {
			return now, nil
		}
	}
	return last, nil
}

// TogglePlayPause flips between playing and paused.
func (e *Engine) TogglePlayPause(ctx context.Context, userID snowflake.ID) error {
	if err := e.authorizeControl(userID); err != nil {
		return err
	}
	return e.playback.TogglePlayPause(ctx)
}

// VolumeUp raises the device volume by one step, clamped to 100.
func (e *Engine) VolumeUp(ctx context.Context, userID snowflake.ID) (int, error) {
	return e.adjustVolume(ctx, userID, volumeStep)
}

// VolumeDown lowers the device volume by one step, clamped to 0.
func (e *Engine) VolumeDown(ctx context.Context, userID snowflake.ID) (int, error) {
	return e.adjustVolume(ctx, userID, -volumeStep)
}

func (e *Engine) adjustVolume(ctx context.Context, userID snowflake.ID, delta int) (int, error) {
	if err := e.authorizeControl(userID); err != nil {
		return 0, err
	}
	target := e.playback.Volume() + delta
	if target > 100 {
		target = 100
	}
	if target < 0 {
		target = 0
	}
	if err := e.playback.SetVolume(ctx, target); err != nil {
		return 0, err
	}
	return target, nil
}

// MuteToggle silences the device or restores the pre-mute volume.
func (e *Engine) MuteToggle(ctx context.Context, userID snowflake.ID) error {
	if err := e.authorizeControl(userID); err != nil {
		return err
	}
	return e.playback.MuteToggle(ctx)
}

// Devices lists the provider's playback targets. Admin only.
func (e *Engine) Devices(ctx context.Context, userID snowflake.ID) ([]Device, error) {
	if !e.IsAdmin(userID) {
		return nil, ErrNotAllowed
	}
	if !e.IsActive() {
		return nil, ErrNoSession
	}
	return e.playback.Devices(ctx)
}

// TransferTo moves playback to another device. Admin only.
func (e *Engine) TransferTo(ctx context.Context, userID snowflake.ID, deviceID string) error {
	if !e.IsAdmin(userID) {
		return ErrNotAllowed
	}
	if !e.IsActive() {
		return ErrNoSession
	}
	return e.playback.TransferTo(ctx, deviceID)
}

// StartContext begins playback of an album, playlist or artist context.
func (e *Engine) StartContext(ctx context.Context, userID snowflake.ID, uri string) error {
	if err := e.authorizeControl(userID); err != nil {
		return err
	}
	return e.playback.StartContext(ctx, uri)
}
