package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

func TestControlAuthorization(t *testing.T) {
	tests := []struct {
		name    string
		mode    Mode
		userID  snowflake.ID
		wantErr error
	}{
		{"share member allowed", ModeShare, memberID, nil},
		{"share admin allowed", ModeShare, adminID, nil},
		{"restricted member denied", ModeRestricted, memberID, ErrNotAllowed},
		{"restricted admin allowed", ModeRestricted, adminID, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _ := newTestEngine(t)
			if err := e.SetMode(tt.mode); err != nil {
				t.Fatalf("SetMode: %v", err)
			}
			err := e.TogglePlayPause(context.Background(), tt.userID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	e, _, _ := newTestEngine(t)
	if err := e.TogglePlayPause(context.Background(), otherID); !errors.Is(err, ErrNotMember) {
		t.Fatalf("outsider err = %v, want ErrNotMember", err)
	}
}

func TestNextWaitsForTrackChange(t *testing.T) {
	e, fp, _ := newTestEngine(t, WithTrackWait(time.Millisecond, 10))
	fp.current = &NowPlaying{URI: "spotify:track:a", Name: "A", Playing: true}
	fp.onNext = func(f *fakePlayback) {
		f.current = &NowPlaying{URI: "spotify:track:b", Name: "B", Playing: true}
	}

	now, err := e.Next(context.Background(), adminID)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if now == nil || now.URI != "spotify:track:b" {
		t.Fatalf("now = %+v, want track b", now)
	}
	if fp.nextCalls != 1 {
		t.Fatalf("next calls = %d, want 1", fp.nextCalls)
	}
}

func TestNextGivesUpAfterBoundedWait(t *testing.T) {
	e, fp, _ := newTestEngine(t, WithTrackWait(time.Millisecond, 3))
	fp.current = &NowPlaying{URI: "spotify:track:a", Name: "A", Playing: true}
	// onNext left nil: the provider never applies the skip.

	start := time.Now()
	now, err := e.Next(context.Background(), adminID)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if now == nil || now.URI != "spotify:track:a" {
		t.Fatalf("now = %+v, want unchanged track a", now)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("wait took %v, bound not honored", elapsed)
	}
}

func TestNextCancelledContext(t *testing.T) {
	e, fp, _ := newTestEngine(t, WithTrackWait(time.Hour, 10))
	fp.current = &NowPlaying{URI: "spotify:track:a", Name: "A", Playing: true}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Next(ctx, adminID); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestVolumeStepsClamp(t *testing.T) {
	tests := []struct {
		name    string
		start   int
		up      bool
		want    int
	}{
		{"up from middle", 50, true, 55},
		{"down from middle", 50, false, 45},
		{"up clamps at 100", 98, true, 100},
		{"down clamps at 0", 3, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, fp, _ := newTestEngine(t)
			fp.volume = tt.start

			var got int
			var err error
			if tt.up {
				got, err = e.VolumeUp(context.Background(), adminID)
			} else {
				got, err = e.VolumeDown(context.Background(), adminID)
			}
			if err != nil {
				t.Fatalf("volume step: %v", err)
			}
			if got != tt.want {
				t.Fatalf("volume = %d, want %d", got, tt.want)
			}
			if fp.Volume() != tt.want {
				t.Fatalf("provider volume = %d, want %d", fp.Volume(), tt.want)
			}
		})
	}
}

func TestMuteToggleRestoresVolume(t *testing.T) {
	e, fp, _ := newTestEngine(t)
	fp.volume = 70

	if err := e.MuteToggle(context.Background(), adminID); err != nil {
		t.Fatalf("mute: %v", err)
	}
	if fp.Volume() != 0 {
		t.Fatalf("volume = %d after mute, want 0", fp.Volume())
	}
	if err := e.MuteToggle(context.Background(), adminID); err != nil {
		t.Fatalf("unmute: %v", err)
	}
	if fp.Volume() != 70 {
		t.Fatalf("volume = %d after unmute, want 70", fp.Volume())
	}
}

func TestDevicesAdminOnly(t *testing.T) {
	e, _, _ := newTestEngine(t)

	if _, err := e.Devices(context.Background(), memberID); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("member err = %v, want ErrNotAllowed", err)
	}
	devices, err := e.Devices(context.Background(), adminID)
	if err != nil {
		t.Fatalf("admin devices: %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "d1" {
		t.Fatalf("devices = %+v", devices)
	}
}

func TestTransferToAdminOnly(t *testing.T) {
	e, fp, _ := newTestEngine(t)

	if err := e.TransferTo(context.Background(), memberID, "d2"); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("member err = %v, want ErrNotAllowed", err)
	}
	if err := e.TransferTo(context.Background(), adminID, "d2"); err != nil {
		t.Fatalf("admin transfer: %v", err)
	}
	if len(fp.transferCalls) != 1 || fp.transferCalls[0] != "d2" {
		t.Fatalf("transfer calls = %v", fp.transferCalls)
	}
}

func TestStartContext(t *testing.T) {
	e, fp, _ := newTestEngine(t)

	if err := e.StartContext(context.Background(), adminID, "spotify:album:abc"); err != nil {
		t.Fatalf("StartContext: %v", err)
	}
	if len(fp.contextCalls) != 1 || fp.contextCalls[0] != "spotify:album:abc" {
		t.Fatalf("context calls = %v", fp.contextCalls)
	}
}

func TestNowPlayingInactive(t *testing.T) {
	e := NewEngine(newFakePlayback(), &fakeNotifier{})

	if _, err := e.NowPlaying(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
}
