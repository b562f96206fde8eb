package session

import (
	"context"
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// fakePlayback is an in-memory PlaybackService for tests. Failure modes
// are injected per call site.
type fakePlayback struct {
	mu sync.Mutex

	searchResults []Track
	queue         []Track
	current       *NowPlaying
	devices       []Device
	volume        int
	savedVolume   int
	muted         bool
	playing       bool

	addErr     error
	queueErr   error
	deviceErr  error
	currentErr error

	// addStarted/addRelease let a test hold an AddToQueue call in flight:
	// the fake signals addStarted on entry and then waits on addRelease.
	addStarted chan struct{}
	addRelease chan struct{}

	addCalls      []string
	releaseCalls  int
	nextCalls     int
	previousCalls int
	transferCalls []string
	contextCalls  []string

	// onNext lets a test advance current when a skip happens.
	onNext func(f *fakePlayback)
}

func newFakePlayback() *fakePlayback {
	return &fakePlayback{
		devices: []Device{{ID: "d1", Name: "Kitchen", Type: "Speaker", Active: true, Volume: 50}},
		volume:  50,
	}
}

func (f *fakePlayback) Search(ctx context.Context, query string) ([]Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searchResults, nil
}

func (f *fakePlayback) AddToQueue(ctx context.Context, uri string) error {
	f.mu.Lock()
	started, release := f.addStarted, f.addRelease
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.addCalls = append(f.addCalls, uri)
	f.queue = append(f.queue, Track{URI: uri, Name: uri})
	return nil
}

func (f *fakePlayback) Queue(ctx context.Context) ([]Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queueErr != nil {
		return nil, f.queueErr
	}
	out := make([]Track, len(f.queue))
	copy(out, f.queue)
	return out, nil
}

func (f *fakePlayback) CurrentTrack(ctx context.Context) (*NowPlaying, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.currentErr != nil {
		return nil, f.currentErr
	}
	if f.current == nil {
		return nil, nil
	}
	cp := *f.current
	return &cp, nil
}

func (f *fakePlayback) Next(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextCalls++
	if f.onNext != nil {
		f.onNext(f)
	}
	return nil
}

func (f *fakePlayback) Previous(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.previousCalls++
	return nil
}

func (f *fakePlayback) TogglePlayPause(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = !f.playing
	return nil
}

func (f *fakePlayback) SetVolume(ctx context.Context, pct int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = pct
	return nil
}

func (f *fakePlayback) Volume() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

func (f *fakePlayback) MuteToggle(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.muted {
		f.volume = f.savedVolume
	} else {
		f.savedVolume = f.volume
		f.volume = 0
	}
	f.muted = !f.muted
	return nil
}

func (f *fakePlayback) Devices(ctx context.Context) ([]Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deviceErr != nil {
		return nil, f.deviceErr
	}
	out := make([]Device, len(f.devices))
	copy(out, f.devices)
	return out, nil
}

func (f *fakePlayback) TransferTo(ctx context.Context, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transferCalls = append(f.transferCalls, deviceID)
	return nil
}

func (f *fakePlayback) StartContext(ctx context.Context, uri string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contextCalls = append(f.contextCalls, uri)
	return nil
}

func (f *fakePlayback) Release(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseCalls++
	return nil
}

// fakeNotifier records every farewell delivered.
type fakeNotifier struct {
	mu    sync.Mutex
	ended []endedCall
}

type endedCall struct {
	userID snowflake.ID
	admin  bool
	ref    *MessageRef
}

func (n *fakeNotifier) SessionEnded(ctx context.Context, userID snowflake.ID, admin bool, ref *MessageRef) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ended = append(n.ended, endedCall{userID: userID, admin: admin, ref: ref})
}

const (
	adminID  = snowflake.ID(100)
	memberID = snowflake.ID(200)
	otherID  = snowflake.ID(300)
)

// newTestEngine builds an engine with one persisted admin and starts a
// session, joining memberID as a regular member.
func newTestEngine(t interface{ Fatalf(string, ...any) }, opts ...Option) (*Engine, *fakePlayback, *fakeNotifier) {
	fp := newFakePlayback()
	fn := &fakeNotifier{}
	base := []Option{WithAdmins(map[snowflake.ID]string{adminID: "admin"})}
	e := NewEngine(fp, fn, append(base, opts...)...)

	token, err := e.StartSession(context.Background())
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := e.JoinSession(memberID, "member", token); err != nil {
		t.Fatalf("JoinSession: %v", err)
	}
	return e, fp, fn
}
