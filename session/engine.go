package session

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

const (
	DefaultThreshold   = 5
	DefaultPollTTL     = 3 * time.Minute
	DefaultQueueWindow = 10
	DefaultTokenLength = 20
)

// Notifier delivers the session-ended farewell. ref is the member's last
// outbound message handle when one is still held, nil otherwise.
type Notifier interface {
	SessionEnded(ctx context.Context, userID snowflake.ID, admin bool, ref *MessageRef)
}

// QueueEntry attributes one queued track to the member who requested it.
type QueueEntry struct {
	UserID snowflake.ID
	URI    string
}

// Poll is one pending vote to queue a track.
type Poll struct {
	URI       string
	Proposer  snowflake.ID
	Votes     int
	CreatedAt time.Time

	timer *time.Timer
	// resolving is set while the threshold provider call is in flight, so
	// a concurrent vote cannot queue the track a second time.
	resolving bool
}

// Engine owns the session state machine and the collaborative queue and
// voting workflows. One mutex guards all in-memory state; calls into the
// PlaybackService and the Notifier are made with the mutex released, and
// every operation re-validates its preconditions after reacquiring it.
type Engine struct {
	mu       sync.Mutex
	playback PlaybackService
	notifier Notifier

	sess      *Session
	userQueue []QueueEntry
	polls     map[string]*Poll

	threshold   int
	pollTTL     time.Duration
	queueWindow int
	tokenLength int

	trackWaitInterval time.Duration
	trackWaitAttempts int

	// onTrackQueued is invoked (without the mutex) after a track lands on
	// the provider queue, for history persistence.
	onTrackQueued func(userID snowflake.ID, uri, label string)
}

// Option configures an Engine.
type Option func(*Engine)

// WithAdmins seeds the engine with the persisted admin list. Admins are
// members of every session from the moment it starts.
func WithAdmins(admins map[snowflake.ID]string) Option {
	return func(e *Engine) { e.sess = newSession(admins) }
}

// WithThreshold sets the number of votes needed to queue a track in
// restricted mode.
func WithThreshold(n int) Option {
	return func(e *Engine) { e.threshold = n }
}

// WithPollTTL sets how long a poll stays open before expiring unresolved.
func WithPollTTL(d time.Duration) Option {
	return func(e *Engine) { e.pollTTL = d }
}

// WithQueueWindow bounds how many live queue entries are shown.
func WithQueueWindow(n int) Option {
	return func(e *Engine) { e.queueWindow = n }
}

// WithTrackWait tunes the bounded wait-for-track-change loop used after
// skip and previous.
func WithTrackWait(interval time.Duration, attempts int) Option {
	return func(e *Engine) {
		e.trackWaitInterval = interval
		e.trackWaitAttempts = attempts
	}
}

// WithQueuedHook registers a callback fired after every successful queue
// add.
func WithQueuedHook(f func(userID snowflake.ID, uri, label string)) Option {
	return func(e *Engine) { e.onTrackQueued = f }
}

// NewEngine builds an engine around a playback provider and a notifier.
func NewEngine(playback PlaybackService, notifier Notifier, opts ...Option) *Engine {
	e := &Engine{
		playback:          playback,
		notifier:          notifier,
		sess:              newSession(nil),
		polls:             make(map[string]*Poll),
		threshold:         DefaultThreshold,
		pollTTL:           DefaultPollTTL,
		queueWindow:       DefaultQueueWindow,
		tokenLength:       DefaultTokenLength,
		trackWaitInterval: 500 * time.Millisecond,
		trackWaitAttempts: 10,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Snapshot is a consistent read-only view of the session for rendering.
type Snapshot struct {
	Active      bool
	Token       string
	Mode        Mode
	MemberCount int
	Members     map[snowflake.ID]string
	Admins      map[snowflake.ID]string
	OpenPolls   int
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	members := make(map[snowflake.ID]string, len(e.sess.members))
	for id, name := range e.sess.members {
		members[id] = name
	}
	admins := make(map[snowflake.ID]string, len(e.sess.admins))
	for id, name := range e.sess.admins {
		admins[id] = name
	}

	return Snapshot{
		Active:      e.sess.isActive(),
		Token:       e.sess.token,
		Mode:        e.sess.mode,
		MemberCount: len(members),
		Members:     members,
		Admins:      admins,
		OpenPolls:   len(e.polls),
	}
}

// stopPollsLocked cancels every expiry timer and drops all open polls.
func (e *Engine) stopPollsLocked() {
	for uri, p := range e.polls {
		if p.timer != nil {
			p.timer.Stop()
		}
		delete(e.polls, uri)
	}
}

// resetLocked replaces the session with a fresh value, drops the queue
// mirror and all polls. Preserved fields carry over verbatim.
func (e *Engine) resetLocked(preserve ...PreserveField) {
	e.stopPollsLocked()
	e.userQueue = nil
	e.sess = e.sess.reset(preserve...)
}

// Reset reinitializes all session state. Exposed for the lifecycle and
// for tests; regular termination goes through EndSession.
func (e *Engine) Reset(preserve ...PreserveField) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked(preserve...)
}
