package session

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/levruta/auxparty/sys"
)

// AttributedTrack pairs one live queue entry with the member who requested
// it, when still tracked.
type AttributedTrack struct {
	Track       Track
	RequestedBy snowflake.ID
	Attributed  bool
}

// AddOutcome describes what happened to an AddTrack request.
type AddOutcome int

const (
	// AddQueued means the track went straight to the provider queue.
	AddQueued AddOutcome = iota
	// AddPollOpened means a vote was opened and ballots should go out.
	AddPollOpened
	// AddAlreadyPolling means a poll for this track is already open.
	AddAlreadyPolling
)

// AddResult carries the outcome of AddTrack plus whatever the transport
// layer needs to render it.
type AddResult struct {
	Outcome   AddOutcome
	Label     string
	Votes     int
	Threshold int
	// Ballots lists the members (other than the proposer) who should
	// receive a vote prompt when a poll was opened.
	Ballots []snowflake.ID
}

// AddTrack routes a member's track request according to the access mode:
// admins and share-mode members queue directly, everyone else opens (or
// lands on) a poll.
func (e *Engine) AddTrack(ctx context.Context, userID snowflake.ID, uri string) (AddResult, error) {
	e.mu.Lock()
	if !e.sess.isActive() {
		e.mu.Unlock()
		return AddResult{}, ErrNoSession
	}
	if _, ok := e.sess.members[userID]; !ok {
		e.mu.Unlock()
		return AddResult{}, ErrNotMember
	}

	label := e.searchLabelLocked(userID, uri)
	_, admin := e.sess.admins[userID]
	direct := admin || e.sess.mode == ModeShare

	if !direct {
		result := e.openPollLocked(userID, uri, label)
		e.mu.Unlock()
		return result, nil
	}
	e.mu.Unlock()

	if err := e.EnqueueTrack(ctx, userID, uri); err != nil {
		return AddResult{}, err
	}
	return AddResult{Outcome: AddQueued, Label: label}, nil
}

// EnqueueTrack pushes a track onto the provider queue and records the
// attribution. Provider errors propagate untouched; the mirror is only
// appended to after the provider accepted the add and while the session is
// still active.
func (e *Engine) EnqueueTrack(ctx context.Context, userID snowflake.ID, uri string) error {
	e.mu.Lock()
	if !e.sess.isActive() {
		e.mu.Unlock()
		return ErrNoSession
	}
	if _, ok := e.sess.members[userID]; !ok {
		e.mu.Unlock()
		return ErrNotMember
	}
	label := e.searchLabelLocked(userID, uri)
	e.mu.Unlock()

	if err := e.playback.AddToQueue(ctx, uri); err != nil {
		sys.LogQueue(sys.MsgQueueAddFailed, uri, err)
		return err
	}

	e.mu.Lock()
	if e.sess.isActive() {
		e.userQueue = append(e.userQueue, QueueEntry{UserID: userID, URI: uri})
	}
	e.mu.Unlock()

	sys.LogQueue(sys.MsgQueueTrackAdded, uri, userID)
	if e.onTrackQueued != nil {
		e.onTrackQueued(userID, uri, label)
	}
	return nil
}

// AttributedQueue fetches the provider's live queue (bounded to the
// display window), resynchronizes the local mirror against it and returns
// each live entry with its attribution.
func (e *Engine) AttributedQueue(ctx context.Context) ([]AttributedTrack, error) {
	live, err := e.playback.Queue(ctx)
	if err != nil {
		return nil, err
	}
	if len(live) > e.queueWindow {
		live = live[:e.queueWindow]
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.resyncLocked(live)

	out := make([]AttributedTrack, 0, len(live))
	next := 0
	for _, t := range live {
		at := AttributedTrack{Track: t}
		for j := next; j < len(e.userQueue); j++ {
			if e.userQueue[j].URI == t.URI {
				at.RequestedBy = e.userQueue[j].UserID
				at.Attributed = true
				next = j + 1
				break
			}
		}
		out = append(out, at)
	}
	return out, nil
}

// resyncLocked aligns the local mirror with the provider's live queue.
// The provider can drop or advance entries outside our control (manual
// skips on the device), so the mirror is trusted only as far as its head
// matches: if the live head is untracked the whole mirror is stale and is
// cleared; otherwise everything before the live head has already played
// and is discarded.
func (e *Engine) resyncLocked(live []Track) {
	if len(e.userQueue) == 0 {
		return
	}
	if len(live) == 0 {
		dropped := len(e.userQueue)
		e.userQueue = nil
		sys.LogQueue(sys.MsgQueueResyncStale, dropped)
		return
	}

	headURI := live[0].URI
	for i, entry := range e.userQueue {
		if entry.URI == headURI {
			if i > 0 {
				e.userQueue = e.userQueue[i:]
				sys.LogQueue(sys.MsgQueueResyncEffect, i)
			}
			return
		}
	}

	dropped := len(e.userQueue)
	e.userQueue = nil
	sys.LogQueue(sys.MsgQueueResyncStale, dropped)
}

// --- Per-user search results ---

// Search runs a provider search and remembers the result set for the user
// so a later button press can be resolved back to a display label.
func (e *Engine) Search(ctx context.Context, userID snowflake.ID, query string) ([]Track, error) {
	e.mu.Lock()
	if !e.sess.isActive() {
		e.mu.Unlock()
		return nil, ErrNoSession
	}
	if _, ok := e.sess.members[userID]; !ok {
		e.mu.Unlock()
		return nil, ErrNotMember
	}
	e.mu.Unlock()

	results, err := e.playback.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.sess.isActive() {
		choices := make(map[string]string, len(results))
		for _, t := range results {
			choices[t.URI] = t.Label()
		}
		e.sess.lastSearches[userID] = choices
	}
	e.mu.Unlock()

	return results, nil
}

// SearchLabel resolves a previously searched track URI to its label.
func (e *Engine) SearchLabel(userID snowflake.ID, uri string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	label := e.searchLabelLocked(userID, uri)
	return label, label != uri
}

func (e *Engine) searchLabelLocked(userID snowflake.ID, uri string) string {
	if choices, ok := e.sess.lastSearches[userID]; ok {
		if label, ok := choices[uri]; ok {
			return label
		}
	}
	return uri
}
