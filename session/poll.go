package session

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/levruta/auxparty/sys"
)

// VoteStatus is the structural outcome of a CastVote call.
type VoteStatus int

const (
	// VoteAccepted means the vote was counted and the poll stays open.
	VoteAccepted VoteStatus = iota
	// VoteResolved means the vote reached the threshold and the track was
	// queued.
	VoteResolved
	// VotePollNotFound means no open poll exists for the track. Expired,
	// already-resolved and never-opened polls are indistinguishable.
	VotePollNotFound
)

// VoteResult is what a CastVote caller renders. Label is the proposer's
// search label when one is known, the URI otherwise.
type VoteResult struct {
	Status    VoteStatus
	Votes     int
	Threshold int
	Label     string
}

// openPollLocked opens a poll for the track, or reports the one already
// open. Caller holds the mutex. The proposer's request counts as the
// first vote.
func (e *Engine) openPollLocked(proposer snowflake.ID, uri, label string) AddResult {
	if p, ok := e.polls[uri]; ok {
		return AddResult{
			Outcome:   AddAlreadyPolling,
			Label:     label,
			Votes:     p.Votes,
			Threshold: e.threshold,
		}
	}

	p := &Poll{
		URI:       uri,
		Proposer:  proposer,
		Votes:     1,
		CreatedAt: time.Now(),
	}
	p.timer = time.AfterFunc(e.pollTTL, func() { e.expirePoll(uri) })
	e.polls[uri] = p

	ballots := make([]snowflake.ID, 0, len(e.sess.members))
	for id := range e.sess.members {
		if id != proposer {
			ballots = append(ballots, id)
		}
	}

	sys.LogPoll(sys.MsgPollOpened, uri, e.threshold)
	return AddResult{
		Outcome:   AddPollOpened,
		Label:     label,
		Votes:     p.Votes,
		Threshold: e.threshold,
		Ballots:   ballots,
	}
}

// expirePoll removes a poll whose TTL elapsed without resolution.
func (e *Engine) expirePoll(uri string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.polls[uri]; !ok {
		return
	}
	delete(e.polls, uri)
	sys.LogPoll(sys.MsgPollExpired, uri)
}

// CastVote counts one vote for the track's poll. A missing poll is a
// normal outcome, not an error; the error return is reserved for the
// provider call made when the threshold is reached. When that call fails
// the vote stays counted and the poll stays open, so the next vote
// retries the add.
func (e *Engine) CastVote(ctx context.Context, userID snowflake.ID, uri string) (VoteResult, error) {
	e.mu.Lock()
	if !e.sess.isActive() {
		e.mu.Unlock()
		return VoteResult{Status: VotePollNotFound}, nil
	}
	if _, ok := e.sess.members[userID]; !ok {
		e.mu.Unlock()
		return VoteResult{}, ErrNotMember
	}
	p, ok := e.polls[uri]
	if !ok {
		e.mu.Unlock()
		return VoteResult{Status: VotePollNotFound}, nil
	}

	p.Votes++
	votes := p.Votes
	proposer := p.Proposer
	label := e.searchLabelLocked(proposer, uri)
	threshold := e.threshold

	// A vote landing while another voter's provider call is in flight is
	// counted but must not start a second resolution.
	if votes < threshold || p.resolving {
		e.mu.Unlock()
		sys.LogPoll(sys.MsgPollVote, uri, votes, threshold)
		return VoteResult{Status: VoteAccepted, Votes: votes, Threshold: threshold, Label: label}, nil
	}
	p.resolving = true
	e.mu.Unlock()

	if err := e.playback.AddToQueue(ctx, uri); err != nil {
		e.mu.Lock()
		if p, ok := e.polls[uri]; ok {
			p.resolving = false
		}
		e.mu.Unlock()
		sys.LogPoll(sys.MsgPollResolveFailed, uri, err)
		return VoteResult{Status: VoteAccepted, Votes: votes, Threshold: threshold, Label: label}, err
	}

	e.mu.Lock()
	if p, ok := e.polls[uri]; ok {
		if p.timer != nil {
			p.timer.Stop()
		}
		delete(e.polls, uri)
	}
	if e.sess.isActive() {
		e.userQueue = append(e.userQueue, QueueEntry{UserID: proposer, URI: uri})
	}
	e.mu.Unlock()

	sys.LogPoll(sys.MsgPollResolved, uri)
	if e.onTrackQueued != nil {
		e.onTrackQueued(proposer, uri, label)
	}
	return VoteResult{Status: VoteResolved, Votes: votes, Threshold: threshold, Label: label}, nil
}

// DismissPoll drops a poll without queueing, closing the vote for
// everyone. Missing polls are ignored.
func (e *Engine) DismissPoll(uri string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.polls[uri]
	if !ok {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	delete(e.polls, uri)
}

// VoteCount returns the current vote count for an open poll.
func (e *Engine) VoteCount(uri string) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.polls[uri]
	if !ok {
		return 0, false
	}
	return p.Votes, true
}

// Threshold returns the current vote threshold.
func (e *Engine) Threshold() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.threshold
}

// SetThreshold changes the vote threshold for future resolutions. Zero is
// allowed and makes the next vote on any open poll resolve it. Open polls
// are judged against the new value on their next vote.
func (e *Engine) SetThreshold(n int) error {
	if n < 0 {
		return ErrInvalidArgument
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.threshold = n
	return nil
}
