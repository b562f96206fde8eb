package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

// pollFixture starts a restricted-mode session with an open poll for uri,
// proposed by memberID.
func pollFixture(t *testing.T, opts ...Option) (*Engine, *fakePlayback) {
	t.Helper()
	e, fp, _ := newTestEngine(t, opts...)
	if err := e.SetMode(ModeRestricted); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	res, err := e.AddTrack(context.Background(), memberID, "spotify:track:x")
	if err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	if res.Outcome != AddPollOpened {
		t.Fatalf("outcome = %v, want AddPollOpened", res.Outcome)
	}
	return e, fp
}

func TestCastVoteResolvesAtThreshold(t *testing.T) {
	e, fp := pollFixture(t, WithThreshold(3))
	ctx := context.Background()

	res, err := e.CastVote(ctx, adminID, "spotify:track:x")
	if err != nil {
		t.Fatalf("second vote: %v", err)
	}
	if res.Status != VoteAccepted || res.Votes != 2 {
		t.Fatalf("second vote = %+v", res)
	}
	if len(fp.addCalls) != 0 {
		t.Fatal("track queued before threshold")
	}

	res, err = e.CastVote(ctx, adminID, "spotify:track:x")
	if err != nil {
		t.Fatalf("third vote: %v", err)
	}
	if res.Status != VoteResolved || res.Votes != 3 {
		t.Fatalf("third vote = %+v", res)
	}
	if len(fp.addCalls) != 1 {
		t.Fatalf("provider adds = %d, want exactly 1", len(fp.addCalls))
	}

	// Resolution attributes the track to the proposer.
	queue, err := e.AttributedQueue(ctx)
	if err != nil {
		t.Fatalf("AttributedQueue: %v", err)
	}
	if len(queue) != 1 || queue[0].RequestedBy != memberID {
		t.Fatalf("queue = %+v, want attribution to proposer", queue)
	}

	// The poll is gone; further votes find nothing.
	res, err = e.CastVote(ctx, adminID, "spotify:track:x")
	if err != nil {
		t.Fatalf("post-resolve vote: %v", err)
	}
	if res.Status != VotePollNotFound {
		t.Fatalf("post-resolve status = %v, want VotePollNotFound", res.Status)
	}
}

func TestCastVoteMissingPoll(t *testing.T) {
	e, _, _ := newTestEngine(t)

	res, err := e.CastVote(context.Background(), memberID, "spotify:track:ghost")
	if err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if res.Status != VotePollNotFound {
		t.Fatalf("status = %v, want VotePollNotFound", res.Status)
	}
}

func TestCastVoteRejectsOutsiders(t *testing.T) {
	e, _ := pollFixture(t)

	if _, err := e.CastVote(context.Background(), otherID, "spotify:track:x"); !errors.Is(err, ErrNotMember) {
		t.Fatalf("err = %v, want ErrNotMember", err)
	}
}

func TestCastVoteProviderFailureKeepsPollOpen(t *testing.T) {
	e, fp := pollFixture(t, WithThreshold(2))
	boom := errors.New("player unreachable")
	fp.addErr = boom

	res, err := e.CastVote(context.Background(), adminID, "spotify:track:x")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want provider error", err)
	}
	if res.Status != VoteAccepted {
		t.Fatalf("status = %v, want VoteAccepted", res.Status)
	}

	// The vote stays counted and the poll stays open, so the next vote
	// retries the add once the provider recovers.
	if votes, ok := e.VoteCount("spotify:track:x"); !ok || votes != 2 {
		t.Fatalf("votes = %d (ok=%v), want 2 with poll open", votes, ok)
	}

	fp.mu.Lock()
	fp.addErr = nil
	fp.mu.Unlock()
	res, err = e.CastVote(context.Background(), adminID, "spotify:track:x")
	if err != nil {
		t.Fatalf("retry vote: %v", err)
	}
	if res.Status != VoteResolved {
		t.Fatalf("retry status = %v, want VoteResolved", res.Status)
	}
	if len(fp.addCalls) != 1 {
		t.Fatalf("provider adds = %d, want 1", len(fp.addCalls))
	}
}

func TestCastVoteConcurrentResolutionQueuesOnce(t *testing.T) {
	e, fp := pollFixture(t, WithThreshold(2))

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	fp.mu.Lock()
	fp.addStarted = started
	fp.addRelease = release
	fp.mu.Unlock()

	type outcome struct {
		res VoteResult
		err error
	}
	firstDone := make(chan outcome, 1)
	go func() {
		res, err := e.CastVote(context.Background(), adminID, "spotify:track:x")
		firstDone <- outcome{res, err}
	}()
	<-started

	// The first vote is inside the provider call. A second vote arriving
	// now is counted but must not queue the track again.
	res, err := e.CastVote(context.Background(), memberID, "spotify:track:x")
	if err != nil {
		t.Fatalf("concurrent vote: %v", err)
	}
	if res.Status != VoteAccepted {
		t.Fatalf("concurrent vote status = %v, want VoteAccepted", res.Status)
	}

	close(release)
	first := <-firstDone
	if first.err != nil {
		t.Fatalf("first vote: %v", first.err)
	}
	if first.res.Status != VoteResolved {
		t.Fatalf("first vote status = %v, want VoteResolved", first.res.Status)
	}

	fp.mu.Lock()
	adds := len(fp.addCalls)
	fp.mu.Unlock()
	if adds != 1 {
		t.Fatalf("provider adds = %d, want exactly 1", adds)
	}
}

func TestPollExpiry(t *testing.T) {
	e, _ := pollFixture(t, WithPollTTL(20*time.Millisecond))

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := e.VoteCount("spotify:track:x"); !ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("poll did not expire")
		case <-time.After(5 * time.Millisecond):
		}
	}

	res, err := e.CastVote(context.Background(), adminID, "spotify:track:x")
	if err != nil {
		t.Fatalf("CastVote after expiry: %v", err)
	}
	if res.Status != VotePollNotFound {
		t.Fatalf("status = %v, want VotePollNotFound", res.Status)
	}
}

func TestDismissPoll(t *testing.T) {
	e, _ := pollFixture(t)

	e.DismissPoll("spotify:track:x")
	if _, ok := e.VoteCount("spotify:track:x"); ok {
		t.Fatal("poll still open after dismissal")
	}
	// Dismissing again is a no-op.
	e.DismissPoll("spotify:track:x")
}

func TestSetThreshold(t *testing.T) {
	e, _, _ := newTestEngine(t)

	if err := e.SetThreshold(-1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("SetThreshold(-1): err = %v, want ErrInvalidArgument", err)
	}
	if got := e.Threshold(); got != DefaultThreshold {
		t.Fatalf("threshold changed to %d by rejected set", got)
	}

	// Zero is a legal threshold.
	if err := e.SetThreshold(0); err != nil {
		t.Fatalf("SetThreshold(0): %v", err)
	}
	if got := e.Threshold(); got != 0 {
		t.Fatalf("threshold = %d, want 0", got)
	}

	if err := e.SetThreshold(2); err != nil {
		t.Fatalf("SetThreshold(2): %v", err)
	}
	if got := e.Threshold(); got != 2 {
		t.Fatalf("threshold = %d, want 2", got)
	}
}

func TestOpenPollsClearedOnRestart(t *testing.T) {
	e, _ := pollFixture(t)

	if _, err := e.StartSession(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if _, ok := e.VoteCount("spotify:track:x"); ok {
		t.Fatal("poll survived session restart")
	}
}
