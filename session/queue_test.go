package session

import (
	"context"
	"errors"
	"testing"

	"github.com/disgoorg/snowflake/v2"
)

func TestEnqueueTrackRecordsAttribution(t *testing.T) {
	e, fp, _ := newTestEngine(t)

	if err := e.EnqueueTrack(context.Background(), memberID, "spotify:track:x"); err != nil {
		t.Fatalf("EnqueueTrack: %v", err)
	}

	if len(fp.addCalls) != 1 || fp.addCalls[0] != "spotify:track:x" {
		t.Fatalf("provider adds = %v", fp.addCalls)
	}
	queue, err := e.AttributedQueue(context.Background())
	if err != nil {
		t.Fatalf("AttributedQueue: %v", err)
	}
	if len(queue) != 1 || !queue[0].Attributed || queue[0].RequestedBy != memberID {
		t.Fatalf("queue = %+v", queue)
	}
}

func TestEnqueueTrackProviderErrorLeavesMirrorUntouched(t *testing.T) {
	e, fp, _ := newTestEngine(t)
	boom := errors.New("player unreachable")
	fp.addErr = boom

	if err := e.EnqueueTrack(context.Background(), memberID, "spotify:track:x"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want provider error", err)
	}
	e.mu.Lock()
	n := len(e.userQueue)
	e.mu.Unlock()
	if n != 0 {
		t.Fatalf("mirror has %d entries after failed add", n)
	}
}

func TestEnqueueTrackRejectsOutsiders(t *testing.T) {
	e, _, _ := newTestEngine(t)

	if err := e.EnqueueTrack(context.Background(), otherID, "spotify:track:x"); !errors.Is(err, ErrNotMember) {
		t.Fatalf("err = %v, want ErrNotMember", err)
	}
}

func TestAddTrackModeGating(t *testing.T) {
	tests := []struct {
		name        string
		mode        Mode
		userID      snowflake.ID
		wantOutcome AddOutcome
		wantAdds    int
	}{
		{"share member queues directly", ModeShare, memberID, AddQueued, 1},
		{"share admin queues directly", ModeShare, adminID, AddQueued, 1},
		{"restricted admin queues directly", ModeRestricted, adminID, AddQueued, 1},
		{"restricted member opens poll", ModeRestricted, memberID, AddPollOpened, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, fp, _ := newTestEngine(t)
			if err := e.SetMode(tt.mode); err != nil {
				t.Fatalf("SetMode: %v", err)
			}

			res, err := e.AddTrack(context.Background(), tt.userID, "spotify:track:x")
			if err != nil {
				t.Fatalf("AddTrack: %v", err)
			}
			if res.Outcome != tt.wantOutcome {
				t.Fatalf("outcome = %v, want %v", res.Outcome, tt.wantOutcome)
			}
			if len(fp.addCalls) != tt.wantAdds {
				t.Fatalf("provider adds = %d, want %d", len(fp.addCalls), tt.wantAdds)
			}
		})
	}
}

func TestAddTrackPollBallotsExcludeProposer(t *testing.T) {
	e, _, _ := newTestEngine(t)
	token, _ := e.Token()
	if err := e.JoinSession(otherID, "other", token); err != nil {
		t.Fatalf("JoinSession: %v", err)
	}
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
	if len(res.Ballots) != 2 {
		t.Fatalf("ballots = %v, want admin and other", res.Ballots)
	}
	for _, id := range res.Ballots {
		if id == memberID {
			t.Fatal("proposer received a ballot")
		}
	}
}

func TestAddTrackDuplicatePoll(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if err := e.SetMode(ModeRestricted); err != nil {
		t.Fatalf("SetMode: %v", err)
	}

	if _, err := e.AddTrack(context.Background(), memberID, "spotify:track:x"); err != nil {
		t.Fatalf("first AddTrack: %v", err)
	}
	res, err := e.AddTrack(context.Background(), memberID, "spotify:track:x")
	if err != nil {
		t.Fatalf("second AddTrack: %v", err)
	}
	if res.Outcome != AddAlreadyPolling {
		t.Fatalf("outcome = %v, want AddAlreadyPolling", res.Outcome)
	}
	if votes, ok := e.VoteCount("spotify:track:x"); !ok || votes != 1 {
		t.Fatalf("votes = %d (ok=%v), want 1", votes, ok)
	}
}

func TestAttributedQueueResync(t *testing.T) {
	mirror := []QueueEntry{
		{UserID: adminID, URI: "spotify:track:x"},
		{UserID: memberID, URI: "spotify:track:y"},
		{UserID: otherID, URI: "spotify:track:z"},
	}

	tests := []struct {
		name       string
		live       []Track
		wantMirror []string
	}{
		{
			name:       "head matches, mirror intact",
			live:       []Track{{URI: "spotify:track:x"}, {URI: "spotify:track:y"}, {URI: "spotify:track:z"}},
			wantMirror: []string{"spotify:track:x", "spotify:track:y", "spotify:track:z"},
		},
		{
			name:       "head advanced, played prefix dropped",
			live:       []Track{{URI: "spotify:track:y"}, {URI: "spotify:track:z"}},
			wantMirror: []string{"spotify:track:y", "spotify:track:z"},
		},
		{
			name:       "head unknown, mirror cleared",
			live:       []Track{{URI: "spotify:track:w"}},
			wantMirror: nil,
		},
		{
			name:       "live queue empty, mirror cleared",
			live:       nil,
			wantMirror: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, fp, _ := newTestEngine(t)
			e.mu.Lock()
			e.userQueue = append([]QueueEntry(nil), mirror...)
			e.mu.Unlock()
			fp.queue = append([]Track(nil), tt.live...)

			if _, err := e.AttributedQueue(context.Background()); err != nil {
				t.Fatalf("AttributedQueue: %v", err)
			}

			e.mu.Lock()
			var got []string
			for _, entry := range e.userQueue {
				got = append(got, entry.URI)
			}
			e.mu.Unlock()
			if len(got) != len(tt.wantMirror) {
				t.Fatalf("mirror = %v, want %v", got, tt.wantMirror)
			}
			for i := range got {
				if got[i] != tt.wantMirror[i] {
					t.Fatalf("mirror = %v, want %v", got, tt.wantMirror)
				}
			}
		})
	}
}

func TestAttributedQueueWindowBound(t *testing.T) {
	e, fp, _ := newTestEngine(t, WithQueueWindow(2))
	fp.queue = []Track{{URI: "a"}, {URI: "b"}, {URI: "c"}}

	queue, err := e.AttributedQueue(context.Background())
	if err != nil {
		t.Fatalf("AttributedQueue: %v", err)
	}
	if len(queue) != 2 {
		t.Fatalf("queue length = %d, want 2", len(queue))
	}
}

func TestAttributedQueueProviderError(t *testing.T) {
	e, fp, _ := newTestEngine(t)
	boom := errors.New("queue fetch failed")
	fp.queueErr = boom

	if _, err := e.AttributedQueue(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want provider error", err)
	}
}

func TestSearchStoresLabels(t *testing.T) {
	e, fp, _ := newTestEngine(t)
	fp.searchResults = []Track{
		{URI: "spotify:track:x", Name: "Song", Artists: []string{"Artist", "Feature"}},
	}

	results, err := e.Search(context.Background(), memberID, "song")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %v", results)
	}

	label, ok := e.SearchLabel(memberID, "spotify:track:x")
	if !ok || label != "Artist - Song" {
		t.Fatalf("label = %q (ok=%v), want %q", label, ok, "Artist - Song")
	}
	if _, ok := e.SearchLabel(otherID, "spotify:track:x"); ok {
		t.Fatal("label leaked to another user")
	}
}
