package session

import (
	"context"
	"errors"
	"testing"
)

func TestEndSessionNotifiesEveryMember(t *testing.T) {
	e, fp, fn := newTestEngine(t)
	e.SetLastMessage(memberID, MessageRef{ChannelID: 1, MessageID: 2})

	if err := e.EndSession(context.Background()); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	if e.IsActive() {
		t.Fatal("session still active")
	}
	if fp.releaseCalls != 1 {
		t.Fatalf("release calls = %d, want 1", fp.releaseCalls)
	}
	if len(fn.ended) != 2 {
		t.Fatalf("farewells = %d, want 2", len(fn.ended))
	}

	byUser := make(map[int64]endedCall, len(fn.ended))
	for _, c := range fn.ended {
		byUser[int64(c.userID)] = c
	}
	ac, ok := byUser[int64(adminID)]
	if !ok || !ac.admin {
		t.Fatalf("admin farewell = %+v", ac)
	}
	mc, ok := byUser[int64(memberID)]
	if !ok || mc.admin {
		t.Fatalf("member farewell = %+v", mc)
	}
	if mc.ref == nil || mc.ref.MessageID != 2 {
		t.Fatalf("member farewell ref = %+v, want preserved handle", mc.ref)
	}
}

func TestEndSessionInactive(t *testing.T) {
	e := NewEngine(newFakePlayback(), &fakeNotifier{})

	if err := e.EndSession(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
}

func TestEndSessionDiscardsMessageHandles(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.SetLastMessage(memberID, MessageRef{ChannelID: 1, MessageID: 2})

	if err := e.EndSession(context.Background()); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if _, ok := e.LastMessage(memberID); ok {
		t.Fatal("message handle survived termination")
	}
}

func TestEndSessionClearsQueueAndPolls(t *testing.T) {
	e, fp, _ := newTestEngine(t)
	if err := e.EnqueueTrack(context.Background(), memberID, "spotify:track:x"); err != nil {
		t.Fatalf("EnqueueTrack: %v", err)
	}
	if err := e.SetMode(ModeRestricted); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if _, err := e.AddTrack(context.Background(), memberID, "spotify:track:y"); err != nil {
		t.Fatalf("AddTrack: %v", err)
	}

	if err := e.EndSession(context.Background()); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	if _, ok := e.VoteCount("spotify:track:y"); ok {
		t.Fatal("poll survived termination")
	}
	e.mu.Lock()
	n := len(e.userQueue)
	e.mu.Unlock()
	if n != 0 {
		t.Fatalf("queue mirror has %d entries after termination", n)
	}
	_ = fp
}
