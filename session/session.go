package session

import (
	"math/rand"

	"github.com/disgoorg/snowflake/v2"
)

// Mode is the session access mode.
type Mode int

const (
	// ModeShare lets any member queue tracks and control playback.
	ModeShare Mode = iota
	// ModeRestricted reserves direct control for admins; non-admin track
	// additions go through a vote.
	ModeRestricted
)

func (m Mode) String() string {
	switch m {
	case ModeShare:
		return "share"
	case ModeRestricted:
		return "restricted"
	default:
		return "unknown"
	}
}

func (m Mode) valid() bool {
	return m == ModeShare || m == ModeRestricted
}

// MessageRef is an opaque handle to the most recent outbound message for a
// user, kept so menus can be edited in place and a farewell can still be
// delivered after the session state is gone.
type MessageRef struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
}

// PreserveField names a Session field that reset keeps verbatim.
type PreserveField int

const (
	// PreserveLastMessages keeps the per-user last-message map across a
	// reset so the "session ended" notification can still edit in place.
	PreserveLastMessages PreserveField = iota
)

// Session is the in-memory state of the single shared-control session.
// token == "" means inactive. It is owned exclusively by an Engine; all
// mutation goes through Engine methods.
type Session struct {
	token        string
	mode         Mode
	admins       map[snowflake.ID]string
	members      map[snowflake.ID]string
	lastMessages map[snowflake.ID]MessageRef
	lastSearches map[snowflake.ID]map[string]string
}

// newSession builds an inactive session. The persisted admins are members
// from the start, mirroring how the admin list is re-seeded on every reset.
func newSession(admins map[snowflake.ID]string) *Session {
	s := &Session{
		mode:         ModeShare,
		admins:       make(map[snowflake.ID]string, len(admins)),
		members:      make(map[snowflake.ID]string, len(admins)),
		lastMessages: make(map[snowflake.ID]MessageRef),
		lastSearches: make(map[snowflake.ID]map[string]string),
	}
	for id, name := range admins {
		s.admins[id] = name
		s.members[id] = name
	}
	return s
}

func (s *Session) isActive() bool {
	return s.token != ""
}

// reset builds a fresh session value and selectively copies preserved
// fields over, instead of mutating in place. The admin map always carries
// over; it is durable state injected at startup.
func (s *Session) reset(preserve ...PreserveField) *Session {
	next := newSession(s.admins)
	for _, field := range preserve {
		switch field {
		case PreserveLastMessages:
			next.lastMessages = s.lastMessages
		}
	}
	return next
}

const tokenChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateToken returns a random alphanumeric session token.
func generateToken(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = tokenChars[rand.Intn(len(tokenChars))]
	}
	return string(b)
}
