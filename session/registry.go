package session

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/levruta/auxparty/sys"
)

// StartSession activates a new session and returns its join token. The
// playback device must be confirmed reachable first; on failure the
// session stays fully inactive, never half-initialized.
func (e *Engine) StartSession(ctx context.Context) (string, error) {
	devices, err := e.playback.Devices(ctx)
	if err != nil {
		return "", err
	}
	if len(devices) == 0 {
		sys.LogSession(sys.MsgSessionStartNoDevice)
		return "", ErrNoActiveDevice
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Fresh state: share mode, no polls, no queue mirror. The device check
	// already passed, so setting the token here completes activation
	// atomically under the lock.
	e.resetLocked()
	e.sess.token = generateToken(e.tokenLength)
	return e.sess.token, nil
}

// JoinSession adds a user to the active session iff the supplied token
// matches. A wrong token and an inactive session produce the same error.
func (e *Engine) JoinSession(userID snowflake.ID, displayName, suppliedToken string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.sess.isActive() || suppliedToken != e.sess.token {
		sys.LogSession(sys.MsgSessionJoinBadToken, userID)
		return ErrInvalidToken
	}
	e.sess.members[userID] = displayName
	sys.LogSession(sys.MsgSessionJoined, displayName, userID)
	return nil
}

// IsActive reports whether a session is running.
func (e *Engine) IsActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.isActive()
}

// Token returns the current join token, ok == false when inactive.
func (e *Engine) Token() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.token, e.sess.isActive()
}

// Mode returns the current access mode.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.mode
}

// SetMode switches the access mode.
func (e *Engine) SetMode(mode Mode) error {
	if !mode.valid() {
		return ErrInvalidMode
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.mode = mode
	sys.LogSession(sys.MsgSessionModeChanged, mode)
	return nil
}

// PromoteAdmin grants admin rights. Idempotent; the user becomes a member
// as well, keeping admins a subset of members.
func (e *Engine) PromoteAdmin(userID snowflake.ID, displayName string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.sess.admins[userID]; ok {
		return
	}
	e.sess.admins[userID] = displayName
	e.sess.members[userID] = displayName
	sys.LogSession(sys.MsgSessionAdminPromoted, displayName, userID)
}

// DemoteAdmin revokes admin rights without touching membership.
// Idempotent; demoting the last admin leaves the session admin-less.
func (e *Engine) DemoteAdmin(userID snowflake.ID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.sess.admins[userID]; !ok {
		return
	}
	delete(e.sess.admins, userID)
	sys.LogSession(sys.MsgSessionAdminDemoted, userID)
}

// RemoveMember drops a user from the session, including admin rights.
// Removing the last admin leaves the session without one; no other member
// is promoted in their place.
func (e *Engine) RemoveMember(userID snowflake.ID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.sess.members, userID)
	delete(e.sess.admins, userID)
	delete(e.sess.lastSearches, userID)
	sys.LogSession(sys.MsgSessionMemberRemoved, userID)
}

// IsAdmin reports whether the user holds admin rights.
func (e *Engine) IsAdmin(userID snowflake.ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sess.admins[userID]
	return ok
}

// IsMember reports whether the user is in the session.
func (e *Engine) IsMember(userID snowflake.ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sess.members[userID]
	return ok
}

// MemberCount returns the number of session members.
func (e *Engine) MemberCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sess.members)
}

// --- Per-user message handles ---

// SetLastMessage records the most recent outbound message for a user so
// the next interaction can edit it in place.
func (e *Engine) SetLastMessage(userID snowflake.ID, ref MessageRef) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.lastMessages[userID] = ref
}

// LastMessage returns the stored handle for a user.
func (e *Engine) LastMessage(userID snowflake.ID) (MessageRef, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ref, ok := e.sess.lastMessages[userID]
	return ref, ok
}

// ClearLastMessage drops the stored handle for a user.
func (e *Engine) ClearLastMessage(userID snowflake.ID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sess.lastMessages, userID)
}
