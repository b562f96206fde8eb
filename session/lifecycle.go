package session

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/levruta/auxparty/sys"
)

// EndSession terminates the active session: every member is notified,
// the playback provider handle is released, and all state is discarded.
// The state flip happens first and atomically, so no interaction that
// races with termination can observe a half-ended session; the farewell
// notifications then run against a snapshot taken under the same lock.
func (e *Engine) EndSession(ctx context.Context) error {
	e.mu.Lock()
	if !e.sess.isActive() {
		e.mu.Unlock()
		return ErrNoSession
	}

	members := make(map[snowflake.ID]string, len(e.sess.members))
	for id, name := range e.sess.members {
		members[id] = name
	}
	admins := make(map[snowflake.ID]bool, len(e.sess.admins))
	for id := range e.sess.admins {
		admins[id] = true
	}
	refs := make(map[snowflake.ID]MessageRef, len(e.sess.lastMessages))
	for id, ref := range e.sess.lastMessages {
		refs[id] = ref
	}

	// Message handles survive the reset so the farewell can edit each
	// member's menu in place instead of posting a new message.
	e.resetLocked(PreserveLastMessages)
	e.mu.Unlock()

	if e.notifier != nil {
		for id := range members {
			var ref *MessageRef
			if r, ok := refs[id]; ok {
				ref = &r
			}
			e.notifier.SessionEnded(ctx, id, admins[id], ref)
		}
	}

	err := e.playback.Release(ctx)

	e.mu.Lock()
	e.sess.lastMessages = make(map[snowflake.ID]MessageRef)
	e.mu.Unlock()

	sys.LogSession(sys.MsgSessionEnded, len(members))
	return err
}
