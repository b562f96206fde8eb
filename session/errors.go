package session

import "errors"

// Error taxonomy for session operations. Provider implementations wrap
// ErrConnectivity / ErrPremiumRequired so callers can match with errors.Is
// without knowing the transport.
var (
	// ErrInvalidToken covers both a wrong token and an inactive session.
	// Callers cannot distinguish the two, so a probe cannot learn whether
	// a session exists.
	ErrInvalidToken = errors.New("invalid token or no active session")

	// ErrNoSession guards operations that require an active session.
	ErrNoSession = errors.New("no active session")

	// ErrNoActiveDevice is returned by StartSession when no playback
	// device could be confirmed reachable.
	ErrNoActiveDevice = errors.New("no active playback device")

	// ErrConnectivity is a transient provider I/O failure. The initiating
	// action is not applied; session state is untouched.
	ErrConnectivity = errors.New("playback provider unreachable")

	// ErrPremiumRequired means the provider rejected an operation that
	// needs a paid tier. Not transient, surfaced distinctly.
	ErrPremiumRequired = errors.New("playback provider premium required")

	// ErrNotMember and ErrNotAllowed are access guards.
	ErrNotMember  = errors.New("user is not a session member")
	ErrNotAllowed = errors.New("operation requires admin rights in restricted mode")

	// ErrInvalidMode and ErrInvalidArgument are input-misuse guards; they
	// never surface to end users through valid UI paths.
	ErrInvalidMode     = errors.New("invalid access mode")
	ErrInvalidArgument = errors.New("invalid argument")
)
