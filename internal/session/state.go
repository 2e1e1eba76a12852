// ABOUTME: Three-valued session state
// ABOUTME: pending until the first check settles, then authenticated or unauthenticated

package session

// State is the authentication status of a session.
type State int

const (
	// Pending means a session check is in flight and the identity is unknown.
	Pending State = iota
	// Authenticated means an identity is present.
	Authenticated
	// Unauthenticated means the check completed without an identity.
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent view of the store at one instant.
type Snapshot struct {
	State    State
	Identity *Identity
}
