package model

// SessionID identifies one live kiosk connection
type SessionID string

// AuthState is the authentication state of a session
type AuthState string

const (
	AuthAnonymous           AuthState = "anonymous"            // Initial state
	AuthPendingRegistration AuthState = "pending_registration" // Unknown face seen, awaiting registration
	AuthAuthenticated       AuthState = "authenticated"        // Bound to a user until disconnect
)

// PendingFace is the artifact kept for an unmatched face so that a
// subsequent registration can bind it to a new user.
type PendingFace struct {
	Embedding []float64
	Image     []byte // JPEG crop of the face region
	BBox      BoundingBox
}
