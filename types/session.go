package types

// SessionStore is the ambient credential source read on every outbound request.
type SessionStore interface {
	Token() (string, bool)
	Role() (string, bool)
}

const (
	RoleAgent  = "AGENT"
	RoleClient = "CLIENT"
)
