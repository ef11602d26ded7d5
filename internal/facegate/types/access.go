package types

import "time"

// UnknownIdentity is the identity key recorded for faces that matched nobody.
const UnknownIdentity = "unknown"

// AccessEvent is one persisted access attempt, as read back from the audit log.
type AccessEvent struct {
	ID          int64     `json:"id" yaml:"id"`
	IdentityKey string    `json:"identity_key" yaml:"identity_key"`
	Name        string    `json:"name,omitempty" yaml:"name,omitempty"` // joined from identities; empty for unknown
	Granted     bool      `json:"granted" yaml:"granted"`
	OccurredAt  time.Time `json:"occurred_at" yaml:"occurred_at"`
	SessionID   string    `json:"session_id,omitempty" yaml:"session_id,omitempty"`
}

type Admin struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}
