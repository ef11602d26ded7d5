package types

import (
	"fmt"
	"strings"
	"time"
)

// Status is the access policy attached to an enrolled identity.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ParseStatus accepts the stored/transport form of a status, case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive, nil
	case StatusInactive:
		return StatusInactive, nil
	default:
		return "", fmt.Errorf("invalid status %q (want active or inactive)", s)
	}
}

func (s Status) String() string { return string(s) }

type Identity struct {
	Key          string     `json:"identity_key" yaml:"identity_key"`
	Name         string     `json:"name" yaml:"name"`
	Status       Status     `json:"status" yaml:"status"`
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
	LastAccessAt *time.Time `json:"last_access_at,omitempty" yaml:"last_access_at,omitempty"`
}

func (i Identity) Active() bool { return i.Status == StatusActive }
