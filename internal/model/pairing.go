package model

import (
	"time"
)

// PairingCode is the sole persistent entity of the handshake. It lives in the
// pairing store under its normalized uppercase code and is removed by the
// store's own TTL, never deleted by business logic.
type PairingCode struct {
	Code      string     `json:"code"`
	OwnerID   string     `json:"owner_id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	Claimed   bool       `json:"claimed"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
	AgentName string     `json:"agent_name,omitempty"`
	AgentID   string     `json:"agent_id,omitempty"`
}
