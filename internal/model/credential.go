package model

import (
	"time"
)

// Credential is a minted application password. Only the hash of the secret
// is ever stored; the plaintext leaves the service exactly once, inside the
// claim response.
type Credential struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"userId"`
	Name       string    `db:"name" json:"name"`
	AgentName  string    `db:"agent_name" json:"agentName"`
	AgentID    *string   `db:"agent_id" json:"agentId,omitempty"`
	SecretHash string    `db:"secret_hash" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

type CreateCredentialParams struct {
	UserID     string
	Name       string
	AgentName  string
	AgentID    *string
	SecretHash string
}

// MintedCredential carries the one-time plaintext alongside the stored
// record. Display is the secret chunked in groups of four for reading aloud.
type MintedCredential struct {
	Credential Credential
	Secret     string
	Display    string
}
