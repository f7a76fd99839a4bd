package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/pairing-server-go/internal/model"
	"github.com/openclaw/pairing-server-go/internal/repository"
	"github.com/openclaw/pairing-server-go/internal/util"
)

const (
	secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	secretLength   = 24
	displayChunk   = 4
)

// CredentialIssuer mints a long-lived credential bound to a user. The
// handshake calls it exactly once per successful claim.
type CredentialIssuer interface {
	Mint(ctx context.Context, user *model.User, agentName, agentID string) (*model.MintedCredential, error)
}

// PasswordIssuer mints application passwords backed by the credentials
// table. Only the SHA-256 hash of the secret is persisted.
type PasswordIssuer struct {
	credRepo repository.CredentialRepository
}

func NewPasswordIssuer(credRepo repository.CredentialRepository) *PasswordIssuer {
	return &PasswordIssuer{credRepo: credRepo}
}

func (s *PasswordIssuer) Mint(ctx context.Context, user *model.User, agentName, agentID string) (*model.MintedCredential, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate credential secret: %w", err)
	}

	// The uuid suffix keeps names unique even when the same agent pairs
	// repeatedly, so the operator can tell the credentials apart.
	name := fmt.Sprintf("%s (%s)", agentName, uuid.NewString()[:8])

	var agentIDPtr *string
	if agentID != "" {
		agentIDPtr = &agentID
	}

	cred, err := s.credRepo.Create(ctx, model.CreateCredentialParams{
		UserID:     user.ID,
		Name:       name,
		AgentName:  agentName,
		AgentID:    agentIDPtr,
		SecretHash: util.HashToken(secret),
	})
	if err != nil {
		return nil, fmt.Errorf("create credential: %w", err)
	}

	log.Info().
		Str("credentialId", cred.ID).
		Str("userId", user.ID).
		Str("agentName", agentName).
		Msg("credential minted")

	return &model.MintedCredential{
		Credential: *cred,
		Secret:     secret,
		Display:    ChunkSecret(secret),
	}, nil
}

// ChunkSecret formats a secret in groups of four for reading aloud. The
// chunked form is what the claim response delivers; consumers strip spaces.
func ChunkSecret(secret string) string {
	var chunks []string
	for i := 0; i < len(secret); i += displayChunk {
		end := i + displayChunk
		if end > len(secret) {
			end = len(secret)
		}
		chunks = append(chunks, secret[i:end])
	}
	return strings.Join(chunks, " ")
}

func generateSecret() (string, error) {
	chars := []byte(secretAlphabet)
	secret := make([]byte, secretLength)
	for i := range secret {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			return "", err
		}
		secret[i] = chars[n.Int64()]
	}
	return string(secret), nil
}
