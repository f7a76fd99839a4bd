package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/openclaw/pairing-server-go/internal/model"
)

type CredentialRepository interface {
	Create(ctx context.Context, params model.CreateCredentialParams) (*model.Credential, error)
	FindByUserID(ctx context.Context, userID string) ([]model.Credential, error)
	CountByUserID(ctx context.Context, userID string) (int, error)
}

type credentialRepo struct {
	db *sqlx.DB
}

func NewCredentialRepository(db *sqlx.DB) CredentialRepository {
	return &credentialRepo{db: db}
}

func (r *credentialRepo) Create(ctx context.Context, params model.CreateCredentialParams) (*model.Credential, error) {
	var cred model.Credential
	err := r.db.GetContext(ctx, &cred, `
		INSERT INTO credentials (user_id, name, agent_name, agent_id, secret_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.UserID, params.Name, params.AgentName, params.AgentID, params.SecretHash)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *credentialRepo) FindByUserID(ctx context.Context, userID string) ([]model.Credential, error) {
	var creds []model.Credential
	err := r.db.SelectContext(ctx, &creds, `
		SELECT * FROM credentials
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	return creds, err
}

func (r *credentialRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM credentials WHERE user_id = $1
	`, userID)
	return count, err
}
