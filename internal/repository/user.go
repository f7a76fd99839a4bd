package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openclaw/pairing-server-go/internal/model"
)

// UserRepository is the identity store. The handshake consults it to resolve
// the owner of a code and to authorize generation; it never writes users
// during pairing.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.User, error)
	Create(ctx context.Context, params model.CreateUserParams) (*model.User, error)
	Disable(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type userRepo struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE id = $1 AND disabled_at IS NULL
	`, id)
	return HandleNotFound(&user, err)
}

func (r *userRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE username = $1 AND disabled_at IS NULL
	`, username)
	return HandleNotFound(&user, err)
}

func (r *userRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users
		WHERE api_token_hash = $1 AND disabled_at IS NULL
	`, tokenHash)
	return HandleNotFound(&user, err)
}

func (r *userRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		INSERT INTO users (username, display_name, role, api_token_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.Username, params.DisplayName, params.Role, params.APITokenHash)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) Disable(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET disabled_at = $2, updated_at = $2 WHERE id = $1
	`, id, time.Now())
	return err
}

func (r *userRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users WHERE disabled_at IS NULL`)
	return count, err
}
