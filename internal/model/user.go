package model

import (
	"time"
)

type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleOperator UserRole = "operator"
	RoleMember   UserRole = "member"
)

type User struct {
	ID           string     `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	DisplayName  string     `db:"display_name" json:"displayName"`
	Role         UserRole   `db:"role" json:"role"`
	APITokenHash *string    `db:"api_token_hash" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
	DisabledAt   *time.Time `db:"disabled_at" json:"disabledAt,omitempty"`
}

// CanPair reports whether the user may generate pairing codes at all.
func (u *User) CanPair() bool {
	return u.Role == RoleAdmin || u.Role == RoleOperator
}

// CanPairOthers reports whether the user may generate codes on behalf of
// another account.
func (u *User) CanPairOthers() bool {
	return u.Role == RoleAdmin
}

type CreateUserParams struct {
	Username     string
	DisplayName  string
	Role         UserRole
	APITokenHash string
}
