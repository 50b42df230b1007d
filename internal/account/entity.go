// AngelaMos | 2026
// entity.go

package account

import (
	"time"
)

type Account struct {
	ID           string     `db:"id"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	Name         string     `db:"name"`
	Phone        string     `db:"phone"`
	Address      string     `db:"address"`
	CompanyName  string     `db:"company_name"`
	Bio          string     `db:"bio"`
	Role         string     `db:"role"`
	Status       string     `db:"status"`
	CreatedBy    *string    `db:"created_by"`
	AssignedKeys int64      `db:"assigned_keys"`
	UsedKeys     int64      `db:"used_keys"`
	TokenVersion int        `db:"token_version"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at"`
}

// Balance is the number of keys still available to hand out.
func (a *Account) Balance() int64 {
	return a.AssignedKeys - a.UsedKeys
}

func (a *Account) IsDeleted() bool {
	return a.DeletedAt != nil
}

func (a *Account) IsBlocked() bool {
	return a.Status == StatusBlocked
}

const (
	RoleAdmin = "admin"
	RoleND    = "nd"
	RoleSS    = "ss"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusBlocked  = "blocked"
)
