// AngelaMos | 2026
// entity.go

package ledger

import (
	"time"
)

// Log is one immutable row in the key transfer ledger. Rows are only ever
// inserted; corrections happen as new entries.
type Log struct {
	ID          string    `db:"id"`
	FromAccount *string   `db:"from_account"`
	ToAccount   *string   `db:"to_account"`
	Count       int64     `db:"count"`
	Status      string    `db:"status"`
	Type        string    `db:"type"`
	Notes       string    `db:"notes"`
	CreatedAt   time.Time `db:"created_at"`
}

// LogWithParties is a ledger row joined with the participant accounts.
type LogWithParties struct {
	Log
	FromName *string `db:"from_name"`
	FromRole *string `db:"from_role"`
	ToName   *string `db:"to_name"`
	ToRole   *string `db:"to_role"`
}

const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusFailed    = "failed"
)

const (
	TypeRegular = "regular"
	TypeInitial = "initial"
)

const (
	DirectionSent     = "Sent"
	DirectionReceived = "Received"
)
