// AngelaMos | 2026
// repository.go

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/familyfirst/keyadmin/internal/core"
)

type Repository interface {
	Transfer(
		ctx context.Context,
		fromID, toID string,
		count int64,
		notes string,
	) error
	SsIDs(ctx context.Context, creatorID string) ([]string, error)
	List(
		ctx context.Context,
		scopeIDs []string,
		filter LogFilter,
	) ([]LogWithParties, int, error)
	ListAll(
		ctx context.Context,
		scopeIDs []string,
		filter LogFilter,
	) ([]LogWithParties, error)
	Balances(ctx context.Context, accountID string) (int64, int64, error)
	TotalTransferredBy(ctx context.Context, accountID string) (int64, error)
	TotalTransferredByAny(
		ctx context.Context,
		accountIDs []string,
	) (int64, error)
	ActivationCount(ctx context.Context, creatorIDs []string) (int, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Transfer moves count keys from the sender to an owned supervisor. The
// sender row is locked before the receiver row, the debit is guarded so
// the sender's balance can never go negative, and the ledger row is
// written in the same transaction. Either everything lands or nothing does.
func (r *repository) Transfer(
	ctx context.Context,
	fromID, toID string,
	count int64,
	notes string,
) error {
	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var sender struct {
			AssignedKeys int64 `db:"assigned_keys"`
			UsedKeys     int64 `db:"used_keys"`
		}
		senderQuery := `
			SELECT assigned_keys, used_keys
			FROM accounts
			WHERE id = $1 AND deleted_at IS NULL
			FOR UPDATE`
		err := tx.GetContext(ctx, &sender, senderQuery, fromID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lock sender: %w", core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock sender: %w", err)
		}

		// Ownership is checked before balance: a supervisor that exists
		// but belongs to another distributor reads as not found.
		var receiverID string
		receiverQuery := `
			SELECT id
			FROM accounts
			WHERE id = $1 AND role = 'ss' AND created_by = $2
				AND deleted_at IS NULL
			FOR UPDATE`
		err = tx.GetContext(ctx, &receiverID, receiverQuery, toID, fromID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lock receiver: %w", core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock receiver: %w", err)
		}

		debitQuery := `
			UPDATE accounts
			SET used_keys = used_keys + $2, updated_at = NOW()
			WHERE id = $1 AND assigned_keys - used_keys >= $2`

		result, err := tx.ExecContext(ctx, debitQuery, fromID, count)
		if err != nil {
			return fmt.Errorf("debit sender: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("debit sender: %w", err)
		}
		if rows == 0 {
			return core.InsufficientBalanceError(
				count,
				sender.AssignedKeys-sender.UsedKeys,
			)
		}

		creditQuery := `
			UPDATE accounts
			SET assigned_keys = assigned_keys + $2, updated_at = NOW()
			WHERE id = $1`
		if _, err := tx.ExecContext(ctx, creditQuery, toID, count); err != nil {
			return fmt.Errorf("credit receiver: %w", err)
		}

		logQuery := `
			INSERT INTO key_transfer_logs (
				id, from_account, to_account, count, status, type, notes
			) VALUES (
				gen_random_uuid(), $1, $2, $3, 'completed', 'regular', $4
			)`
		if _, err := tx.ExecContext(ctx, logQuery, fromID, toID, count, notes); err != nil {
			return fmt.Errorf("write ledger entry: %w", err)
		}

		return nil
	})
}

func (r *repository) SsIDs(
	ctx context.Context,
	creatorID string,
) ([]string, error) {
	query := `
		SELECT id
		FROM accounts
		WHERE role = 'ss' AND created_by = $1 AND deleted_at IS NULL`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, creatorID); err != nil {
		return nil, fmt.Errorf("list supervisor ids: %w", err)
	}

	return ids, nil
}

const logColumns = `
	l.id, l.from_account, l.to_account, l.count, l.status, l.type,
	l.notes, l.created_at,
	a_from.name AS from_name, a_from.role AS from_role,
	a_to.name AS to_name, a_to.role AS to_role`

const logJoins = `
	FROM key_transfer_logs l
	LEFT JOIN accounts a_from ON a_from.id = l.from_account
	LEFT JOIN accounts a_to ON a_to.id = l.to_account`

func buildLogConditions(
	scopeIDs []string,
	filter LogFilter,
) ([]string, []any) {
	var conditions []string
	var args []any
	argIdx := 1

	switch filter.Direction {
	case DirectionSent:
		conditions = append(conditions,
			fmt.Sprintf("l.from_account = ANY($%d)", argIdx))
		args = append(args, scopeIDs)
		argIdx++
	case DirectionReceived:
		conditions = append(conditions,
			fmt.Sprintf("l.to_account = ANY($%d)", argIdx))
		args = append(args, scopeIDs)
		argIdx++
	default:
		conditions = append(conditions, fmt.Sprintf(
			"(l.from_account = ANY($%d) OR l.to_account = ANY($%d))",
			argIdx, argIdx))
		args = append(args, scopeIDs)
		argIdx++
	}

	if filter.StartDate != nil {
		conditions = append(conditions,
			fmt.Sprintf("l.created_at >= $%d", argIdx))
		args = append(args, *filter.StartDate)
		argIdx++
	}

	if filter.EndDate != nil {
		conditions = append(conditions,
			fmt.Sprintf("l.created_at <= $%d", argIdx))
		args = append(args, *filter.EndDate)
		argIdx++
	}

	if filter.Status != "" {
		conditions = append(conditions,
			fmt.Sprintf("l.status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(a_from.name ILIKE $%d OR a_to.name ILIKE $%d OR l.notes ILIKE $%d)",
			argIdx, argIdx, argIdx))
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		argIdx++
	}

	return conditions, args
}

func (r *repository) List(
	ctx context.Context,
	scopeIDs []string,
	filter LogFilter,
) ([]LogWithParties, int, error) {
	filter.Normalize()

	conditions, args := buildLogConditions(scopeIDs, filter)
	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) %s WHERE %s", logJoins, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	argIdx := len(args) + 1
	query := fmt.Sprintf(`
		SELECT %s %s
		WHERE %s
		ORDER BY l.created_at DESC
		LIMIT $%d OFFSET $%d`,
		logColumns, logJoins, whereClause, argIdx, argIdx+1)

	args = append(args, filter.Limit, filter.Offset())

	var logs []LogWithParties
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}

	return logs, total, nil
}

func (r *repository) ListAll(
	ctx context.Context,
	scopeIDs []string,
	filter LogFilter,
) ([]LogWithParties, error) {
	conditions, args := buildLogConditions(scopeIDs, filter)
	whereClause := strings.Join(conditions, " AND ")

	query := fmt.Sprintf(`
		SELECT %s %s
		WHERE %s
		ORDER BY l.created_at DESC`,
		logColumns, logJoins, whereClause)

	var logs []LogWithParties
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("export ledger entries: %w", err)
	}

	return logs, nil
}

func (r *repository) Balances(
	ctx context.Context,
	accountID string,
) (int64, int64, error) {
	query := `
		SELECT assigned_keys, used_keys
		FROM accounts
		WHERE id = $1 AND deleted_at IS NULL`

	var row struct {
		AssignedKeys int64 `db:"assigned_keys"`
		UsedKeys     int64 `db:"used_keys"`
	}
	err := r.db.GetContext(ctx, &row, query, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("get balances: %w", core.ErrNotFound)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("get balances: %w", err)
	}

	return row.AssignedKeys, row.UsedKeys, nil
}

func (r *repository) TotalTransferredBy(
	ctx context.Context,
	accountID string,
) (int64, error) {
	query := `
		SELECT COALESCE(SUM(count), 0)
		FROM key_transfer_logs
		WHERE from_account = $1 AND status = 'completed'`

	var total int64
	if err := r.db.GetContext(ctx, &total, query, accountID); err != nil {
		return 0, fmt.Errorf("sum transferred keys: %w", err)
	}

	return total, nil
}

func (r *repository) TotalTransferredByAny(
	ctx context.Context,
	accountIDs []string,
) (int64, error) {
	query := `
		SELECT COALESCE(SUM(count), 0)
		FROM key_transfer_logs
		WHERE from_account = ANY($1) AND status = 'completed'`

	var total int64
	if err := r.db.GetContext(ctx, &total, query, accountIDs); err != nil {
		return 0, fmt.Errorf("sum network transfers: %w", err)
	}

	return total, nil
}

func (r *repository) ActivationCount(
	ctx context.Context,
	creatorIDs []string,
) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM activations
		WHERE created_by = ANY($1)`

	var count int
	if err := r.db.GetContext(ctx, &count, query, creatorIDs); err != nil {
		return 0, fmt.Errorf("count activations: %w", err)
	}

	return count, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
