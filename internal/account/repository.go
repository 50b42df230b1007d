// AngelaMos | 2026
// repository.go

package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/familyfirst/keyadmin/internal/core"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetSsOwnedBy(ctx context.Context, id, creatorID string) (*Account, error)
	ListSsByCreator(ctx context.Context, creatorID string) ([]Account, error)
	SsStats(ctx context.Context, creatorID string) (*SsStatsResponse, error)
	CreateSsWithAllocation(
		ctx context.Context,
		acct *Account,
		initialKeys int64,
	) error
	Update(ctx context.Context, acct *Account) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	IncrementTokenVersion(ctx context.Context, id string) error
	SoftDeleteSs(ctx context.Context, id, creatorID string) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, params ListAccountsParams) ([]Account, int, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const accountColumns = `
	id, email, password_hash, name, phone, address, company_name, bio,
	role, status, created_by, assigned_keys, used_keys, token_version,
	created_at, updated_at, deleted_at`

func (r *repository) GetByID(ctx context.Context, id string) (*Account, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM accounts
		WHERE id = $1 AND deleted_at IS NULL`, accountColumns)

	var acct Account
	err := r.db.GetContext(ctx, &acct, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	return &acct, nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*Account, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM accounts
		WHERE email = $1 AND deleted_at IS NULL`, accountColumns)

	var acct Account
	err := r.db.GetContext(ctx, &acct, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account by email: %w", err)
	}

	return &acct, nil
}

// GetSsOwnedBy looks up a supervisor scoped to its creator. A supervisor
// that exists but belongs to another distributor is reported as not found.
func (r *repository) GetSsOwnedBy(
	ctx context.Context,
	id, creatorID string,
) (*Account, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM accounts
		WHERE id = $1 AND role = 'ss' AND created_by = $2
			AND deleted_at IS NULL`, accountColumns)

	var acct Account
	err := r.db.GetContext(ctx, &acct, query, id, creatorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get supervisor: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get supervisor: %w", err)
	}

	return &acct, nil
}

func (r *repository) ListSsByCreator(
	ctx context.Context,
	creatorID string,
) ([]Account, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM accounts
		WHERE role = 'ss' AND created_by = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`, accountColumns)

	var accounts []Account
	if err := r.db.SelectContext(ctx, &accounts, query, creatorID); err != nil {
		return nil, fmt.Errorf("list supervisors: %w", err)
	}

	return accounts, nil
}

func (r *repository) SsStats(
	ctx context.Context,
	creatorID string,
) (*SsStatsResponse, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'active') AS active,
			COUNT(*) FILTER (WHERE status = 'blocked') AS blocked,
			COALESCE(SUM(assigned_keys), 0) AS total_keys
		FROM accounts
		WHERE role = 'ss' AND created_by = $1 AND deleted_at IS NULL`

	var stats struct {
		Total     int   `db:"total"`
		Active    int   `db:"active"`
		Blocked   int   `db:"blocked"`
		TotalKeys int64 `db:"total_keys"`
	}
	if err := r.db.GetContext(ctx, &stats, query, creatorID); err != nil {
		return nil, fmt.Errorf("supervisor stats: %w", err)
	}

	return &SsStatsResponse{
		Total:     stats.Total,
		Active:    stats.Active,
		Blocked:   stats.Blocked,
		TotalKeys: stats.TotalKeys,
	}, nil
}

// CreateSsWithAllocation inserts a supervisor and, when initialKeys > 0,
// debits the creator's balance and records the allocation in the transfer
// log, all in one transaction. The debit is guarded so the creator's
// balance can never go negative.
func (r *repository) CreateSsWithAllocation(
	ctx context.Context,
	acct *Account,
	initialKeys int64,
) error {
	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var creator struct {
			AssignedKeys int64 `db:"assigned_keys"`
			UsedKeys     int64 `db:"used_keys"`
		}
		lockQuery := `
			SELECT assigned_keys, used_keys
			FROM accounts
			WHERE id = $1 AND deleted_at IS NULL
			FOR UPDATE`
		err := tx.GetContext(ctx, &creator, lockQuery, *acct.CreatedBy)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lock creator: %w", core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock creator: %w", err)
		}

		insertQuery := `
			INSERT INTO accounts (
				id, email, password_hash, name, phone, address,
				role, status, created_by, assigned_keys, used_keys
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0
			)
			RETURNING created_at, updated_at`

		err = tx.QueryRowxContext(ctx, insertQuery,
			acct.ID,
			acct.Email,
			acct.PasswordHash,
			acct.Name,
			acct.Phone,
			acct.Address,
			acct.Role,
			acct.Status,
			acct.CreatedBy,
			initialKeys,
		).Scan(&acct.CreatedAt, &acct.UpdatedAt)
		if err != nil {
			if isDuplicateKeyError(err) {
				return fmt.Errorf("create supervisor: %w", core.ErrDuplicateKey)
			}
			return fmt.Errorf("create supervisor: %w", err)
		}
		acct.AssignedKeys = initialKeys

		if initialKeys == 0 {
			return nil
		}

		debitQuery := `
			UPDATE accounts
			SET used_keys = used_keys + $2, updated_at = NOW()
			WHERE id = $1 AND assigned_keys - used_keys >= $2`

		result, err := tx.ExecContext(ctx, debitQuery, *acct.CreatedBy, initialKeys)
		if err != nil {
			return fmt.Errorf("debit creator: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("debit creator: %w", err)
		}
		if rows == 0 {
			return core.InsufficientBalanceError(
				initialKeys,
				creator.AssignedKeys-creator.UsedKeys,
			)
		}

		logQuery := `
			INSERT INTO key_transfer_logs (
				id, from_account, to_account, count, status, type, notes
			) VALUES (
				gen_random_uuid(), $1, $2, $3, 'completed', 'initial', $4
			)`

		notes := fmt.Sprintf(
			"Initial allocation of %d keys at supervisor creation",
			initialKeys,
		)
		if _, err := tx.ExecContext(ctx, logQuery,
			*acct.CreatedBy, acct.ID, initialKeys, notes,
		); err != nil {
			return fmt.Errorf("log initial allocation: %w", err)
		}

		return nil
	})
}

func (r *repository) Update(ctx context.Context, acct *Account) error {
	query := `
		UPDATE accounts
		SET name = $2, phone = $3, address = $4, company_name = $5,
		    bio = $6, status = $7, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &acct.UpdatedAt, query,
		acct.ID,
		acct.Name,
		acct.Phone,
		acct.Address,
		acct.CompanyName,
		acct.Bio,
		acct.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update account: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	return nil
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE accounts
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("update password: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) IncrementTokenVersion(
	ctx context.Context,
	id string,
) error {
	query := `
		UPDATE accounts
		SET token_version = token_version + 1, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("increment token version: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) SoftDeleteSs(
	ctx context.Context,
	id, creatorID string,
) error {
	query := `
		UPDATE accounts
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND role = 'ss' AND created_by = $2
			AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, creatorID)
	if err != nil {
		return fmt.Errorf("delete supervisor: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete supervisor: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete supervisor: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) ExistsByEmail(
	ctx context.Context,
	email string,
) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE email = $1 AND deleted_at IS NULL)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email); err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}

	return exists, nil
}

func (r *repository) List(
	ctx context.Context,
	params ListAccountsParams,
) ([]Account, int, error) {
	params.Normalize()

	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, "deleted_at IS NULL")

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(email ILIKE $%d OR name ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argIdx))
		args = append(args, params.Role)
		argIdx++
	}

	if params.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, params.Status)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM accounts WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM accounts
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		accountColumns, whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var accounts []Account
	if err := r.db.SelectContext(ctx, &accounts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}

	return accounts, total, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
