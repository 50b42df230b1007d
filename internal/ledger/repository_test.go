// AngelaMos | 2026
// repository_test.go

package ledger

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/familyfirst/keyadmin/internal/core"
)

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db := sqlx.NewDb(mockDB, "pgx")
	return NewRepository(db), mock
}

func TestTransferCommitsDebitCreditAndLedgerRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	const (
		ndID  = "2d1f2c0a-0000-0000-0000-000000000001"
		ssID  = "2d1f2c0a-0000-0000-0000-000000000002"
		count = int64(300)
		notes = "monthly allocation"
	)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT assigned_keys, used_keys").
		WithArgs(ndID).
		WillReturnRows(
			sqlmock.NewRows([]string{"assigned_keys", "used_keys"}).
				AddRow(int64(1000), int64(200)),
		)
	mock.ExpectQuery("SELECT id").
		WithArgs(ssID, ndID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(ssID))
	mock.ExpectExec("UPDATE accounts").
		WithArgs(ndID, count).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE accounts").
		WithArgs(ssID, count).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO key_transfer_logs").
		WithArgs(ndID, ssID, count, notes).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Transfer(context.Background(), ndID, ssID, count, notes)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferInsufficientBalanceRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	const (
		ndID = "2d1f2c0a-0000-0000-0000-000000000001"
		ssID = "2d1f2c0a-0000-0000-0000-000000000002"
	)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT assigned_keys, used_keys").
		WithArgs(ndID).
		WillReturnRows(
			sqlmock.NewRows([]string{"assigned_keys", "used_keys"}).
				AddRow(int64(1000), int64(500)),
		)
	mock.ExpectQuery("SELECT id").
		WithArgs(ssID, ndID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(ssID))
	// Guarded debit touches zero rows when the balance would go negative.
	mock.ExpectExec("UPDATE accounts").
		WithArgs(ndID, int64(900)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Transfer(context.Background(), ndID, ssID, 900, "n")

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInsufficientBalance)
	assert.Contains(t, err.Error(), "requested 900, available 500")

	appErr, ok := core.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "INSUFFICIENT_BALANCE", appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferToUnownedSupervisorRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	const (
		ndID = "2d1f2c0a-0000-0000-0000-000000000001"
		ssID = "2d1f2c0a-0000-0000-0000-000000000099"
	)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT assigned_keys, used_keys").
		WithArgs(ndID).
		WillReturnRows(
			sqlmock.NewRows([]string{"assigned_keys", "used_keys"}).
				AddRow(int64(1000), int64(0)),
		)
	// Supervisor exists but was created by another distributor: the scoped
	// lock finds nothing, which must read as not-found, never as forbidden.
	mock.ExpectQuery("SELECT id").
		WithArgs(ssID, ndID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := repo.Transfer(context.Background(), ndID, ssID, 100, "n")

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferLedgerWriteFailureAbortsEverything(t *testing.T) {
	repo, mock := newMockRepo(t)

	const (
		ndID = "2d1f2c0a-0000-0000-0000-000000000001"
		ssID = "2d1f2c0a-0000-0000-0000-000000000002"
	)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT assigned_keys, used_keys").
		WithArgs(ndID).
		WillReturnRows(
			sqlmock.NewRows([]string{"assigned_keys", "used_keys"}).
				AddRow(int64(1000), int64(0)),
		)
	mock.ExpectQuery("SELECT id").
		WithArgs(ssID, ndID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(ssID))
	mock.ExpectExec("UPDATE accounts").
		WithArgs(ndID, int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE accounts").
		WithArgs(ssID, int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO key_transfer_logs").
		WithArgs(ndID, ssID, int64(100), "n").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Transfer(context.Background(), ndID, ssID, 100, "n")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "write ledger entry")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// passthroughArgs lets the mock accept slice arguments the way the pgx
// driver does; the default converter rejects []string.
type passthroughArgs struct{}

func (passthroughArgs) ConvertValue(v any) (driver.Value, error) {
	return v, nil
}

func TestNetworkTotalCountsOnlyCompletedTransfers(t *testing.T) {
	mockDB, mock, err := sqlmock.New(
		sqlmock.ValueConverterOption(passthroughArgs{}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	repo := NewRepository(sqlx.NewDb(mockDB, "pgx"))

	scope := []string{"nd-1", "ss-1", "ss-2"}

	// Pending and failed rows must stay out of the network-wide sum, same
	// as in the per-account sum.
	mock.ExpectQuery(`(?s)SELECT COALESCE\(SUM\(count\), 0\)\s+` +
		`FROM key_transfer_logs\s+` +
		`WHERE from_account = ANY\(\$1\) AND status = 'completed'`).
		WithArgs(scope).
		WillReturnRows(
			sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(450)),
		)

	total, err := repo.TotalTransferredByAny(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, int64(450), total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildLogConditions(t *testing.T) {
	scope := []string{"nd-1", "ss-1"}

	t.Run("sent direction scopes the sender column", func(t *testing.T) {
		conditions, args := buildLogConditions(scope, LogFilter{
			Direction: DirectionSent,
		})
		require.Len(t, conditions, 1)
		assert.Equal(t, "l.from_account = ANY($1)", conditions[0])
		require.Len(t, args, 1)
	})

	t.Run("received direction scopes the receiver column", func(t *testing.T) {
		conditions, _ := buildLogConditions(scope, LogFilter{
			Direction: DirectionReceived,
		})
		require.Len(t, conditions, 1)
		assert.Equal(t, "l.to_account = ANY($1)", conditions[0])
	})

	t.Run("no direction scopes either side", func(t *testing.T) {
		conditions, _ := buildLogConditions(scope, LogFilter{})
		require.Len(t, conditions, 1)
		assert.Equal(
			t,
			"(l.from_account = ANY($1) OR l.to_account = ANY($1))",
			conditions[0],
		)
	})

	t.Run("search escapes LIKE metacharacters", func(t *testing.T) {
		_, args := buildLogConditions(scope, LogFilter{
			Search: "50%_done",
		})
		require.Len(t, args, 2)
		assert.Equal(t, `%50\%\_done%`, args[1])
	})
}
