// AngelaMos | 2026
// service_test.go

package ledger

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	ssIDs       []string
	logs        []LogWithParties
	total       int
	assigned    int64
	used        int64
	transferred int64
	networkwide int64
	activations int

	lastTransfer struct {
		fromID string
		toID   string
		count  int64
		notes  string
	}
}

func (f *fakeRepo) Transfer(
	_ context.Context,
	fromID, toID string,
	count int64,
	notes string,
) error {
	f.lastTransfer.fromID = fromID
	f.lastTransfer.toID = toID
	f.lastTransfer.count = count
	f.lastTransfer.notes = notes
	return nil
}

func (f *fakeRepo) SsIDs(_ context.Context, _ string) ([]string, error) {
	return f.ssIDs, nil
}

func (f *fakeRepo) List(
	_ context.Context,
	_ []string,
	_ LogFilter,
) ([]LogWithParties, int, error) {
	return f.logs, f.total, nil
}

func (f *fakeRepo) ListAll(
	_ context.Context,
	_ []string,
	_ LogFilter,
) ([]LogWithParties, error) {
	return f.logs, nil
}

func (f *fakeRepo) Balances(_ context.Context, _ string) (int64, int64, error) {
	return f.assigned, f.used, nil
}

func (f *fakeRepo) TotalTransferredBy(_ context.Context, _ string) (int64, error) {
	return f.transferred, nil
}

func (f *fakeRepo) TotalTransferredByAny(
	_ context.Context,
	_ []string,
) (int64, error) {
	return f.networkwide, nil
}

func (f *fakeRepo) ActivationCount(_ context.Context, _ []string) (int, error) {
	return f.activations, nil
}

func strPtr(s string) *string { return &s }

func TestTransferKeysDefaultNotes(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)

	err := svc.TransferKeys(context.Background(), "nd-1", TransferRequest{
		SsID:           "ss-1",
		KeysToTransfer: 250,
	})
	require.NoError(t, err)

	assert.Equal(t, "nd-1", repo.lastTransfer.fromID)
	assert.Equal(t, "ss-1", repo.lastTransfer.toID)
	assert.Equal(t, int64(250), repo.lastTransfer.count)
	assert.Equal(t, "Transferred 250 keys from ND to SS", repo.lastTransfer.notes)
}

func TestTransferKeysCustomNotesPreserved(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)

	err := svc.TransferKeys(context.Background(), "nd-1", TransferRequest{
		SsID:           "ss-1",
		KeysToTransfer: 10,
		Notes:          "monthly allocation",
	})
	require.NoError(t, err)
	assert.Equal(t, "monthly allocation", repo.lastTransfer.notes)
}

func TestDeriveDirection(t *testing.T) {
	ndID := "nd-1"
	ssIDs := []string{"ss-1", "ss-2"}

	tests := []struct {
		name string
		log  LogWithParties
		want string
	}{
		{
			name: "distributor is receiver",
			log: LogWithParties{Log: Log{
				FromAccount: strPtr("admin-1"),
				ToAccount:   strPtr(ndID),
				Type:        TypeRegular,
			}},
			want: DirectionReceived,
		},
		{
			name: "distributor is sender",
			log: LogWithParties{Log: Log{
				FromAccount: strPtr(ndID),
				ToAccount:   strPtr("ss-1"),
				Type:        TypeRegular,
			}},
			want: DirectionSent,
		},
		{
			name: "receiver check wins when distributor is both",
			log: LogWithParties{Log: Log{
				FromAccount: strPtr(ndID),
				ToAccount:   strPtr(ndID),
				Type:        TypeRegular,
			}},
			want: DirectionReceived,
		},
		{
			name: "owned supervisor is receiver",
			log: LogWithParties{Log: Log{
				FromAccount: strPtr("someone-else"),
				ToAccount:   strPtr("ss-2"),
				Type:        TypeRegular,
			}},
			want: DirectionReceived,
		},
		{
			name: "owned supervisor is sender",
			log: LogWithParties{Log: Log{
				FromAccount: strPtr("ss-1"),
				ToAccount:   strPtr("someone-else"),
				Type:        TypeRegular,
			}},
			want: DirectionSent,
		},
		{
			name: "no scoped participant falls back to stored type",
			log: LogWithParties{Log: Log{
				FromAccount: strPtr("x"),
				ToAccount:   strPtr("y"),
				Type:        TypeInitial,
			}},
			want: TypeInitial,
		},
		{
			name: "nil participants fall back to stored type",
			log: LogWithParties{Log: Log{
				Type: TypeRegular,
			}},
			want: TypeRegular,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := deriveDirection(&tt.log, ndID, ssIDs)
			assert.Equal(t, tt.want, got)
		})
	}
}

// The list view and the CSV export must classify every row identically:
// both go through the same derivation against the same scope.
func TestLogsAndExportAgreeOnDirection(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	repo := &fakeRepo{
		ssIDs: []string{"ss-1"},
		logs: []LogWithParties{
			{
				Log: Log{
					ID:          "t-1",
					FromAccount: strPtr("nd-1"),
					ToAccount:   strPtr("ss-1"),
					Count:       300,
					Status:      StatusCompleted,
					Type:        TypeRegular,
					CreatedAt:   created,
				},
				FromName: strPtr("North Distributor"),
				FromRole: strPtr("nd"),
				ToName:   strPtr("East Supervisor"),
				ToRole:   strPtr("ss"),
			},
			{
				Log: Log{
					ID:          "t-2",
					FromAccount: strPtr("admin-1"),
					ToAccount:   strPtr("nd-1"),
					Count:       1000,
					Status:      StatusCompleted,
					Type:        TypeRegular,
					CreatedAt:   created,
				},
				FromName: strPtr("Platform Admin"),
				FromRole: strPtr("admin"),
				ToName:   strPtr("North Distributor"),
				ToRole:   strPtr("nd"),
			},
		},
		total: 2,
	}
	svc := NewService(repo)

	listResp, err := svc.Logs(context.Background(), "nd-1", LogFilter{})
	require.NoError(t, err)
	require.Len(t, listResp.Logs, 2)
	assert.Equal(t, DirectionSent, listResp.Logs[0].Type)
	assert.Equal(t, DirectionReceived, listResp.Logs[1].Type)

	csvData, err := svc.Export(context.Background(), "nd-1", LogFilter{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(
		t,
		"Date,Type,Quantity,From,To,Status,TransferType,Notes",
		lines[0],
	)
	assert.Equal(
		t,
		"2026-08-01,Sent,300,North Distributor,East Supervisor,completed,regular,",
		lines[1],
	)
	assert.Equal(
		t,
		"2026-08-01,Received,1000,Platform Admin,North Distributor,completed,regular,",
		lines[2],
	)
}

func TestSummary(t *testing.T) {
	t.Run("balance and rate from live counters", func(t *testing.T) {
		repo := &fakeRepo{
			ssIDs:       []string{"ss-1", "ss-2"},
			assigned:    1000,
			used:        333,
			transferred: 333,
			networkwide: 450,
			activations: 12,
		}
		svc := NewService(repo)

		summary, err := svc.Summary(context.Background(), "nd-1")
		require.NoError(t, err)

		assert.Equal(t, int64(1000), summary.AssignedKeys)
		assert.Equal(t, int64(333), summary.UsedKeys)
		assert.Equal(t, int64(667), summary.BalanceKeys)
		assert.Equal(t, int64(333), summary.TotalTransferredKeys)
		assert.Equal(t, int64(450), summary.TotalKeysTransferred)
		assert.Equal(t, 12, summary.TotalActivations)
		assert.InDelta(t, 33.3, summary.TransferRate, 0.001)
	})

	t.Run("rate rounds to two decimals", func(t *testing.T) {
		repo := &fakeRepo{assigned: 3, used: 1}
		svc := NewService(repo)

		summary, err := svc.Summary(context.Background(), "nd-1")
		require.NoError(t, err)
		assert.InDelta(t, 33.33, summary.TransferRate, 0.001)
	})

	t.Run("zero assigned keys yields zero rate", func(t *testing.T) {
		repo := &fakeRepo{assigned: 0, used: 0}
		svc := NewService(repo)

		summary, err := svc.Summary(context.Background(), "nd-1")
		require.NoError(t, err)
		assert.Zero(t, summary.TransferRate)
		assert.Zero(t, summary.BalanceKeys)
	})
}

func TestRenderCSVEscaping(t *testing.T) {
	created := time.Date(2026, 3, 15, 8, 30, 0, 0, time.UTC)
	entries := []LogEntry{
		{
			TransferID: "t-1",
			Timestamp:  created,
			From:       &ParticipantRef{Name: "Acme, Inc"},
			To:         &ParticipantRef{Name: "East"},
			Count:      5,
			Status:     StatusCompleted,
			Type:       DirectionSent,
			Notes:      `said "urgent"`,
		},
	}

	data, err := renderCSV(entries, []string{TypeRegular})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(
		t,
		`2026-03-15,Sent,5,"Acme, Inc",East,completed,regular,"said ""urgent"""`,
		lines[1],
	)
}

func TestLogFilterNormalize(t *testing.T) {
	tests := []struct {
		name      string
		in        LogFilter
		wantPage  int
		wantLimit int
	}{
		{"zero values get defaults", LogFilter{}, 1, 10},
		{"negative page clamped", LogFilter{Page: -3, Limit: 20}, 1, 20},
		{"limit capped at 100", LogFilter{Page: 2, Limit: 500}, 2, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Normalize()
			assert.Equal(t, tt.wantPage, tt.in.Page)
			assert.Equal(t, tt.wantLimit, tt.in.Limit)
		})
	}
}
