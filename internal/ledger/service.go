// AngelaMos | 2026
// service.go

package ledger

import (
	"context"
	"fmt"
	"math"
	"slices"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// TransferKeys moves keys from the distributor to one of its supervisors.
// Ownership is verified before the balance; the debit, credit, and ledger
// entry commit atomically. Repeating the same request transfers again;
// the operation is deliberately not idempotent.
func (s *Service) TransferKeys(
	ctx context.Context,
	ndID string,
	req TransferRequest,
) error {
	notes := req.Notes
	if notes == "" {
		notes = fmt.Sprintf(
			"Transferred %d keys from ND to SS",
			req.KeysToTransfer,
		)
	}

	return s.repo.Transfer(ctx, ndID, req.SsID, req.KeysToTransfer, notes)
}

// Logs returns the distributor's slice of the ledger: entries where the
// distributor or any of its supervisors is a participant.
func (s *Service) Logs(
	ctx context.Context,
	ndID string,
	filter LogFilter,
) (*KeyTransferLogsResponse, error) {
	filter.Normalize()

	ssIDs, err := s.repo.SsIDs(ctx, ndID)
	if err != nil {
		return nil, err
	}
	scope := append([]string{ndID}, ssIDs...)

	logs, total, err := s.repo.List(ctx, scope, filter)
	if err != nil {
		return nil, err
	}

	entries := make([]LogEntry, 0, len(logs))
	for i := range logs {
		entries = append(entries, toLogEntry(&logs[i], ndID, ssIDs))
	}

	return &KeyTransferLogsResponse{
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
		Logs:  entries,
	}, nil
}

// Export renders the same scoped view as Logs, unpaginated, as CSV. The
// direction column uses the identical derivation rule as the list view.
func (s *Service) Export(
	ctx context.Context,
	ndID string,
	filter LogFilter,
) ([]byte, error) {
	ssIDs, err := s.repo.SsIDs(ctx, ndID)
	if err != nil {
		return nil, err
	}
	scope := append([]string{ndID}, ssIDs...)

	logs, err := s.repo.ListAll(ctx, scope, filter)
	if err != nil {
		return nil, err
	}

	entries := make([]LogEntry, 0, len(logs))
	storedTypes := make([]string, 0, len(logs))
	for i := range logs {
		entries = append(entries, toLogEntry(&logs[i], ndID, ssIDs))
		storedTypes = append(storedTypes, logs[i].Type)
	}

	return renderCSV(entries, storedTypes)
}

// Summary aggregates the distributor's key position. The balance is
// computed from the live counters at read time, never from cached sums.
func (s *Service) Summary(
	ctx context.Context,
	ndID string,
) (*SummaryResponse, error) {
	ssIDs, err := s.repo.SsIDs(ctx, ndID)
	if err != nil {
		return nil, err
	}

	assigned, used, err := s.repo.Balances(ctx, ndID)
	if err != nil {
		return nil, err
	}

	totalTransferred, err := s.repo.TotalTransferredBy(ctx, ndID)
	if err != nil {
		return nil, err
	}

	networkScope := append([]string{ndID}, ssIDs...)
	totalNetwork, err := s.repo.TotalTransferredByAny(ctx, networkScope)
	if err != nil {
		return nil, err
	}

	activations := 0
	if len(ssIDs) > 0 {
		activations, err = s.repo.ActivationCount(ctx, ssIDs)
		if err != nil {
			return nil, err
		}
	}

	var transferRate float64
	if assigned > 0 {
		transferRate = float64(used) / float64(assigned) * 100
		transferRate = math.Round(transferRate*100) / 100
	}

	return &SummaryResponse{
		TotalReceivedKeys:    assigned,
		TotalTransferredKeys: totalTransferred,
		AssignedKeys:         assigned,
		UsedKeys:             used,
		BalanceKeys:          assigned - used,
		TransferRate:         transferRate,
		TotalActivations:     activations,
		TotalKeysTransferred: totalNetwork,
	}, nil
}

// deriveDirection classifies a ledger row relative to the requesting
// distributor's scope. Receiver checks take precedence over sender checks,
// and the distributor itself over its supervisors; the stored type is only
// a fallback for rows with no scoped participant.
func deriveDirection(log *LogWithParties, ndID string, ssIDs []string) string {
	if log.ToAccount != nil && *log.ToAccount == ndID {
		return DirectionReceived
	}
	if log.FromAccount != nil && *log.FromAccount == ndID {
		return DirectionSent
	}
	if log.ToAccount != nil && slices.Contains(ssIDs, *log.ToAccount) {
		return DirectionReceived
	}
	if log.FromAccount != nil && slices.Contains(ssIDs, *log.FromAccount) {
		return DirectionSent
	}
	return log.Type
}

func toLogEntry(log *LogWithParties, ndID string, ssIDs []string) LogEntry {
	entry := LogEntry{
		TransferID: log.ID,
		Timestamp:  log.CreatedAt,
		Count:      log.Count,
		Status:     log.Status,
		Type:       deriveDirection(log, ndID, ssIDs),
		Notes:      log.Notes,
	}

	if log.FromAccount != nil {
		entry.From = &ParticipantRef{
			ID:   *log.FromAccount,
			Name: derefOr(log.FromName, ""),
			Role: derefOr(log.FromRole, ""),
		}
	}
	if log.ToAccount != nil {
		entry.To = &ParticipantRef{
			ID:   *log.ToAccount,
			Name: derefOr(log.ToName, ""),
			Role: derefOr(log.ToRole, ""),
		}
	}

	return entry
}

func derefOr(s *string, fallback string) string {
	if s != nil {
		return *s
	}
	return fallback
}
