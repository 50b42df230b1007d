// AngelaMos | 2026
// dto.go

package ledger

import (
	"time"
)

type TransferRequest struct {
	SsID           string `json:"ssId"           validate:"required,uuid4"`
	KeysToTransfer int64  `json:"keysToTransfer" validate:"required,gt=0"`
	Notes          string `json:"notes"          validate:"omitempty,max=500"`
}

type LogFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Status    string
	Direction string
	Search    string
	Page      int
	Limit     int
}

func (f *LogFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 10
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
}

func (f *LogFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

type ParticipantRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type LogEntry struct {
	TransferID string          `json:"transferId"`
	Timestamp  time.Time       `json:"timestamp"`
	From       *ParticipantRef `json:"from"`
	To         *ParticipantRef `json:"to"`
	Count      int64           `json:"count"`
	Status     string          `json:"status"`
	Type       string          `json:"type"`
	Notes      string          `json:"notes"`
}

type KeyTransferLogsResponse struct {
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
	Logs  []LogEntry `json:"logs"`
}

type SummaryResponse struct {
	TotalReceivedKeys    int64   `json:"totalReceivedKeys"`
	TotalTransferredKeys int64   `json:"totalTransferredKeys"`
	AssignedKeys         int64   `json:"assignedKeys"`
	UsedKeys             int64   `json:"usedKeys"`
	BalanceKeys          int64   `json:"balanceKeys"`
	TransferRate         float64 `json:"transferRate"`
	TotalActivations     int     `json:"totalActivations"`
	TotalKeysTransferred int64   `json:"totalKeysTransferred"`
}
