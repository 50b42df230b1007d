// AngelaMos | 2026
// api.go

package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

type AccountRef struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

type Tokens struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresIn   int       `json:"expiresIn"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type AuthResponse struct {
	User   AccountRef `json:"user"`
	Tokens Tokens     `json:"tokens"`
}

type StateSupervisor struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Address      string    `json:"address"`
	Status       string    `json:"status"`
	AssignedKeys int64     `json:"assignedKeys"`
	UsedKeys     int64     `json:"usedKeys"`
	Balance      int64     `json:"balance"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type SsStats struct {
	Total     int   `json:"total"`
	Active    int   `json:"active"`
	Blocked   int   `json:"blocked"`
	TotalKeys int64 `json:"totalKeys"`
}

type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type KeyTransferLog struct {
	TransferID string       `json:"transferId"`
	Timestamp  time.Time    `json:"timestamp"`
	From       *Participant `json:"from"`
	To         *Participant `json:"to"`
	Count      int64        `json:"count"`
	Status     string       `json:"status"`
	Type       string       `json:"type"`
	Notes      string       `json:"notes"`
}

type KeyTransferLogs struct {
	Total int              `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
	Logs  []KeyTransferLog `json:"logs"`
}

type ReportsSummary struct {
	TotalReceivedKeys    int64   `json:"totalReceivedKeys"`
	TotalTransferredKeys int64   `json:"totalTransferredKeys"`
	AssignedKeys         int64   `json:"assignedKeys"`
	UsedKeys             int64   `json:"usedKeys"`
	BalanceKeys          int64   `json:"balanceKeys"`
	TransferRate         float64 `json:"transferRate"`
	TotalActivations     int     `json:"totalActivations"`
	TotalKeysTransferred int64   `json:"totalKeysTransferred"`
}

type Profile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Address      string    `json:"address"`
	CompanyName  string    `json:"companyName"`
	Bio          string    `json:"bio"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	AssignedKeys int64     `json:"assignedKeys"`
	UsedKeys     int64     `json:"usedKeys"`
	Balance      int64     `json:"balance"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type AddSsParams struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	Status       string `json:"status,omitempty"`
	AssignedKeys int64  `json:"assignedKeys,omitempty"`
}

type AddSsResult struct {
	Ss              StateSupervisor `json:"ss"`
	DefaultPassword string          `json:"defaultPassword"`
}

type UpdateSsParams struct {
	Name        *string `json:"name,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Address     *string `json:"address,omitempty"`
	CompanyName *string `json:"companyName,omitempty"`
	Status      *string `json:"status,omitempty"`
}

type UpdateProfileParams struct {
	Name        *string `json:"name,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Address     *string `json:"address,omitempty"`
	CompanyName *string `json:"companyName,omitempty"`
	Bio         *string `json:"bio,omitempty"`
}

// LogQuery filters the transfer log list and export endpoints. Zero
// values mean "no filter".
type LogQuery struct {
	StartDate string
	EndDate   string
	Status    string
	Direction string
	Search    string
	Page      int
	Limit     int
}

func (q LogQuery) encode() string {
	values := url.Values{}
	if q.StartDate != "" {
		values.Set("startDate", q.StartDate)
	}
	if q.EndDate != "" {
		values.Set("endDate", q.EndDate)
	}
	if q.Status != "" {
		values.Set("status", q.Status)
	}
	if q.Direction != "" {
		values.Set("type", q.Direction)
	}
	if q.Search != "" {
		values.Set("search", q.Search)
	}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

// Login authenticates and stores the returned access token. The refresh
// token arrives as an HTTP-only cookie captured by the client's jar.
func (c *Client) Login(
	ctx context.Context,
	email, password string,
) (*AuthResponse, error) {
	body := map[string]string{"email": email, "password": password}

	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &resp); err != nil {
		return nil, err
	}

	c.store.SetToken(resp.Tokens.AccessToken)
	return &resp, nil
}

func (c *Client) SsList(ctx context.Context) ([]StateSupervisor, error) {
	var resp struct {
		Ss []StateSupervisor `json:"ss"`
	}
	if err := c.do(ctx, http.MethodGet, "/nd/ss-list", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Ss, nil
}

func (c *Client) SsStats(ctx context.Context) (*SsStats, error) {
	var resp SsStats
	if err := c.do(ctx, http.MethodGet, "/nd/ss-stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) KeyTransferLogs(
	ctx context.Context,
	query LogQuery,
) (*KeyTransferLogs, error) {
	var resp KeyTransferLogs
	path := "/nd/key-transfer-logs" + query.encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExportKeyTransferLogs returns the raw CSV document.
func (c *Client) ExportKeyTransferLogs(
	ctx context.Context,
	query LogQuery,
) ([]byte, error) {
	var data []byte
	path := "/nd/key-transfer-logs/export" + query.encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) ReportsSummary(ctx context.Context) (*ReportsSummary, error) {
	var resp ReportsSummary
	if err := c.do(ctx, http.MethodGet, "/nd/reports/summary", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) TransferKeys(
	ctx context.Context,
	ssID string,
	count int64,
	notes string,
) error {
	body := map[string]any{
		"ssId":           ssID,
		"keysToTransfer": count,
	}
	if notes != "" {
		body["notes"] = notes
	}

	return c.do(ctx, http.MethodPost, "/nd/transfer-keys-to-ss", body, nil)
}

func (c *Client) AddSs(
	ctx context.Context,
	params AddSsParams,
) (*AddSsResult, error) {
	var resp AddSsResult
	if err := c.do(ctx, http.MethodPost, "/nd/ss", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) UpdateSs(
	ctx context.Context,
	id string,
	params UpdateSsParams,
) (*StateSupervisor, error) {
	var resp StateSupervisor
	path := "/nd/ss/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodPut, path, params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DeleteSs(ctx context.Context, id string) error {
	path := "/nd/ss/" + url.PathEscape(id)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var resp Profile
	if err := c.do(ctx, http.MethodGet, "/nd/profile", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) UpdateProfile(
	ctx context.Context,
	params UpdateProfileParams,
) (*Profile, error) {
	var resp Profile
	if err := c.do(ctx, http.MethodPut, "/nd/profile", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Token exposes the currently stored access token, mainly for callers
// that persist it across process restarts.
func (c *Client) Token() string {
	return c.store.Token()
}
