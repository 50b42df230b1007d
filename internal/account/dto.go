// AngelaMos | 2026
// dto.go

package account

import (
	"time"
)

type AddSsRequest struct {
	Name         string `json:"name"         validate:"required,min=1,max=100"`
	Email        string `json:"email"        validate:"required,email,max=255"`
	Phone        string `json:"phone"        validate:"required,min=5,max=32"`
	Address      string `json:"address"      validate:"required,min=1,max=255"`
	Status       string `json:"status"       validate:"omitempty,oneof=active inactive blocked"`
	AssignedKeys int64  `json:"assignedKeys" validate:"omitempty,gte=0"`
}

type UpdateSsRequest struct {
	Name        *string `json:"name,omitempty"        validate:"omitempty,min=1,max=100"`
	Phone       *string `json:"phone,omitempty"       validate:"omitempty,min=5,max=32"`
	Address     *string `json:"address,omitempty"     validate:"omitempty,min=1,max=255"`
	CompanyName *string `json:"companyName,omitempty" validate:"omitempty,max=100"`
	Status      *string `json:"status,omitempty"      validate:"omitempty,oneof=active inactive blocked"`
}

type UpdateProfileRequest struct {
	Name        *string `json:"name,omitempty"        validate:"omitempty,min=1,max=100"`
	Phone       *string `json:"phone,omitempty"       validate:"omitempty,min=5,max=32"`
	Address     *string `json:"address,omitempty"     validate:"omitempty,min=1,max=255"`
	CompanyName *string `json:"companyName,omitempty" validate:"omitempty,max=100"`
	Bio         *string `json:"bio,omitempty"         validate:"omitempty,max=1000"`
}

type SsResponse struct {
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

type SsListResponse struct {
	Ss []SsResponse `json:"ss"`
}

// AddSsResponse carries the generated password exactly once, at creation.
type AddSsResponse struct {
	Ss              SsResponse `json:"ss"`
	DefaultPassword string     `json:"defaultPassword"`
}

type SsStatsResponse struct {
	Total     int   `json:"total"`
	Active    int   `json:"active"`
	Blocked   int   `json:"blocked"`
	TotalKeys int64 `json:"totalKeys"`
}

type ProfileResponse struct {
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

type AccountSummary struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type ListAccountsParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Search   string `json:"search"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}

func (p *ListAccountsParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListAccountsParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToSsResponse(a *Account) SsResponse {
	return SsResponse{
		ID:           a.ID,
		Name:         a.Name,
		Email:        a.Email,
		Phone:        a.Phone,
		Address:      a.Address,
		Status:       a.Status,
		AssignedKeys: a.AssignedKeys,
		UsedKeys:     a.UsedKeys,
		Balance:      a.Balance(),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func ToSsResponseList(accounts []Account) []SsResponse {
	responses := make([]SsResponse, 0, len(accounts))
	for i := range accounts {
		responses = append(responses, ToSsResponse(&accounts[i]))
	}
	return responses
}

func ToProfileResponse(a *Account) ProfileResponse {
	return ProfileResponse{
		ID:           a.ID,
		Email:        a.Email,
		Name:         a.Name,
		Phone:        a.Phone,
		Address:      a.Address,
		CompanyName:  a.CompanyName,
		Bio:          a.Bio,
		Role:         a.Role,
		Status:       a.Status,
		AssignedKeys: a.AssignedKeys,
		UsedKeys:     a.UsedKeys,
		Balance:      a.Balance(),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func ToAccountSummary(a *Account) AccountSummary {
	return AccountSummary{
		ID:        a.ID,
		Email:     a.Email,
		Name:      a.Name,
		Role:      a.Role,
		Status:    a.Status,
		CreatedAt: a.CreatedAt,
	}
}

func ToAccountSummaryList(accounts []Account) []AccountSummary {
	responses := make([]AccountSummary, 0, len(accounts))
	for i := range accounts {
		responses = append(responses, ToAccountSummary(&accounts[i]))
	}
	return responses
}
