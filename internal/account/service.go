// AngelaMos | 2026
// service.go

package account

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/familyfirst/keyadmin/internal/auth"
	"github.com/familyfirst/keyadmin/internal/core"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.AccountInfo, error) {
	acct, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toAccountInfo(acct), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.AccountInfo, error) {
	acct, err := s.repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, err
	}

	return toAccountInfo(acct), nil
}

func (s *Service) IncrementTokenVersion(
	ctx context.Context,
	accountID string,
) error {
	return s.repo.IncrementTokenVersion(ctx, accountID)
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	accountID, passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, accountID, passwordHash)
}

func (s *Service) ListSs(
	ctx context.Context,
	creatorID string,
) ([]Account, error) {
	return s.repo.ListSsByCreator(ctx, creatorID)
}

func (s *Service) SsStats(
	ctx context.Context,
	creatorID string,
) (*SsStatsResponse, error) {
	return s.repo.SsStats(ctx, creatorID)
}

// AddSs creates a supervisor under the given distributor. The initial key
// allocation, when requested, is debited from the distributor's balance
// atomically with the insert. The generated password is returned exactly
// once and never stored in the clear.
func (s *Service) AddSs(
	ctx context.Context,
	creatorID string,
	req AddSsRequest,
) (*Account, string, error) {
	email := strings.ToLower(req.Email)

	exists, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if exists {
		return nil, "", fmt.Errorf("add supervisor: %w", core.ErrDuplicateKey)
	}

	password := generateDefaultPassword(email)
	passwordHash, err := core.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	status := req.Status
	if status == "" {
		status = StatusActive
	}

	acct := &Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         req.Name,
		Phone:        req.Phone,
		Address:      req.Address,
		Role:         RoleSS,
		Status:       status,
		CreatedBy:    &creatorID,
	}

	if err := s.repo.CreateSsWithAllocation(ctx, acct, req.AssignedKeys); err != nil {
		return nil, "", err
	}

	return acct, password, nil
}

func (s *Service) UpdateSs(
	ctx context.Context,
	creatorID, ssID string,
	req UpdateSsRequest,
) (*Account, error) {
	acct, err := s.repo.GetSsOwnedBy(ctx, ssID, creatorID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		acct.Name = *req.Name
	}
	if req.Phone != nil {
		acct.Phone = *req.Phone
	}
	if req.Address != nil {
		acct.Address = *req.Address
	}
	if req.CompanyName != nil {
		acct.CompanyName = *req.CompanyName
	}
	if req.Status != nil {
		acct.Status = *req.Status
	}

	if err := s.repo.Update(ctx, acct); err != nil {
		return nil, err
	}

	return acct, nil
}

func (s *Service) DeleteSs(ctx context.Context, creatorID, ssID string) error {
	return s.repo.SoftDeleteSs(ctx, ssID, creatorID)
}

func (s *Service) Profile(ctx context.Context, id string) (*Account, error) {
	if id == "" {
		return nil, fmt.Errorf("get profile: %w", core.ErrUnauthorized)
	}

	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateProfile(
	ctx context.Context,
	id string,
	req UpdateProfileRequest,
) (*Account, error) {
	acct, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		acct.Name = *req.Name
	}
	if req.Phone != nil {
		acct.Phone = *req.Phone
	}
	if req.Address != nil {
		acct.Address = *req.Address
	}
	if req.CompanyName != nil {
		acct.CompanyName = *req.CompanyName
	}
	if req.Bio != nil {
		acct.Bio = *req.Bio
	}

	if err := s.repo.Update(ctx, acct); err != nil {
		return nil, err
	}

	return acct, nil
}

func (s *Service) ListAccounts(
	ctx context.Context,
	params ListAccountsParams,
) ([]Account, int, error) {
	return s.repo.List(ctx, params)
}

// generateDefaultPassword derives the initial supervisor password from the
// email local part. The supervisor is expected to change it on first login.
func generateDefaultPassword(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local + "123"
}

func toAccountInfo(a *Account) *auth.AccountInfo {
	return &auth.AccountInfo{
		ID:           a.ID,
		Email:        a.Email,
		Name:         a.Name,
		PasswordHash: a.PasswordHash,
		Role:         a.Role,
		Status:       a.Status,
		TokenVersion: a.TokenVersion,
	}
}

var _ auth.AccountProvider = (*Service)(nil)
