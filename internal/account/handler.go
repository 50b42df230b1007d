// AngelaMos | 2026
// handler.go

package account

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/familyfirst/keyadmin/internal/core"
	"github.com/familyfirst/keyadmin/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterNdRoutes mounts the distributor panel endpoints. Every route is
// scoped to the authenticated distributor's own supervisors.
func (h *Handler) RegisterNdRoutes(
	r chi.Router,
	authenticator, ndOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(ndOnly)

		r.Get("/nd/ss-list", h.SsList)
		r.Get("/nd/ss-stats", h.SsStats)
		r.Post("/nd/ss", h.AddSs)
		r.Put("/nd/ss/{ssID}", h.UpdateSs)
		r.Delete("/nd/ss/{ssID}", h.DeleteSs)
		r.Get("/nd/profile", h.Profile)
		r.Put("/nd/profile", h.UpdateProfile)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/accounts", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.ListAccounts)
	})
}

func (h *Handler) SsList(w http.ResponseWriter, r *http.Request) {
	creatorID := middleware.GetUserID(r.Context())

	accounts, err := h.service.ListSs(r.Context(), creatorID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, SsListResponse{Ss: ToSsResponseList(accounts)})
}

func (h *Handler) SsStats(w http.ResponseWriter, r *http.Request) {
	creatorID := middleware.GetUserID(r.Context())

	stats, err := h.service.SsStats(r.Context(), creatorID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, stats)
}

func (h *Handler) AddSs(w http.ResponseWriter, r *http.Request) {
	creatorID := middleware.GetUserID(r.Context())

	var req AddSsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	acct, password, err := h.service.AddSs(r.Context(), creatorID, req)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			core.JSONError(w, core.DuplicateError("email"))
			return
		}
		if errors.Is(err, core.ErrInsufficientBalance) {
			core.JSONError(w, err)
			return
		}
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "distributor")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.Created(w, AddSsResponse{
		Ss:              ToSsResponse(acct),
		DefaultPassword: password,
	})
}

func (h *Handler) UpdateSs(w http.ResponseWriter, r *http.Request) {
	creatorID := middleware.GetUserID(r.Context())
	ssID := chi.URLParam(r, "ssID")

	var req UpdateSsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	acct, err := h.service.UpdateSs(r.Context(), creatorID, ssID, req)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "supervisor")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToSsResponse(acct))
}

func (h *Handler) DeleteSs(w http.ResponseWriter, r *http.Request) {
	creatorID := middleware.GetUserID(r.Context())
	ssID := chi.URLParam(r, "ssID")

	if err := h.service.DeleteSs(r.Context(), creatorID, ssID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "supervisor")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())

	acct, err := h.service.Profile(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "profile")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToProfileResponse(acct))
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	acct, err := h.service.UpdateProfile(r.Context(), accountID, req)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "profile")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToProfileResponse(acct))
}

// ListAccounts returns a paginated account listing for the admin console.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	params := ListAccountsParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 20),
		Search:   r.URL.Query().Get("search"),
		Role:     r.URL.Query().Get("role"),
		Status:   r.URL.Query().Get("status"),
	}

	accounts, total, err := h.service.ListAccounts(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(
		w,
		ToAccountSummaryList(accounts),
		params.Page,
		params.PageSize,
		total,
	)
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
