// AngelaMos | 2026
// handler.go

package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

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

func (h *Handler) RegisterNdRoutes(
	r chi.Router,
	authenticator, ndOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(ndOnly)

		r.Post("/nd/transfer-keys-to-ss", h.TransferKeys)
		r.Get("/nd/key-transfer-logs", h.Logs)
		r.Get("/nd/key-transfer-logs/export", h.Export)
		r.Get("/nd/reports/summary", h.Summary)
	})
}

func (h *Handler) TransferKeys(w http.ResponseWriter, r *http.Request) {
	ndID := middleware.GetUserID(r.Context())

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	if err := h.service.TransferKeys(r.Context(), ndID, req); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "supervisor")
			return
		}
		if errors.Is(err, core.ErrInsufficientBalance) {
			core.JSONError(w, err)
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, map[string]string{"message": "keys transferred successfully"})
}

func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	ndID := middleware.GetUserID(r.Context())
	filter := parseLogFilter(r)

	resp, err := h.service.Logs(r.Context(), ndID, filter)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	ndID := middleware.GetUserID(r.Context())
	filter := parseLogFilter(r)

	data, err := h.service.Export(r.Context(), ndID, filter)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set(
		"Content-Disposition",
		`attachment; filename="key-transfer-logs.csv"`,
	)
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // response already committed
	_, _ = w.Write(data)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	ndID := middleware.GetUserID(r.Context())

	summary, err := h.service.Summary(r.Context(), ndID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "distributor")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, summary)
}

func parseLogFilter(r *http.Request) LogFilter {
	q := r.URL.Query()

	filter := LogFilter{
		Status:    q.Get("status"),
		Direction: q.Get("type"),
		Search:    q.Get("search"),
		Page:      parseIntQuery(r, "page", 1),
		Limit:     parseIntQuery(r, "limit", 10),
	}

	if v := q.Get("startDate"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.StartDate = &t
		}
	}
	if v := q.Get("endDate"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			// inclusive through the end of the day
			end := t.Add(24*time.Hour - time.Nanosecond)
			filter.EndDate = &end
		}
	}

	return filter
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
