// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eph-competitions/internal/model"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/repository"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/service"
)

// CompetitionHandler holds all HTTP handlers for the competition API.
type CompetitionHandler struct {
	comps  *service.CompetitionService
	regs   *service.RegistrationService
	users  repository.UserStore
	logger *zap.Logger
}

// NewCompetitionHandler constructs a CompetitionHandler.
func NewCompetitionHandler(
	comps *service.CompetitionService,
	regs *service.RegistrationService,
	users repository.UserStore,
	logger *zap.Logger,
) *CompetitionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompetitionHandler{comps: comps, regs: regs, users: users, logger: logger}
}

// Routes builds the router with the global middleware stack.
func (h *CompetitionHandler) Routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(h.logger))
	r.Use(CORS(allowedOrigins))

	r.Get("/health", HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(Identity(h.users, h.logger))

		r.Route("/competitions", func(r chi.Router) {
			r.Get("/", h.ListCompetitions)
			r.Get("/{id}", h.GetCompetition)

			r.Group(func(r chi.Router) {
				r.Use(RequireUser)
				r.Post("/", h.CreateCompetition)
				r.Patch("/{id}", h.UpdateCompetition)
				r.Delete("/{id}", h.DeleteCompetition)
				r.Post("/{id}/register", h.Register)
				r.Get("/{id}/registrations", h.ListRegistrations)
				r.Post("/{id}/submissions", h.Submit)
			})
		})

		r.Route("/registrations", func(r chi.Router) {
			r.Use(RequireUser)
			r.Get("/me", h.ListMyRegistrations)
			r.Delete("/{registrationId}", h.CancelRegistration)
		})
	})

	return r
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, model.Envelope{Success: true, Message: msg, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.Envelope{Success: false, Message: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// statusFor maps a domain error kind to an HTTP status.
func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindUnauthorized, service.KindForbidden:
		return http.StatusForbidden
	case service.KindConflict:
		return http.StatusConflict
	case service.KindValidation,
		service.KindAlreadyRegistered,
		service.KindCapacityExceeded,
		service.KindTeamTooLarge,
		service.KindMemberConflict,
		service.KindRegistrationClosed,
		service.KindCancellationNotAllowed,
		service.KindSubmissionClosed:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeServiceError renders err. Anything that is not a domain error is
// logged and hidden behind a generic 500.
func (h *CompetitionHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, status, "Internal server error")
		return
	}
	var se *service.Error
	if kind == service.KindValidation && errors.As(err, &se) && len(se.Fields) > 0 {
		writeJSON(w, status, model.Envelope{Success: false, Message: se.Message, Data: map[string]any{"errors": se.Fields}})
		return
	}
	writeError(w, status, err.Error())
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return v
}

// ─── Competitions ─────────────────────────────────────────────────────────────

// ListCompetitions handles GET /competitions
// Query: source_type, is_active (true|false|all, default true), phase, search, page, limit.
func (h *CompetitionHandler) ListCompetitions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.ListFilter{
		SourceType: q.Get("source_type"),
		Phase:      strings.ToLower(q.Get("phase")),
		Search:     q.Get("search"),
	}
	switch strings.ToLower(q.Get("is_active")) {
	case "all":
	case "false":
		inactive := false
		f.Active = &inactive
	default:
		active := true
		f.Active = &active
	}

	items, page, err := h.comps.ListCompetitions(r.Context(), f,
		queryInt(r, "page", 1), queryInt(r, "limit", service.DefaultPageSize))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", map[string]any{
		"competitions": items,
		"pagination":   page,
	})
}

// GetCompetition handles GET /competitions/{id}
// Returns the competition with stats and the caller's participation flags.
func (h *CompetitionHandler) GetCompetition(w http.ResponseWriter, r *http.Request) {
	view, err := h.comps.GetCompetition(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", view)
}

// CreateCompetition handles POST /competitions
func (h *CompetitionHandler) CreateCompetition(w http.ResponseWriter, r *http.Request) {
	var req model.CreateCompetitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	c, err := h.comps.CreateCompetition(r.Context(), userID(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Competition created successfully", c)
}

// UpdateCompetition handles PATCH /competitions/{id}
func (h *CompetitionHandler) UpdateCompetition(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateCompetitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	c, err := h.comps.UpdateCompetition(r.Context(), chi.URLParam(r, "id"), userID(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Competition updated successfully", c)
}

// DeleteCompetition handles DELETE /competitions/{id}
func (h *CompetitionHandler) DeleteCompetition(w http.ResponseWriter, r *http.Request) {
	if err := h.comps.DeleteCompetition(r.Context(), chi.URLParam(r, "id"), userID(r)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Competition deleted successfully", nil)
}

// ─── Registrations ────────────────────────────────────────────────────────────

// Register handles POST /competitions/{id}/register
func (h *CompetitionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	reg, err := h.regs.Register(r.Context(), chi.URLParam(r, "id"), userID(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Successfully registered for competition", reg)
}

// ListRegistrations handles GET /competitions/{id}/registrations
func (h *CompetitionHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, page, err := h.regs.ListForCompetition(r.Context(), chi.URLParam(r, "id"), userID(r),
		queryInt(r, "page", 1), queryInt(r, "limit", service.DefaultPageSize))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", map[string]any{
		"registrations": regs,
		"pagination":    page,
	})
}

// ListMyRegistrations handles GET /registrations/me
func (h *CompetitionHandler) ListMyRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, page, err := h.regs.ListMine(r.Context(), userID(r),
		queryInt(r, "page", 1), queryInt(r, "limit", service.DefaultPageSize))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", map[string]any{
		"registrations": regs,
		"pagination":    page,
	})
}

// CancelRegistration handles DELETE /registrations/{registrationId}
func (h *CompetitionHandler) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	if err := h.regs.Cancel(r.Context(), chi.URLParam(r, "registrationId"), userID(r)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Registration cancelled successfully", nil)
}

// Submit handles POST /competitions/{id}/submissions
func (h *CompetitionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	sub, err := h.regs.Submit(r.Context(), chi.URLParam(r, "id"), userID(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Project submitted successfully", sub)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
