package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"regform/internal/form"
	"regform/internal/platform/middleware"
	"regform/internal/registration/models"
	"regform/internal/validation"
	dErrors "regform/pkg/domain-errors"
	"regform/pkg/platform/httputil"
	"regform/pkg/requestcontext"
)

// DefaultSubmitWait bounds how long ?wait=true holds a submit request open.
const DefaultSubmitWait = 15 * time.Second

// Service is the registration write path and list.
type Service interface {
	Save(ctx context.Context, reg models.Registration) (models.Registration, error)
	List(ctx context.Context) ([]models.Registration, error)
}

// FormSessions hosts server-side form state machines.
type FormSessions interface {
	Open(ctx context.Context) (string, form.State)
	State(ctx context.Context, id string) (form.State, error)
	Change(ctx context.Context, id string, field validation.Field, value string) (form.State, error)
	Blur(ctx context.Context, id string, field validation.Field) (form.State, error)
	Submit(ctx context.Context, id string) (form.State, <-chan form.State, error)
	Close(ctx context.Context, id string) error
}

// Handler serves the users API, the form sessions API and the list page.
type Handler struct {
	logger     *slog.Logger
	service    Service
	sessions   FormSessions
	submitWait time.Duration
}

// Option configures a Handler.
type Option func(*Handler)

func WithSubmitWait(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.submitWait = d
		}
	}
}

// New creates a registration Handler.
func New(service Service, sessions FormSessions, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		logger:     logger,
		service:    service,
		sessions:   sessions,
		submitWait: DefaultSubmitWait,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.handleListPage)
	r.Get("/users", h.handleListUsers)
	r.Post("/users", h.handleCreateUser)

	r.Route("/forms", func(r chi.Router) {
		r.Post("/", h.handleOpenForm)
		r.Get("/{id}", h.handleGetForm)
		r.Delete("/{id}", h.handleCloseForm)
		r.Put("/{id}/fields/{field}", h.handleChangeField)
		r.Post("/{id}/fields/{field}/blur", h.handleBlurField)
		r.Post("/{id}/submit", h.handleSubmitForm)
	})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	regs, err := h.service.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list users",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, regs)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[createUserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	reg, err := req.registration(requestcontext.Now(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	saved, err := h.service.Save(ctx, reg)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create user",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, saved)
}

func (h *Handler) handleOpenForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, st := h.sessions.Open(ctx)
	w.Header().Set("Location", "/forms/"+id)
	httputil.WriteJSON(w, http.StatusCreated, formResponse{ID: id, State: st})
}

func (h *Handler) handleGetForm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := h.sessions.State(r.Context(), id)
	h.writeForm(w, r, id, http.StatusOK, st, err)
}

func (h *Handler) handleCloseForm(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleChangeField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	field, err := fieldParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[fieldValueRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}
	st, err := h.sessions.Change(ctx, id, field, *req.Value)
	h.writeForm(w, r, id, http.StatusOK, st, err)
}

func (h *Handler) handleBlurField(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	field, err := fieldParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	st, err := h.sessions.Blur(r.Context(), id, field)
	h.writeForm(w, r, id, http.StatusOK, st, err)
}

// handleSubmitForm answers 202 with the submitting state, or with the final
// state when ?wait=true. An invalid draft answers 422 with the error map.
func (h *Handler) handleSubmitForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	st, done, err := h.sessions.Submit(ctx, id)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			httputil.WriteJSON(w, http.StatusUnprocessableEntity, formResponse{ID: id, State: st})
			return
		}
		h.writeForm(w, r, id, http.StatusOK, st, err)
		return
	}

	if r.URL.Query().Get("wait") != "true" {
		httputil.WriteJSON(w, http.StatusAccepted, formResponse{ID: id, State: st})
		return
	}

	timer := time.NewTimer(h.submitWait)
	defer timer.Stop()
	select {
	case final, ok := <-done:
		if ok {
			st = final
		}
		httputil.WriteJSON(w, http.StatusOK, formResponse{ID: id, State: st})
	case <-timer.C:
		httputil.WriteJSON(w, http.StatusAccepted, formResponse{ID: id, State: st})
	case <-ctx.Done():
		h.logger.InfoContext(ctx, "submit wait abandoned",
			"request_id", middleware.GetRequestID(ctx),
			"session_id", id,
		)
	}
}

func (h *Handler) writeForm(w http.ResponseWriter, r *http.Request, id string, status int, st form.State, err error) {
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.WarnContext(r.Context(), "form event refused",
				"request_id", middleware.GetRequestID(r.Context()),
				"session_id", id,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, status, formResponse{ID: id, State: st})
}

func fieldParam(r *http.Request) (validation.Field, error) {
	field, ok := validation.ParseField(chi.URLParam(r, "field"))
	if !ok {
		return "", dErrors.New(dErrors.CodeBadRequest, "unknown form field")
	}
	return field, nil
}
