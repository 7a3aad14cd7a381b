package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"guardian/internal/ledger/models"
	dErrors "guardian/pkg/domain-errors"
	"guardian/pkg/platform/httputil"
	"guardian/pkg/platform/middleware/auth"
	"guardian/pkg/platform/middleware/request"
)

// Service defines the ledger operations exposed over HTTP.
type Service interface {
	Get(ctx context.Context, subject models.Subject) (*models.Record, error)
	Ban(ctx context.Context, subject models.Subject, source models.Source, referenceID string) (*models.Record, error)
	Reset(ctx context.Context, subject models.Subject, actor string) (*models.Record, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the reviewer read route.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/ledger/{kind}/{subject_id}", h.HandleGet)
}

// RegisterAdmin mounts the administrative routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/v1/ledger/{kind}/{subject_id}/reset", h.HandleReset)
	r.Post("/v1/ledger/{kind}/{subject_id}/ban", h.HandleBan)
}

func subjectFromPath(r *http.Request) (models.Subject, error) {
	subject := models.Subject{
		Kind: models.SubjectKind(chi.URLParam(r, "kind")),
		ID:   chi.URLParam(r, "subject_id"),
	}
	if err := subject.Validate(); err != nil {
		return models.Subject{}, err
	}
	return subject, nil
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject, err := subjectFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.service.Get(ctx, subject)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to read ledger record",
				"request_id", request.GetRequestID(ctx),
				"subject", subject.Key(),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject, err := subjectFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.service.Reset(ctx, subject, auth.GetReviewerID(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "ledger reset failed",
			"request_id", request.GetRequestID(ctx),
			"subject", subject.Key(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) HandleBan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject, err := subjectFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.service.Ban(ctx, subject, models.SourceAdmin, auth.GetReviewerID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "ledger ban failed",
			"request_id", request.GetRequestID(ctx),
			"subject", subject.Key(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}
