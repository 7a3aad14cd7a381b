package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"guardian/internal/reports/models"
	id "guardian/pkg/domain"
	dErrors "guardian/pkg/domain-errors"
	"guardian/pkg/platform/httputil"
	"guardian/pkg/platform/middleware/auth"
	"guardian/pkg/platform/middleware/request"
)

const (
	defaultQueueLimit = 50
	maxQueueLimit     = 500
)

// Service defines the report operations exposed over HTTP.
type Service interface {
	Submit(ctx context.Context, req *models.SubmitRequest) (*models.Report, error)
	Get(ctx context.Context, reportID id.ReportID) (*models.Report, error)
	ReviewQueue(ctx context.Context, limit int) ([]*models.Report, error)
	Decide(ctx context.Context, reportID id.ReportID, reviewerID string, decision *models.DecisionRequest) (*models.Report, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts intake and status routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/reports", h.HandleSubmit)
	r.Get("/v1/reports/{id}", h.HandleGet)
}

// RegisterReviewer mounts the review queue and decisions.
func (h *Handler) RegisterReviewer(r chi.Router) {
	r.Get("/v1/review/reports", h.HandleQueue)
	r.Post("/v1/reports/{id}/decision", h.HandleDecide)
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Submit(ctx, req)
	if err != nil {
		h.logFailure(ctx, "report submission failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reportID, err := id.ParseReportID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.Get(ctx, reportID)
	if err != nil {
		h.logFailure(ctx, "failed to read report", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

type queueResponse struct {
	Reports []*models.Report `json:"reports"`
	Count   int              `json:"count"`
}

func (h *Handler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := defaultQueueLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxQueueLimit {
			httputil.WriteError(w, dErrors.NewValidation(dErrors.FieldError{Field: "limit", Reason: "must be between 1 and 500"}))
			return
		}
		limit = n
	}

	reports, err := h.service.ReviewQueue(ctx, limit)
	if err != nil {
		h.logFailure(ctx, "failed to list review queue", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, queueResponse{Reports: reports, Count: len(reports)})
}

func (h *Handler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	reportID, err := id.ParseReportID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	decision, ok := httputil.DecodeAndPrepare[models.DecisionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Decide(ctx, reportID, auth.GetReviewerID(ctx), decision)
	if err != nil {
		h.logFailure(ctx, "report decision failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if dErrors.HasCode(err, dErrors.CodeInternal) || dErrors.HasCode(err, dErrors.CodeProcessingFailure) {
		h.logger.ErrorContext(ctx, msg,
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		return
	}
	h.logger.WarnContext(ctx, msg,
		"request_id", request.GetRequestID(ctx),
		"error", err,
	)
}
