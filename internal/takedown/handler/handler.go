package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"guardian/internal/takedown/models"
	id "guardian/pkg/domain"
	dErrors "guardian/pkg/domain-errors"
	"guardian/pkg/platform/httputil"
	"guardian/pkg/platform/middleware/auth"
	"guardian/pkg/platform/middleware/request"
)

// Service defines the takedown operations exposed over HTTP.
type Service interface {
	Submit(ctx context.Context, req *models.SubmitRequest) (*models.Takedown, error)
	Get(ctx context.Context, takedownID id.TakedownID) (*models.Takedown, error)
	Decide(ctx context.Context, takedownID id.TakedownID, reviewerID string, decision *models.DecisionRequest) (*models.Takedown, error)
	SubmitCounterNotice(ctx context.Context, takedownID id.TakedownID, req *models.CounterNoticeRequest) (*models.CounterNotice, error)
	GetCounterNotice(ctx context.Context, noticeID id.CounterNoticeID) (*models.CounterNotice, error)
	CancelRestoration(ctx context.Context, noticeID id.CounterNoticeID, actor string, req *models.CancelRestorationRequest) (*models.Restoration, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts notice intake, counter-notices, and status reads.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/takedowns", h.HandleSubmit)
	r.Get("/v1/takedowns/{id}", h.HandleGet)
	r.Post("/v1/takedowns/{id}/counter-notices", h.HandleCounterNotice)
	r.Get("/v1/counter-notices/{id}", h.HandleGetCounterNotice)
}

// RegisterLegal mounts the routes reserved for legal staff.
func (h *Handler) RegisterLegal(r chi.Router) {
	r.Post("/v1/takedowns/{id}/decision", h.HandleDecide)
	r.Post("/v1/counter-notices/{id}/cancel-restoration", h.HandleCancelRestoration)
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
		h.logFailure(ctx, "takedown submission failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	takedownID, err := id.ParseTakedownID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.Get(ctx, takedownID)
	if err != nil {
		h.logFailure(ctx, "failed to read takedown", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	takedownID, err := id.ParseTakedownID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	decision, ok := httputil.DecodeAndPrepare[models.DecisionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Decide(ctx, takedownID, auth.GetReviewerID(ctx), decision)
	if err != nil {
		h.logFailure(ctx, "takedown decision failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleCounterNotice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	takedownID, err := id.ParseTakedownID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.CounterNoticeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.SubmitCounterNotice(ctx, takedownID, req)
	if err != nil {
		h.logFailure(ctx, "counter-notice submission failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) HandleGetCounterNotice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	noticeID, err := id.ParseCounterNoticeID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.GetCounterNotice(ctx, noticeID)
	if err != nil {
		h.logFailure(ctx, "failed to read counter-notice", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleCancelRestoration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	noticeID, err := id.ParseCounterNoticeID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.CancelRestorationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.CancelRestoration(ctx, noticeID, auth.GetReviewerID(ctx), req)
	if err != nil {
		h.logFailure(ctx, "restoration cancel failed", err)
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
