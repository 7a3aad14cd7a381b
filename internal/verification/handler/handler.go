package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"guardian/internal/verification/models"
	id "guardian/pkg/domain"
	dErrors "guardian/pkg/domain-errors"
	"guardian/pkg/platform/httputil"
	"guardian/pkg/platform/middleware/auth"
	"guardian/pkg/platform/middleware/request"
)

// Service defines the verification operations exposed over HTTP.
type Service interface {
	Submit(ctx context.Context, req *models.SubmitRequest) (*models.Request, error)
	Get(ctx context.Context, reqID id.VerificationID) (*models.Request, error)
	SubjectStatus(ctx context.Context, subject id.SubjectID) (*models.SubjectStatus, error)
	Retry(ctx context.Context, reqID id.VerificationID) (*models.Request, error)
	Decide(ctx context.Context, reqID id.VerificationID, reviewerID string, decision *models.DecisionRequest) (*models.Request, error)
	Block(ctx context.Context, subject id.SubjectID, reason, actor string) error
	Unblock(ctx context.Context, subject id.SubjectID, actor string) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public submission and read routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/verifications", h.HandleSubmit)
	r.Get("/v1/verifications/{id}", h.HandleGet)
	r.Get("/v1/subjects/{subject_id}/verification", h.HandleSubjectStatus)
}

// RegisterReviewer mounts the moderation-action routes.
func (h *Handler) RegisterReviewer(r chi.Router) {
	r.Post("/v1/verifications/{id}/decision", h.HandleDecide)
	r.Post("/v1/verifications/{id}/retry", h.HandleRetry)
}

// RegisterAdmin mounts block list management.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/v1/blocklist/{subject_id}", h.HandleBlock)
	r.Delete("/v1/blocklist/{subject_id}", h.HandleUnblock)
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
		h.logFailure(ctx, "verification submission failed", err)
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusCreated
	if res.Status == models.StatusPending {
		status = http.StatusAccepted
	}
	httputil.WriteJSON(w, status, res)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID, err := id.ParseVerificationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.Get(ctx, reqID)
	if err != nil {
		h.logFailure(ctx, "failed to read verification", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleSubjectStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject, err := id.ParseSubjectID(chi.URLParam(r, "subject_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.SubjectStatus(ctx, subject)
	if err != nil {
		h.logFailure(ctx, "failed to read subject verification status", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	reqID, err := id.ParseVerificationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	decision, ok := httputil.DecodeAndPrepare[models.DecisionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Decide(ctx, reqID, auth.GetReviewerID(ctx), decision)
	if err != nil {
		h.logFailure(ctx, "verification decision failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID, err := id.ParseVerificationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.Retry(ctx, reqID)
	if err != nil {
		h.logFailure(ctx, "verification retry failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleBlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	subject, err := id.ParseSubjectID(chi.URLParam(r, "subject_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var reason string
	if r.ContentLength != 0 {
		body, ok := httputil.DecodeAndPrepare[models.BlockRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
		reason = body.Reason
	}

	if err := h.service.Block(ctx, subject, reason, auth.GetReviewerID(ctx)); err != nil {
		h.logFailure(ctx, "failed to block subject", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleUnblock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject, err := id.ParseSubjectID(chi.URLParam(r, "subject_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Unblock(ctx, subject, auth.GetReviewerID(ctx)); err != nil {
		h.logFailure(ctx, "failed to unblock subject", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// logFailure logs unexpected errors; client errors are left to the response.
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
