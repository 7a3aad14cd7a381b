package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"guardian/internal/scanning/models"
	id "guardian/pkg/domain"
	"guardian/pkg/platform/httputil"
	"guardian/pkg/platform/middleware/request"
)

// Service defines the scanning operations exposed over HTTP.
type Service interface {
	Scan(ctx context.Context, req *models.ScanRequest) (*models.ScanResult, error)
	Get(ctx context.Context, scanID id.ScanID) (*models.ScanResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/scans", h.HandleScan)
	r.Get("/v1/scans/{id}", h.HandleGet)
}

// HandleScan always answers 201 for a well-formed request; a failed
// analysis is reported in the result as a quarantine.
func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.ScanRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Scan(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "scan failed",
			"request_id", requestID,
			"content_id", req.ContentID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scanID, err := id.ParseScanID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.Get(ctx, scanID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
