package stats

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"guardian/pkg/platform/httputil"
	"guardian/pkg/platform/middleware/request"
)

type Aggregator interface {
	Dashboard(ctx context.Context) (*Dashboard, error)
}

type Handler struct {
	aggregator Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator Aggregator, logger *slog.Logger) *Handler {
	return &Handler{aggregator: aggregator, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/stats", h.HandleDashboard)
}

func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.aggregator.Dashboard(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to build dashboard",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
