// Package httptransport assembles the HTTP API: public submission and read
// routes, role-gated moderation routes, health probes, and metrics.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ledgerhandler "guardian/internal/ledger/handler"
	"guardian/internal/platform/health"
	reporthandler "guardian/internal/reports/handler"
	scanhandler "guardian/internal/scanning/handler"
	"guardian/internal/stats"
	takedownhandler "guardian/internal/takedown/handler"
	verificationhandler "guardian/internal/verification/handler"
	"guardian/pkg/platform/middleware/auth"
	"guardian/pkg/platform/middleware/request"
	"guardian/pkg/platform/middleware/requesttime"
)

// DefaultMaxBodyBytes bounds request bodies; scan payloads are the largest.
const DefaultMaxBodyBytes = 16 << 20

// Handlers are the mounted feature handlers. A nil handler is skipped.
type Handlers struct {
	Verifications *verificationhandler.Handler
	Scans         *scanhandler.Handler
	Reports       *reporthandler.Handler
	Takedowns     *takedownhandler.Handler
	Ledger        *ledgerhandler.Handler
	Stats         *stats.Handler
	Health        *health.Handler
}

type Options struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	Metrics        *request.Metrics
}

// NewRouter wires all endpoints with middleware. Moderation routes require
// a bearer token carrying the reviewer, legal, or admin role.
func NewRouter(h Handlers, validator auth.TokenValidator, logger *slog.Logger, opts Options) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(request.Logger(logger))
	r.Use(request.LatencyMiddleware(opts.Metrics, routePattern))
	r.Use(requesttime.Middleware)

	if h.Health != nil {
		h.Health.Register(r)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(opts.RequestTimeout))
		r.Use(request.BodyLimit(opts.MaxBodyBytes))
		r.Use(request.ContentTypeJSON)

		if h.Verifications != nil {
			h.Verifications.Register(r)
		}
		if h.Scans != nil {
			h.Scans.Register(r)
		}
		if h.Reports != nil {
			h.Reports.Register(r)
		}
		if h.Takedowns != nil {
			h.Takedowns.Register(r)
		}
		if h.Stats != nil {
			h.Stats.Register(r)
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRoles(validator, logger, auth.RoleReviewer))
			if h.Verifications != nil {
				h.Verifications.RegisterReviewer(r)
			}
			if h.Reports != nil {
				h.Reports.RegisterReviewer(r)
			}
			if h.Ledger != nil {
				h.Ledger.Register(r)
			}
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRoles(validator, logger, auth.RoleLegal))
			if h.Takedowns != nil {
				h.Takedowns.RegisterLegal(r)
			}
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRoles(validator, logger))
			if h.Verifications != nil {
				h.Verifications.RegisterAdmin(r)
			}
			if h.Ledger != nil {
				h.Ledger.RegisterAdmin(r)
			}
		})
	})

	return r
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
