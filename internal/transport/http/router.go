// Package httptransport assembles the HTTP surface: middleware stack,
// domain handlers, and the operational endpoints.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oiblz/tally/internal/ledger"
	"github.com/oiblz/tally/internal/pairing"
	"github.com/oiblz/tally/internal/platform/health"
	"github.com/oiblz/tally/internal/platform/metrics"
	"github.com/oiblz/tally/internal/report"
	"github.com/oiblz/tally/internal/token"
	authmw "github.com/oiblz/tally/pkg/platform/middleware/auth"
	requestmw "github.com/oiblz/tally/pkg/platform/middleware/request"
)

// maxRequestBody bounds request bodies; the largest legitimate payload
// is a label filter list.
const maxRequestBody = 64 << 10

// Deps carries everything the router needs. Handlers stay thin; the
// services behind them own the semantics.
type Deps struct {
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Codec       *token.Codec
	Pairing     *pairing.Service
	Ledger      *ledger.Service
	Report      *report.Aggregator
	Health      *health.Handler
	AllowOrigin string
}

// NewRouter wires all endpoints with the shared middleware stack.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(requestmw.Recovery(d.Logger))
	r.Use(requestmw.RequestID)
	r.Use(requestmw.ClientMetadata)
	r.Use(requestmw.Logger(d.Logger))
	r.Use(requestmw.CORS(d.AllowOrigin))
	r.Use(requestmw.BodyLimit(maxRequestBody))
	r.Use(requestmw.ContentTypeJSON)
	r.Use(requestmw.Latency(d.Metrics))

	r.Get("/", handleBanner)
	if d.Health != nil {
		d.Health.Register(r)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	requirePending := authmw.RequirePending(d.Codec, d.Metrics, d.Logger)
	requireSession := authmw.RequireSession(d.Codec, d.Metrics, d.Logger)

	pairing.NewHandler(d.Pairing, d.Logger).Register(r, requirePending, requireSession)
	ledger.NewHandler(d.Ledger, d.Logger).Register(r, requireSession)
	report.NewHandler(d.Report, d.Logger).Register(r, requireSession)

	return r
}

func handleBanner(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("tally\n"))
}
