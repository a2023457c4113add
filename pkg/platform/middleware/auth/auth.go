// Package auth is the explicit authentication step in front of protected
// handlers: it reads the bearer credential, runs it through the token
// codec, and either installs typed claims in the request context or
// terminates the request. Handlers never see raw credentials.
package auth

import (
	"log/slog"
	"net/http"

	"github.com/oiblz/tally/internal/platform/metrics"
	"github.com/oiblz/tally/internal/token"
	dErrors "github.com/oiblz/tally/pkg/domain-errors"
	"github.com/oiblz/tally/pkg/platform/httputil"
	"github.com/oiblz/tally/pkg/requestcontext"
)

// Verifier is the subset of the token codec the middleware needs.
type Verifier interface {
	Verify(wire string) (token.Claims, error)
}

// RequirePending admits only callers presenting a valid pending token and
// stores the proposal id in the context.
func RequirePending(verifier Verifier, m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return requireKind(verifier, m, logger, token.KindPending)
}

// RequireSession admits only callers presenting a valid session token and
// stores the resolved identity in the context.
func RequireSession(verifier Verifier, m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return requireKind(verifier, m, logger, token.KindSession)
}

func requireKind(verifier Verifier, m *metrics.Metrics, logger *slog.Logger, kind token.Kind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			wire := r.Header.Get("Authorization")
			if wire == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				if m != nil {
					m.AuthFailures.Inc()
				}
				httputil.WriteJSON(w, http.StatusUnauthorized,
					map[string]string{"error": string(dErrors.CodeAuthRejected)})
				return
			}

			// One opaque rejection regardless of what failed: wrong kind is
			// reported identically to a bad signature.
			claims, err := verifier.Verify(wire)
			if err != nil || claims.Kind != kind {
				logger.WarnContext(ctx, "unauthorized access - rejected token",
					"request_id", requestcontext.RequestID(ctx),
				)
				if m != nil {
					m.AuthFailures.Inc()
				}
				httputil.WriteError(w, dErrors.New(dErrors.CodeAuthRejected, ""))
				return
			}

			switch kind {
			case token.KindPending:
				ctx = requestcontext.WithPending(ctx, requestcontext.Pending{
					ProposalID: claims.ProposalID,
				})
			case token.KindSession:
				ctx = requestcontext.WithSession(ctx, requestcontext.Session{
					ProposalID: claims.ProposalID,
					Who:        claims.Who,
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
