// Package requestcontext carries per-request values set by middleware:
// the request ID and the authenticated token claims. Handlers read from
// here instead of re-parsing credentials.
package requestcontext

import (
	"context"

	"github.com/oiblz/tally/pkg/domain"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	pendingKey
	sessionKey
	userAgentKey
)

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request ID, or "" when no middleware set one.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithUserAgent stores the raw User-Agent header in the context.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey, ua)
}

// UserAgent returns the raw User-Agent header, or "".
func UserAgent(ctx context.Context) string {
	ua, _ := ctx.Value(userAgentKey).(string)
	return ua
}

// Pending identifies a caller holding a pending (ask) token. It names a
// proposal, not an identity.
type Pending struct {
	ProposalID int64
}

// WithPending stores verified pending-token claims in the context.
func WithPending(ctx context.Context, p Pending) context.Context {
	return context.WithValue(ctx, pendingKey, p)
}

// PendingFrom returns the pending claims set by the auth middleware.
func PendingFrom(ctx context.Context) (Pending, bool) {
	p, ok := ctx.Value(pendingKey).(Pending)
	return p, ok
}

// Session identifies a caller holding a session token: the proposal the
// session was converted from and the resolved identity.
type Session struct {
	ProposalID int64
	Who        domain.Identity
}

// WithSession stores verified session-token claims in the context.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFrom returns the session claims set by the auth middleware.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}
