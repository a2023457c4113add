package pairing

import (
	"context"
	"time"

	"github.com/oiblz/tally/pkg/domain"
)

// Store persists proposals. Implementations signal failed preconditions
// with sentinel.ErrPrecondition and missing rows with sentinel.ErrNotFound;
// the service translates both exactly once.
type Store interface {
	// Propose inserts a new proposal. The very first proposal ever stored is
	// auto-confirmed at insertion: the bootstrap participant has no
	// counter-party to approve it. The rule keys on "no rows exist yet",
	// not on which identity asked first.
	Propose(ctx context.Context, claimed domain.Identity, device string, now time.Time) (int64, error)

	// State reads a proposal's claimed identity and derived state.
	State(ctx context.Context, id int64) (domain.Identity, State, error)

	// Confirm and Refuse are single conditional updates gated on the row
	// being unresolved. Zero rows affected means the precondition failed.
	Confirm(ctx context.Context, id int64, now time.Time) error
	Refuse(ctx context.Context, id int64, now time.Time) error

	// Convert atomically checks the proposal is Convertible, sets
	// converted_at, and runs issue with the resolved identity, all inside
	// one transaction. A concurrent convert on the same id sees
	// converted_at already set and fails without calling issue.
	Convert(ctx context.Context, id int64, now time.Time, issue func(domain.Identity) (string, error)) (string, error)

	// Confirmable returns the oldest fresh unresolved proposal claimed by
	// the identity other than by, or nil when none is waiting.
	Confirmable(ctx context.Context, by domain.Identity) (*Confirmable, error)
}
