package ledger

import (
	"context"
	"time"

	"github.com/oiblz/tally/pkg/domain"
)

// Store persists ledger entries. Resolution methods signal a failed
// precondition (already resolved, unknown id, caller is the creator) with
// sentinel.ErrPrecondition; they never distinguish which guard tripped.
type Store interface {
	// SubmitExpense inserts a validated expense and returns its id.
	SubmitExpense(ctx context.Context, e *Expense) (int64, error)

	// SubmitTransfer inserts a validated transfer and returns its id.
	SubmitTransfer(ctx context.Context, t *Transfer) (int64, error)

	// ResolveExpense and ResolveTransfer run the read-only resolvable check
	// and the conditional update inside one transaction. The authorization
	// guard (creator never resolves its own entry) lives in the update
	// predicate itself, not in application logic.
	ResolveExpense(ctx context.Context, id int64, caller domain.Identity, confirm bool, now time.Time) error
	ResolveTransfer(ctx context.Context, id int64, caller domain.Identity, confirm bool, now time.Time) error

	// AllExpenses and AllTransfers feed the read models.
	AllExpenses(ctx context.Context) ([]Expense, error)
	AllTransfers(ctx context.Context) ([]Transfer, error)
}
