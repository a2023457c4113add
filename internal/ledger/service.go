package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oiblz/tally/internal/platform/metrics"
	"github.com/oiblz/tally/internal/platform/tracer"
	"github.com/oiblz/tally/internal/sentinel"
	"github.com/oiblz/tally/pkg/domain"
	dErrors "github.com/oiblz/tally/pkg/domain-errors"
)

// SubmitExpenseCommand carries a validated-shape expense submission. Owed
// is a pointer so "absent" and "zero" stay distinct: fixed-ratio splits
// must not supply it, the arbitrary split must.
type SubmitExpenseCommand struct {
	Payer  domain.Identity
	Split  domain.Split
	Label  domain.Label
	Detail string
	Date   time.Time
	Paid   int64
	Owed   *int64
}

// Service implements submission and resolution over the ledger store.
type Service struct {
	store   Store
	metrics *metrics.Metrics
	tracer  tracer.Tracer
	now     func() time.Time
}

// New constructs the ledger service. metrics may be nil in tests.
func New(store Store, m *metrics.Metrics, tr tracer.Tracer) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger: store is required")
	}
	if tr == nil {
		tr = tracer.Noop{}
	}
	return &Service{store: store, metrics: m, tracer: tr, now: time.Now}, nil
}

// SubmitExpense validates the split/amount combination and inserts the
// expense. Owed amounts for fixed-ratio splits are computed server-side
// with integer truncation; the caller never dictates them.
func (s *Service) SubmitExpense(ctx context.Context, creator domain.Identity, cmd *SubmitExpenseCommand) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.submit_expense")
	var err error
	defer func() { span.End(err) }()

	if cmd.Paid < 0 {
		err = dErrors.New(dErrors.CodeValidation, "paid amount must not be negative")
		return 0, err
	}

	owed, err := ComputeOwed(cmd.Split, cmd.Payer, cmd.Paid, cmd.Owed)
	if err != nil {
		return 0, err
	}

	id, err := s.store.SubmitExpense(ctx, &Expense{
		Creator:   creator,
		Payer:     cmd.Payer,
		Split:     cmd.Split,
		Label:     cmd.Label,
		Detail:    cmd.Detail,
		Date:      cmd.Date,
		Paid:      cmd.Paid,
		Owed:      owed,
		CreatedAt: s.now(),
	})
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "submit expense")
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.EntriesSubmitted.WithLabelValues("expense").Inc()
	}
	return id, nil
}

// ComputeOwed derives the counter-party's share under the split policy.
// Integer division truncates; no rounding is applied beyond that.
func ComputeOwed(split domain.Split, payer domain.Identity, paid int64, owed *int64) (int64, error) {
	switch split {
	case domain.SplitArbitrary:
		if owed == nil {
			return 0, dErrors.New(dErrors.CodeValidation, "arbitrary split requires an owed amount")
		}
		if *owed < 0 || *owed > paid {
			return 0, dErrors.New(dErrors.CodeValidation, "owed amount must be between zero and the paid amount")
		}
		return *owed, nil
	case domain.SplitProportional:
		if owed != nil {
			return 0, dErrors.New(dErrors.CodeValidation, "proportional split owed amount is computed, not supplied")
		}
		// Fixed 1:2 household ratio keyed by payer.
		if payer == domain.IdentityA {
			return paid / 3, nil
		}
		return paid * 2 / 3, nil
	case domain.SplitEvenly:
		if owed != nil {
			return 0, dErrors.New(dErrors.CodeValidation, "even split owed amount is computed, not supplied")
		}
		return paid / 2, nil
	}
	return 0, dErrors.New(dErrors.CodeValidation, "unknown split")
}

// SubmitTransfer inserts a transfer from creator to the counter-party.
func (s *Service) SubmitTransfer(ctx context.Context, creator domain.Identity, date time.Time, amount int64) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.submit_transfer")
	var err error
	defer func() { span.End(err) }()

	if amount < 0 {
		err = dErrors.New(dErrors.CodeValidation, "amount must not be negative")
		return 0, err
	}

	id, err := s.store.SubmitTransfer(ctx, &Transfer{
		Sender:    creator,
		Receiver:  creator.Other(),
		Date:      date,
		Amount:    amount,
		CreatedAt: s.now(),
	})
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "submit transfer")
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.EntriesSubmitted.WithLabelValues("transfer").Inc()
	}
	return id, nil
}

// ConfirmExpense resolves an expense as approved.
func (s *Service) ConfirmExpense(ctx context.Context, id int64, caller domain.Identity) error {
	return s.resolve(ctx, "expense", id, caller, true, s.store.ResolveExpense)
}

// RefuseExpense resolves an expense as rejected.
func (s *Service) RefuseExpense(ctx context.Context, id int64, caller domain.Identity) error {
	return s.resolve(ctx, "expense", id, caller, false, s.store.ResolveExpense)
}

// ConfirmTransfer resolves a transfer as approved.
func (s *Service) ConfirmTransfer(ctx context.Context, id int64, caller domain.Identity) error {
	return s.resolve(ctx, "transfer", id, caller, true, s.store.ResolveTransfer)
}

// RefuseTransfer resolves a transfer as rejected.
func (s *Service) RefuseTransfer(ctx context.Context, id int64, caller domain.Identity) error {
	return s.resolve(ctx, "transfer", id, caller, false, s.store.ResolveTransfer)
}

func (s *Service) resolve(ctx context.Context, kind string, id int64, caller domain.Identity, confirm bool, op func(context.Context, int64, domain.Identity, bool, time.Time) error) error {
	ctx, span := s.tracer.Start(ctx, "ledger.resolve")
	var err error
	defer func() { span.End(err) }()

	if err = op(ctx, id, caller, confirm, s.now()); err != nil {
		if errors.Is(err, sentinel.ErrPrecondition) {
			err = dErrors.New(dErrors.CodePrecondition, "")
			return err
		}
		err = dErrors.Wrap(err, dErrors.CodeInternal, "resolve entry")
		return err
	}
	if s.metrics != nil {
		s.metrics.EntriesResolved.WithLabelValues(kind, resolutionName(confirm)).Inc()
	}
	return nil
}

func resolutionName(confirm bool) string {
	if confirm {
		return "confirmed"
	}
	return "refused"
}
