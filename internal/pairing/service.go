package pairing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oiblz/tally/internal/platform/metrics"
	"github.com/oiblz/tally/internal/platform/tracer"
	"github.com/oiblz/tally/internal/sentinel"
	"github.com/oiblz/tally/internal/token"
	"github.com/oiblz/tally/pkg/domain"
	dErrors "github.com/oiblz/tally/pkg/domain-errors"
)

// Service implements the pairing state machine on top of a Store and the
// token codec. All cross-request coordination lives in the store; the
// service holds no mutable state.
type Service struct {
	store   Store
	codec   *token.Codec
	metrics *metrics.Metrics
	tracer  tracer.Tracer
	now     func() time.Time
}

// New constructs the pairing service. metrics may be nil in tests.
func New(store Store, codec *token.Codec, m *metrics.Metrics, tr tracer.Tracer) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("pairing: store is required")
	}
	if codec == nil {
		return nil, fmt.Errorf("pairing: token codec is required")
	}
	if tr == nil {
		tr = tracer.Noop{}
	}
	return &Service{store: store, codec: codec, metrics: m, tracer: tr, now: time.Now}, nil
}

// Propose records a pairing attempt claiming the given identity and
// returns the pending token the caller will poll and convert with.
func (s *Service) Propose(ctx context.Context, claimed domain.Identity, device string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "pairing.propose")
	var err error
	defer func() { span.End(err) }()

	if !claimed.Valid() {
		err = dErrors.New(dErrors.CodeValidation, "unknown identity")
		return "", err
	}

	id, err := s.store.Propose(ctx, claimed, device, s.now())
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "propose pairing")
		return "", err
	}
	if s.metrics != nil {
		s.metrics.ProposalsCreated.Inc()
	}
	return s.codec.IssuePending(id), nil
}

// State reports the derived state of the caller's own proposal. A proposal
// that never existed is CodeNotFound; the pending-token guard upstream
// means only holders of a validly signed token can reach this.
func (s *Service) State(ctx context.Context, id int64) (State, error) {
	_, state, err := s.store.State(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "read pairing state")
	}
	return state, nil
}

// Confirm resolves someone else's proposal as approved. The state read is
// an optimization and a caller check; correctness lives in the store's
// conditional update.
func (s *Service) Confirm(ctx context.Context, id int64, caller domain.Identity) error {
	return s.resolve(ctx, id, caller, s.store.Confirm)
}

// Refuse resolves someone else's proposal as rejected.
func (s *Service) Refuse(ctx context.Context, id int64, caller domain.Identity) error {
	return s.resolve(ctx, id, caller, s.store.Refuse)
}

func (s *Service) resolve(ctx context.Context, id int64, caller domain.Identity, mutate func(context.Context, int64, time.Time) error) error {
	ctx, span := s.tracer.Start(ctx, "pairing.resolve")
	var err error
	defer func() { span.End(err) }()

	claimed, state, err := s.store.State(ctx, id)
	if err != nil {
		// Unknown id and wrong state are indistinguishable to the caller.
		if errors.Is(err, sentinel.ErrNotFound) {
			err = dErrors.New(dErrors.CodePrecondition, "")
			return err
		}
		err = dErrors.Wrap(err, dErrors.CodeInternal, "read pairing state")
		return err
	}
	if state != StateConfirmable || claimed == caller {
		err = dErrors.New(dErrors.CodePrecondition, "")
		return err
	}

	if err = mutate(ctx, id, s.now()); err != nil {
		if errors.Is(err, sentinel.ErrPrecondition) {
			err = dErrors.New(dErrors.CodePrecondition, "")
			return err
		}
		err = dErrors.Wrap(err, dErrors.CodeInternal, "resolve pairing")
		return err
	}
	return nil
}

// Convert exchanges a confirmed proposal for a session token. Issuance
// happens inside the store transaction; a losing racer never gets a token.
func (s *Service) Convert(ctx context.Context, id int64) (string, error) {
	ctx, span := s.tracer.Start(ctx, "pairing.convert")
	var err error
	defer func() { span.End(err) }()

	wire, err := s.store.Convert(ctx, id, s.now(), func(who domain.Identity) (string, error) {
		return s.codec.IssueSession(id, who), nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrPrecondition) {
			err = dErrors.New(dErrors.CodePrecondition, "")
			return "", err
		}
		err = dErrors.Wrap(err, dErrors.CodeInternal, "convert pairing")
		return "", err
	}
	if s.metrics != nil {
		s.metrics.ProposalsConverted.Inc()
	}
	return wire, nil
}

// Confirmable returns the oldest proposal awaiting the caller's approval,
// or nil when none is waiting.
func (s *Service) Confirmable(ctx context.Context, caller domain.Identity) (*Confirmable, error) {
	c, err := s.store.Confirmable(ctx, caller)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find confirmable")
	}
	return c, nil
}
