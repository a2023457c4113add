package pairing

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/oiblz/tally/internal/token"
	"github.com/oiblz/tally/pkg/domain"
	dErrors "github.com/oiblz/tally/pkg/domain-errors"
	"github.com/oiblz/tally/pkg/testutil"
)

type ServiceSuite struct {
	suite.Suite
	store   *MemoryStore
	codec   *token.Codec
	service *Service
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewMemory()
	codec, err := token.New("pairing-test-secret")
	s.Require().NoError(err)
	s.codec = codec

	svc, err := New(s.store, codec, nil, nil)
	s.Require().NoError(err)

	// Deterministic strictly-increasing clock so recency comparisons never
	// collide on coarse timestamps.
	var ticks atomic.Int64
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		return base.Add(time.Duration(ticks.Add(1)) * time.Second)
	}
	s.service = svc
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

// propose creates a proposal and returns its id via the pending token.
func (s *ServiceSuite) propose(claimed domain.Identity) int64 {
	wire, err := s.service.Propose(context.Background(), claimed, "test device")
	s.Require().NoError(err)

	claims, err := s.codec.Verify(wire)
	s.Require().NoError(err)
	s.Require().Equal(token.KindPending, claims.Kind)
	return claims.ProposalID
}

func (s *ServiceSuite) TestFirstProposalAutoConfirms() {
	id := s.propose(domain.IdentityA)

	state, err := s.service.State(context.Background(), id)
	s.Require().NoError(err)
	s.Equal(StateConvertible, state)

	// The bootstrap participant converts without any counter-party action.
	wire, err := s.service.Convert(context.Background(), id)
	s.Require().NoError(err)

	claims, err := s.codec.Verify(wire)
	s.Require().NoError(err)
	s.Equal(token.KindSession, claims.Kind)
	s.Equal(domain.IdentityA, claims.Who)
}

func (s *ServiceSuite) TestSubsequentProposalsStartConfirmable() {
	s.propose(domain.IdentityA)
	id := s.propose(domain.IdentityB)

	state, err := s.service.State(context.Background(), id)
	s.Require().NoError(err)
	s.Equal(StateConfirmable, state)
}

func (s *ServiceSuite) TestNewerProposalMakesOlderStale() {
	s.propose(domain.IdentityA)
	p1 := s.propose(domain.IdentityB)
	p2 := s.propose(domain.IdentityB)

	state, err := s.service.State(context.Background(), p1)
	s.Require().NoError(err)
	s.Equal(StateStale, state)

	state, err = s.service.State(context.Background(), p2)
	s.Require().NoError(err)
	s.Equal(StateConfirmable, state)

	// Stale proposals can never be confirmed, even by the right caller.
	err = s.service.Confirm(context.Background(), p1, domain.IdentityA)
	s.Require().ErrorIs(err, dErrors.New(dErrors.CodePrecondition, ""))
}

func (s *ServiceSuite) TestClaimedIdentityCannotSelfConfirm() {
	s.propose(domain.IdentityA)
	id := s.propose(domain.IdentityB)

	err := s.service.Confirm(context.Background(), id, domain.IdentityB)
	s.Require().ErrorIs(err, dErrors.New(dErrors.CodePrecondition, ""))

	// The counter-party can.
	s.Require().NoError(s.service.Confirm(context.Background(), id, domain.IdentityA))
}

func (s *ServiceSuite) TestConvertBeforeConfirmFails() {
	s.propose(domain.IdentityA)
	id := s.propose(domain.IdentityB)

	wire, err := s.service.Convert(context.Background(), id)
	s.Require().ErrorIs(err, dErrors.New(dErrors.CodePrecondition, ""))
	s.Empty(wire)
}

func (s *ServiceSuite) TestConvertIsExactlyOnce() {
	s.propose(domain.IdentityA)
	id := s.propose(domain.IdentityB)
	s.Require().NoError(s.service.Confirm(context.Background(), id, domain.IdentityA))

	res := testutil.RunConcurrent(8, func(int) error {
		_, err := s.service.Convert(context.Background(), id)
		return err
	})

	s.Equal(int32(1), res.Successes)
	s.Equal(int32(7), res.Preconditions)
	s.Equal(int32(0), res.Errors)
}

func (s *ServiceSuite) TestConcurrentConfirmRefuseExactlyOneWins() {
	s.propose(domain.IdentityA)
	id := s.propose(domain.IdentityB)

	res := testutil.RunConcurrent(8, func(idx int) error {
		if idx%2 == 0 {
			return s.service.Confirm(context.Background(), id, domain.IdentityA)
		}
		return s.service.Refuse(context.Background(), id, domain.IdentityA)
	})

	s.Equal(int32(1), res.Successes)
	s.Equal(int32(7), res.Preconditions)
	s.Equal(int32(0), res.Errors)
}

func (s *ServiceSuite) TestRefusedProposalReportsRefused() {
	s.propose(domain.IdentityA)
	id := s.propose(domain.IdentityB)
	s.Require().NoError(s.service.Refuse(context.Background(), id, domain.IdentityA))

	state, err := s.service.State(context.Background(), id)
	s.Require().NoError(err)
	s.Equal(StateRefused, state)

	// A refused proposal never converts.
	_, err = s.service.Convert(context.Background(), id)
	s.Require().ErrorIs(err, dErrors.New(dErrors.CodePrecondition, ""))
}

func (s *ServiceSuite) TestStateUnknownProposal() {
	_, err := s.service.State(context.Background(), 999)
	s.Require().ErrorIs(err, dErrors.New(dErrors.CodeNotFound, ""))
}

func (s *ServiceSuite) TestConfirmable() {
	ctx := context.Background()

	// Nothing waiting on an empty registry.
	c, err := s.service.Confirmable(ctx, domain.IdentityA)
	s.Require().NoError(err)
	s.Nil(c)

	s.propose(domain.IdentityA) // bootstrap, auto-confirmed
	id := s.propose(domain.IdentityB)

	// Waiting for A, invisible to B (B cannot approve its own claim).
	c, err = s.service.Confirmable(ctx, domain.IdentityA)
	s.Require().NoError(err)
	s.Require().NotNil(c)
	s.Equal(id, c.ID)
	s.Equal("test device", c.Device)

	c, err = s.service.Confirmable(ctx, domain.IdentityB)
	s.Require().NoError(err)
	s.Nil(c)
}

func (s *ServiceSuite) TestProposeRejectsUnknownIdentity() {
	_, err := s.service.Propose(context.Background(), domain.Identity("c"), "dev")
	s.Require().ErrorIs(err, dErrors.New(dErrors.CodeValidation, ""))
}
