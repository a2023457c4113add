package ledger

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/oiblz/tally/pkg/domain"
	dErrors "github.com/oiblz/tally/pkg/domain-errors"
	"github.com/oiblz/tally/pkg/testutil"
)

type ServiceSuite struct {
	suite.Suite
	store   *MemoryStore
	service *Service
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewMemory()

	svc, err := New(s.store, nil, nil)
	s.Require().NoError(err)

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

func (s *ServiceSuite) date() time.Time {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
}

func (s *ServiceSuite) submit(creator domain.Identity, cmd *SubmitExpenseCommand) int64 {
	id, err := s.service.SubmitExpense(context.Background(), creator, cmd)
	s.Require().NoError(err)
	return id
}

func int64Ptr(v int64) *int64 { return &v }

func (s *ServiceSuite) TestProportionalOwedDependsOnPayer() {
	idA := s.submit(domain.IdentityA, &SubmitExpenseCommand{
		Payer: domain.IdentityA,
		Split: domain.SplitProportional,
		Label: domain.LabelGroceries,
		Date:  s.date(),
		Paid:  300,
	})
	idB := s.submit(domain.IdentityA, &SubmitExpenseCommand{
		Payer: domain.IdentityB,
		Split: domain.SplitProportional,
		Label: domain.LabelGroceries,
		Date:  s.date(),
		Paid:  300,
	})

	expenses, err := s.store.AllExpenses(context.Background())
	s.Require().NoError(err)
	byID := make(map[int64]Expense, len(expenses))
	for _, e := range expenses {
		byID[e.ID] = e
	}

	s.Equal(int64(100), byID[idA].Owed)
	s.Equal(int64(200), byID[idB].Owed)
}

func (s *ServiceSuite) TestEvenSplitHalvesPaid() {
	id := s.submit(domain.IdentityB, &SubmitExpenseCommand{
		Payer: domain.IdentityB,
		Split: domain.SplitEvenly,
		Label: domain.LabelLeisure,
		Date:  s.date(),
		Paid:  101,
	})

	expenses, err := s.store.AllExpenses(context.Background())
	s.Require().NoError(err)
	s.Require().Len(expenses, 1)
	s.Equal(id, expenses[0].ID)
	// Integer truncation, not rounding.
	s.Equal(int64(50), expenses[0].Owed)
}

func (s *ServiceSuite) TestFixedSplitsRejectCallerOwed() {
	for _, split := range []domain.Split{domain.SplitProportional, domain.SplitEvenly} {
		_, err := s.service.SubmitExpense(context.Background(), domain.IdentityA, &SubmitExpenseCommand{
			Payer: domain.IdentityA,
			Split: split,
			Label: domain.LabelOther,
			Date:  s.date(),
			Paid:  100,
			Owed:  int64Ptr(10),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation), "split %s", split)
	}
}

func (s *ServiceSuite) TestArbitrarySplitBounds() {
	_, err := s.service.SubmitExpense(context.Background(), domain.IdentityA, &SubmitExpenseCommand{
		Payer: domain.IdentityA,
		Split: domain.SplitArbitrary,
		Label: domain.LabelOther,
		Date:  s.date(),
		Paid:  100,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation), "missing owed")

	_, err = s.service.SubmitExpense(context.Background(), domain.IdentityA, &SubmitExpenseCommand{
		Payer: domain.IdentityA,
		Split: domain.SplitArbitrary,
		Label: domain.LabelOther,
		Date:  s.date(),
		Paid:  100,
		Owed:  int64Ptr(101),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation), "owed above paid")

	// Nothing reached the store.
	expenses, err := s.store.AllExpenses(context.Background())
	s.Require().NoError(err)
	s.Empty(expenses)

	id := s.submit(domain.IdentityA, &SubmitExpenseCommand{
		Payer: domain.IdentityA,
		Split: domain.SplitArbitrary,
		Label: domain.LabelOther,
		Date:  s.date(),
		Paid:  100,
		Owed:  int64Ptr(0),
	})
	s.Positive(id)
}

func (s *ServiceSuite) TestNegativePaidRejected() {
	_, err := s.service.SubmitExpense(context.Background(), domain.IdentityA, &SubmitExpenseCommand{
		Payer: domain.IdentityA,
		Split: domain.SplitEvenly,
		Label: domain.LabelOther,
		Date:  s.date(),
		Paid:  -1,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestCreatorCannotResolveOwnExpense() {
	id := s.submit(domain.IdentityA, &SubmitExpenseCommand{
		Payer: domain.IdentityA,
		Split: domain.SplitEvenly,
		Label: domain.LabelGroceries,
		Date:  s.date(),
		Paid:  100,
	})

	err := s.service.ConfirmExpense(context.Background(), id, domain.IdentityA)
	s.True(dErrors.HasCode(err, dErrors.CodePrecondition))

	err = s.service.ConfirmExpense(context.Background(), id, domain.IdentityB)
	s.NoError(err)
}

func (s *ServiceSuite) TestResolvedExpenseStaysResolved() {
	id := s.submit(domain.IdentityA, &SubmitExpenseCommand{
		Payer: domain.IdentityA,
		Split: domain.SplitEvenly,
		Label: domain.LabelGroceries,
		Date:  s.date(),
		Paid:  100,
	})

	s.Require().NoError(s.service.RefuseExpense(context.Background(), id, domain.IdentityB))

	err := s.service.ConfirmExpense(context.Background(), id, domain.IdentityB)
	s.True(dErrors.HasCode(err, dErrors.CodePrecondition))
}

func (s *ServiceSuite) TestResolveUnknownExpenseFailsPrecondition() {
	err := s.service.ConfirmExpense(context.Background(), 404, domain.IdentityB)
	s.True(dErrors.HasCode(err, dErrors.CodePrecondition))
}

func (s *ServiceSuite) TestConcurrentResolveExactlyOneWins() {
	id := s.submit(domain.IdentityA, &SubmitExpenseCommand{
		Payer: domain.IdentityA,
		Split: domain.SplitEvenly,
		Label: domain.LabelGroceries,
		Date:  s.date(),
		Paid:  100,
	})

	result := testutil.RunConcurrent(8, func(idx int) error {
		if idx%2 == 0 {
			return s.service.ConfirmExpense(context.Background(), id, domain.IdentityB)
		}
		return s.service.RefuseExpense(context.Background(), id, domain.IdentityB)
	})

	s.Equal(int32(1), result.Successes)
	s.Equal(int32(7), result.Preconditions)
	s.Equal(int32(0), result.Errors)
}

func (s *ServiceSuite) TestTransferReceiverIsCounterParty() {
	id, err := s.service.SubmitTransfer(context.Background(), domain.IdentityA, s.date(), 250)
	s.Require().NoError(err)

	transfers, err := s.store.AllTransfers(context.Background())
	s.Require().NoError(err)
	s.Require().Len(transfers, 1)
	s.Equal(id, transfers[0].ID)
	s.Equal(domain.IdentityA, transfers[0].Sender)
	s.Equal(domain.IdentityB, transfers[0].Receiver)
}

func (s *ServiceSuite) TestOnlyReceiverResolvesTransfer() {
	id, err := s.service.SubmitTransfer(context.Background(), domain.IdentityA, s.date(), 250)
	s.Require().NoError(err)

	err = s.service.ConfirmTransfer(context.Background(), id, domain.IdentityA)
	s.True(dErrors.HasCode(err, dErrors.CodePrecondition))

	s.NoError(s.service.ConfirmTransfer(context.Background(), id, domain.IdentityB))
}

func (s *ServiceSuite) TestNegativeTransferRejected() {
	_, err := s.service.SubmitTransfer(context.Background(), domain.IdentityA, s.date(), -5)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}
