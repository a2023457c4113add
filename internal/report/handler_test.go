package report

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"github.com/oiblz/tally/internal/ledger"
	"github.com/oiblz/tally/internal/token"
	"github.com/oiblz/tally/pkg/domain"
	authmw "github.com/oiblz/tally/pkg/platform/middleware/auth"
)

type HandlerSuite struct {
	suite.Suite
	store  *ledger.MemoryStore
	router http.Handler

	sessionA string
}

func (s *HandlerSuite) SetupTest() {
	codec, err := token.New("report-handler-test-secret")
	s.Require().NoError(err)

	s.store = ledger.NewMemory()
	agg, err := New(s.store, nil)
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := NewHandler(agg, logger)

	r := chi.NewRouter()
	h.Register(r, authmw.RequireSession(codec, nil, logger))
	s.router = r

	s.sessionA = codec.IssueSession(1, domain.IdentityA)
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) do(method, path, authToken, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if authToken != "" {
		req.Header.Set("Authorization", authToken)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) seedConfirmedExpense() {
	id, err := s.store.SubmitExpense(context.Background(), &ledger.Expense{
		Creator:   domain.IdentityA,
		Payer:     domain.IdentityA,
		Split:     domain.SplitEvenly,
		Label:     domain.LabelGroceries,
		Date:      time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Paid:      100,
		Owed:      40,
		CreatedAt: time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC),
	})
	s.Require().NoError(err)
	s.Require().NoError(s.store.ResolveExpense(context.Background(), id, domain.IdentityB, true, time.Now()))
}

func (s *HandlerSuite) TestSummaryEndpoint() {
	s.seedConfirmedExpense()

	rec := s.do(http.MethodGet, "/summary", s.sessionA, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"me":"a","definite":60,"maybe":0,"pending_you":0,"pending_other":0}`, rec.Body.String())
}

func (s *HandlerSuite) TestListEndpoint() {
	s.seedConfirmedExpense()

	rec := s.do(http.MethodPost, "/list", s.sessionA, `{}`)
	s.Require().Equal(http.StatusOK, rec.Code)

	var listing struct {
		Pendings []json.RawMessage `json:"pendings"`
		Months   []struct {
			N     int               `json:"n"`
			Items []json.RawMessage `json:"items"`
		} `json:"months"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &listing))
	s.Empty(listing.Pendings)
	s.Require().Len(listing.Months, 1)
	s.Equal(2024*12+2, listing.Months[0].N)
	s.Len(listing.Months[0].Items, 1)
}

func (s *HandlerSuite) TestListRejectsUnknownLabel() {
	rec := s.do(http.MethodPost, "/list", s.sessionA, `{"labels":["food"]}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestSplitRecommendationEndpoint() {
	s.seedConfirmedExpense()

	rec := s.do(http.MethodGet, "/expense/splitrecc/a/groceries", s.sessionA, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`"evenly"`, rec.Body.String())

	rec = s.do(http.MethodGet, "/expense/splitrecc/b/groceries", s.sessionA, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("null", strings.TrimSpace(rec.Body.String()))

	rec = s.do(http.MethodGet, "/expense/splitrecc/c/groceries", s.sessionA, "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestRoutesRequireSessionToken() {
	rec := s.do(http.MethodGet, "/summary", "", "")
	s.Equal(http.StatusUnauthorized, rec.Code)
}
