package pairing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"github.com/oiblz/tally/internal/token"
	"github.com/oiblz/tally/pkg/domain"
	authmw "github.com/oiblz/tally/pkg/platform/middleware/auth"
)

// HandlerSuite drives the full pairing exchange through the router with
// the real middleware, codec, and in-memory store wired together.
type HandlerSuite struct {
	suite.Suite
	codec  *token.Codec
	router http.Handler
}

func (s *HandlerSuite) SetupTest() {
	codec, err := token.New("handler-test-secret")
	s.Require().NoError(err)
	s.codec = codec

	svc, err := New(NewMemory(), codec, nil, nil)
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := NewHandler(svc, logger)

	r := chi.NewRouter()
	h.Register(r,
		authmw.RequirePending(codec, nil, logger),
		authmw.RequireSession(codec, nil, logger),
	)
	s.router = r
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) do(method, path, authToken string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authToken != "" {
		req.Header.Set("Authorization", authToken)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) ask(identity domain.Identity) string {
	rec := s.do(http.MethodPost, "/session/ask/"+identity.String(), "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp TokenResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Require().NotEmpty(resp.Token)
	return resp.Token
}

func (s *HandlerSuite) convert(pendingToken string) string {
	rec := s.do(http.MethodPost, "/session/convert", pendingToken)
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp TokenResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

// bootstrap pairs identity A through the auto-confirmed first proposal and
// returns its session token.
func (s *HandlerSuite) bootstrap() string {
	return s.convert(s.ask(domain.IdentityA))
}

func (s *HandlerSuite) TestFullPairingExchange() {
	sessionA := s.bootstrap()

	// B asks to pair and polls: confirmable until A acts.
	pendingB := s.ask(domain.IdentityB)

	rec := s.do(http.MethodGet, "/session/state", pendingB)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`"confirmable"`, rec.Body.String())

	// A sees B's proposal waiting.
	rec = s.do(http.MethodGet, "/session/confirmable", sessionA)
	s.Require().Equal(http.StatusOK, rec.Code)
	var confirmable Confirmable
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &confirmable))
	s.NotZero(confirmable.ID)

	// A confirms; B's proposal becomes convertible and converts.
	rec = s.do(http.MethodPost, fmt.Sprintf("/session/confirm/%d", confirmable.ID), sessionA)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/session/state", pendingB)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`"convertible"`, rec.Body.String())

	sessionB := s.convert(pendingB)
	claims, err := s.codec.Verify(sessionB)
	s.Require().NoError(err)
	s.Equal(token.KindSession, claims.Kind)
	s.Equal(domain.IdentityB, claims.Who)
}

func (s *HandlerSuite) TestRefusedProposalCannotConvert() {
	sessionA := s.bootstrap()
	pendingB := s.ask(domain.IdentityB)

	claims, err := s.codec.Verify(pendingB)
	s.Require().NoError(err)

	rec := s.do(http.MethodPost, fmt.Sprintf("/session/refuse/%d", claims.ProposalID), sessionA)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/session/convert", pendingB)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestAskUnknownIdentity() {
	rec := s.do(http.MethodPost, "/session/ask/c", "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestStateRequiresPendingToken() {
	rec := s.do(http.MethodGet, "/session/state", "")
	s.Equal(http.StatusUnauthorized, rec.Code)

	// A session token is the wrong kind here.
	rec = s.do(http.MethodGet, "/session/state", s.bootstrap())
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *HandlerSuite) TestConfirmRejectsMalformedID() {
	rec := s.do(http.MethodPost, "/session/confirm/notanumber", s.bootstrap())
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestCancelAndDropAcknowledge() {
	sessionA := s.bootstrap()
	pendingB := s.ask(domain.IdentityB)

	rec := s.do(http.MethodPost, "/session/cancel", pendingB)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/session/drop", sessionA)
	s.Equal(http.StatusOK, rec.Code)
}
