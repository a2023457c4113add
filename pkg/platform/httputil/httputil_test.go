package httputil

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "github.com/oiblz/tally/pkg/domain-errors"
)

type testRequest struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestDecodeJSON(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	t.Run("decodes valid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"rent","value":3}`))
		w := httptest.NewRecorder()

		decoded, ok := DecodeJSON[testRequest](w, req, logger, req.Context(), "req-1")
		require.True(t, ok)
		assert.Equal(t, "rent", decoded.Name)
		assert.Equal(t, 3, decoded.Value)
	})

	t.Run("malformed body writes validation error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
		w := httptest.NewRecorder()

		_, ok := DecodeJSON[testRequest](w, req, logger, req.Context(), "req-2")
		require.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), string(dErrors.CodeValidation))
	})
}

func TestWriteError(t *testing.T) {
	t.Run("validation message reaches the client", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown label"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "unknown label")
	})

	t.Run("internal detail stays server-side", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.Wrap(errors.New("pq: connection refused"), dErrors.CodeInternal, "query failed"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
		assert.NotContains(t, w.Body.String(), "query failed")
	})

	t.Run("plain errors collapse to internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("boom"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "boom")
	})
}

func TestDomainCodeToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, DomainCodeToHTTPStatus(dErrors.CodeAuthRejected))
	assert.Equal(t, http.StatusBadRequest, DomainCodeToHTTPStatus(dErrors.CodePrecondition))
	assert.Equal(t, http.StatusBadRequest, DomainCodeToHTTPStatus(dErrors.CodeValidation))
	assert.Equal(t, http.StatusNotFound, DomainCodeToHTTPStatus(dErrors.CodeNotFound))
	assert.Equal(t, http.StatusInternalServerError, DomainCodeToHTTPStatus(dErrors.CodeInternal))
}
