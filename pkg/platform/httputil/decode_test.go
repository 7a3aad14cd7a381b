package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "guardian/pkg/domain-errors"
)

type preparedRequest struct {
	Name       string `json:"name"`
	normalized bool
}

func (r *preparedRequest) Normalize() { r.normalized = true }

func (r *preparedRequest) Validate() error {
	if r.Name == "" {
		return dErrors.NewValidation(dErrors.FieldError{Field: "name", Reason: "required"})
	}
	return nil
}

type plainErrRequest struct {
	Name string `json:"name"`
}

func (r *plainErrRequest) Validate() error { return errors.New("name is required") }

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
}

func TestDecodeJSON(t *testing.T) {
	t.Run("decodes known fields", func(t *testing.T) {
		w := httptest.NewRecorder()
		got, ok := DecodeJSON[preparedRequest](w, post(`{"name":"x"}`), discard, context.Background(), "rid")
		require.True(t, ok)
		assert.Equal(t, "x", got.Name)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		w := httptest.NewRecorder()
		_, ok := DecodeJSON[preparedRequest](w, post(`{"nom":"x"}`), discard, context.Background(), "rid")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDecodeAndPrepare(t *testing.T) {
	t.Run("normalizes before validating", func(t *testing.T) {
		w := httptest.NewRecorder()
		got, ok := DecodeAndPrepare[preparedRequest](w, post(`{"name":"x"}`), discard, context.Background(), "rid")
		require.True(t, ok)
		assert.True(t, got.normalized)
	})

	t.Run("writes field violations", func(t *testing.T) {
		w := httptest.NewRecorder()
		_, ok := DecodeAndPrepare[preparedRequest](w, post(`{}`), discard, context.Background(), "rid")
		require.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var body ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "validation_failed", body.Error)
		require.Len(t, body.Fields, 1)
		assert.Equal(t, "name", body.Fields[0].Field)
	})

	t.Run("wraps plain validation errors", func(t *testing.T) {
		w := httptest.NewRecorder()
		_, ok := DecodeAndPrepare[plainErrRequest](w, post(`{}`), discard, context.Background(), "rid")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := map[dErrors.Code]int{
		dErrors.CodeAlreadyVerified:   http.StatusConflict,
		dErrors.CodeInvalidState:      http.StatusConflict,
		dErrors.CodeBlocked:           http.StatusForbidden,
		dErrors.CodeGeoRestricted:     http.StatusUnavailableForLegalReasons,
		dErrors.CodeNotFound:          http.StatusNotFound,
		dErrors.CodeProcessingFailure: http.StatusBadGateway,
	}
	for code, status := range cases {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(code, "x"))
		assert.Equal(t, status, w.Code, string(code))
	}

	w := httptest.NewRecorder()
	WriteError(w, errors.New("db exploded"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db exploded")
}
