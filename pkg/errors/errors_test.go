package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"app error", New(ErrInvalidInput, http.StatusBadRequest, "q is required"), http.StatusBadRequest, "invalid_input"},
		{"wrapped validation", fmt.Errorf("append: %w", ErrValidation), http.StatusBadRequest, "invalid_input"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"deadline", fmt.Errorf("scan: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "timeout"},
		{"unavailable", ErrUnavailable, http.StatusServiceUnavailable, "unavailable"},
		{"corrupt", Corrupt("row log", 12, "truncated frame"), http.StatusInternalServerError, "corrupt_artifact"},
		{"io", IO("open", "data.bin", os.ErrNotExist), http.StatusInternalServerError, "storage_error"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
			assert.Equal(t, tt.code, Code(tt.err))
		})
	}
}

func TestFormatError(t *testing.T) {
	err := Corrupt("inverted index", 8, "token length %d out of range", 0)
	assert.ErrorIs(t, err, ErrCorruptFormat)
	assert.Contains(t, err.Error(), "inverted index")
	assert.Contains(t, err.Error(), "token length 0 out of range")
	assert.EqualValues(t, 8, err.Offset)
}

func TestIOError(t *testing.T) {
	assert.NoError(t, IO("open", "x", nil))

	err := IO("open", "indexes/trie.bin", os.ErrNotExist)
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "indexes/trie.bin")
}

func TestWriteHTTPHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHTTP(rec, IO("read", "/srv/indexes/data.bin", os.ErrPermission))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrorDetail{Code: "storage_error", Message: "internal error"}, body.Error)

	rec = httptest.NewRecorder()
	WriteHTTP(rec, fmt.Errorf("scanning rows for %q: %w", "data",
		IO("reading row log", "/srv/data/rows.bin", context.DeadlineExceeded)))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"timeout","message":"request timed out"}}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "rows.bin")

	rec = httptest.NewRecorder()
	WriteHTTP(rec, fmt.Errorf("redis at 10.0.0.7:6379: %w", ErrUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"unavailable","message":"service unavailable"}}`, rec.Body.String())
}

func TestWriteHTTPClientError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHTTP(rec, New(ErrInvalidInput, http.StatusBadRequest, "limit must be between 1 and 100"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"invalid_input","message":"limit must be between 1 and 100"}}`, rec.Body.String())
}
