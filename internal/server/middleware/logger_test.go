package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HarshPratapSingh1/ChatVerse/pkg/identity"
)

func TestRequestLoggerRecordsResolvedIdentityAndStatus(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	// The handler stands in for the auth middleware, which resolves the
	// identity after the logger has already wrapped the request.
	handler := RequestMetadataMiddleware()(NewRequestLogger(logger)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, ok := ReqMetadataFrom(r.Context())
			req.True(ok)
			reqMeta.Identity = identity.Identity{UserID: "u-1", Username: "alice"}
			w.WriteHeader(http.StatusNoContent)
		}),
	))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/people", nil))

	req.Equal(http.StatusNoContent, rec.Code)
	out := buf.String()
	req.Contains(out, "userID=u-1")
	req.Contains(out, "status=204")
	req.Contains(out, "uri=/people")
}

func TestRequestLoggerToleratesMissingMetadata(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := NewRequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	req.Equal(http.StatusOK, rec.Code)
	req.Contains(buf.String(), "status=200")
}
