package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/HarshPratapSingh1/ChatVerse/pkg/identity"
)

// credentialFromRequest extracts the signed credential, or "" when the
// cookie is absent.
func credentialFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(CredentialCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// NewAuthMiddleware rejects requests without a verifiable credential.
// Used on the request/response API routes.
func NewAuthMiddleware(logger *slog.Logger, verifier *identity.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				// something went wrong with previous middlewares
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			id, err := verifier.Verify(credentialFromRequest(r))
			if err != nil {
				logger.Warn("Rejected unauthenticated request",
					slog.String("ip", reqMeta.IP),
					slog.Any("error", err),
				)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			reqMeta.Identity = id
			next.ServeHTTP(w, r)
		})
	}
}

// NewOptionalAuthMiddleware verifies a credential when one is present but
// never rejects. Used on the websocket endpoint: an unverifiable socket
// is accepted and stays anonymous.
func NewOptionalAuthMiddleware(logger *slog.Logger, verifier *identity.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			id, err := verifier.Verify(credentialFromRequest(r))
			switch {
			case err == nil:
				reqMeta.Identity = id
			case errors.Is(err, identity.ErrNoCredential):
				logger.Debug("Connection without credential, staying anonymous", slog.String("ip", reqMeta.IP))
			default:
				logger.Debug("Credential verification failed, staying anonymous",
					slog.String("ip", reqMeta.IP),
					slog.Any("error", err),
				)
			}
			next.ServeHTTP(w, r)
		})
	}
}
