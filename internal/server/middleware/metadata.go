package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/HarshPratapSingh1/ChatVerse/pkg/identity"
)

// Middleware is the standard net/http middleware shape; chi's Use accepts
// it directly.
type Middleware func(http.Handler) http.Handler

type contextKey string

const reqMetaKey = contextKey("r-metadata")

// CredentialCookie is the cookie carrying the signed credential.
const CredentialCookie = "token"

// RequestMetadata accumulates what later middlewares and handlers learn
// about a request. Identity stays zero (anonymous) until verification
// succeeds.
type RequestMetadata struct {
	IP       string
	Identity identity.Identity
}

func ReqMetadataFrom(ctx context.Context) (*RequestMetadata, bool) {
	reqMeta, ok := ctx.Value(reqMetaKey).(*RequestMetadata)
	return reqMeta, ok
}

// RequestMetadataMiddleware creates and injects the RequestMetadata struct
// into the request.
// **This should be the first middleware in the chain.**
func RequestMetadataMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta := &RequestMetadata{}

			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr // Fallback
			}
			reqMeta.IP = ip
			ctx := context.WithValue(r.Context(), reqMetaKey, reqMeta)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
