package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

type contextKey struct{}

// Middleware creates HTTP middleware that parses the optional Shop-Agent
// header. A present-but-malformed header is rejected with 400, as is an
// agent announcing a version older than minVersion. Requests without the
// header pass through anonymously; browsers shopping the demo storefront
// never send it.
//
// The parsed Identity is stored in the request context for handlers and
// the rate limiter.
func Middleware(minVersion string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(Header)
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := ParseHeader(header)
			if err != nil {
				logger.Warn("invalid Shop-Agent header",
					slog.String("header", header),
					slog.String("error", err.Error()))
				writeAgentError(w, http.StatusBadRequest, "invalid_agent_header", err.Error())
				return
			}

			if !SupportsVersion(identity.Version, minVersion) {
				writeAgentError(w, http.StatusBadRequest, "unsupported_agent_version",
					"agent version "+identity.Version+" is older than the minimum supported "+minVersion)
				return
			}

			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), contextKey{}, identity)))
		})
	}
}

// FromContext retrieves the agent identity, or nil for anonymous callers.
func FromContext(ctx context.Context) *Identity {
	v := ctx.Value(contextKey{})
	if v == nil {
		return nil
	}
	return v.(*Identity)
}

// LimiterKey returns a stable rate-limit bucket key for a request:
// the agent id when one was announced, the remote address otherwise.
func LimiterKey(r *http.Request) string {
	if identity := FromContext(r.Context()); identity != nil {
		return "agent:" + identity.ID
	}
	return "addr:" + r.RemoteAddr
}

func writeAgentError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}{}
	resp.Error.Code = code
	resp.Error.Message = message

	json.NewEncoder(w).Encode(resp)
}
