package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/talos-registry/talos-server/internal/domain"
	"github.com/talos-registry/talos-server/internal/http/response"
	"github.com/talos-registry/talos-server/internal/observability"
	"github.com/talos-registry/talos-server/internal/repository"
	"github.com/talos-registry/talos-server/internal/security"
)

const APIKeyHeader = "x-api-key"

// APIKeyGate is a coarse allow/deny check for service-to-service and admin
// routes. It deliberately injects no identity into the request context: the
// key path and the bearer path are separate trust boundaries.
type APIKeyGate struct {
	keys           repository.ApiKeyRepository
	exemptPrefixes []string
	logger         *slog.Logger
}

func NewAPIKeyGate(keys repository.ApiKeyRepository, exemptPrefixes []string, logger *slog.Logger) *APIKeyGate {
	return &APIKeyGate{keys: keys, exemptPrefixes: exemptPrefixes, logger: logger}
}

func (g *APIKeyGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.isExempt(r.URL.Path) {
			observability.RecordAPIKeyGateDecision(r.Context(), "exempt")
			next.ServeHTTP(w, r)
			return
		}

		presented := r.Header.Get(APIKeyHeader)
		if presented == "" {
			observability.RecordAPIKeyGateDecision(r.Context(), "missing")
			response.Error(w, r, http.StatusUnauthorized, "API_KEY_MISSING", "missing api key", nil)
			return
		}

		key, err := g.keys.FindByKey(r.Context(), presented)
		if err != nil {
			if err == repository.ErrApiKeyNotFound {
				observability.RecordAPIKeyGateDecision(r.Context(), "invalid")
				response.Error(w, r, http.StatusForbidden, "API_KEY_INVALID", "invalid api key", nil)
				return
			}
			// Fail closed: a lookup fault is a deny, never an allow.
			observability.RecordAPIKeyGateDecision(r.Context(), "error")
			g.logger.ErrorContext(r.Context(), "api key lookup failed",
				"path", r.URL.Path, "error", err)
			response.Error(w, r, http.StatusForbidden, "API_KEY_INVALID", "invalid api key", nil)
			return
		}
		if !key.Authorizes(time.Now()) {
			observability.RecordAPIKeyGateDecision(r.Context(), "invalid")
			response.Error(w, r, http.StatusForbidden, "API_KEY_INVALID", "invalid api key", nil)
			return
		}

		observability.RecordAPIKeyGateDecision(r.Context(), "allowed")
		g.appendAudit(r, key)
		next.ServeHTTP(w, r)
	})
}

func (g *APIKeyGate) isExempt(path string) bool {
	for _, prefix := range g.exemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// appendAudit records the access best-effort; an audit write failure never
// blocks the request.
func (g *APIKeyGate) appendAudit(r *http.Request, key *domain.ApiKey) {
	audit := &domain.ApiKeyAudit{
		ApiKeyID:   key.ID,
		Endpoint:   r.URL.Path,
		IP:         clientIP(r),
		AccessedAt: time.Now(),
	}
	if err := g.keys.AppendAudit(r.Context(), audit); err != nil {
		g.logger.WarnContext(r.Context(), "api key audit write failed",
			"key_prefix", security.TokenPrefix(key.Key), "error", err)
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
