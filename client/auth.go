package client

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/velluxe/storefront-core/types"
)

const (
	credentialOriginSession   = "session"
	credentialOriginFallback  = "fallback"
	credentialOriginAnonymous = "anonymous"
)

// CredentialResolver resolves the credential attached to outgoing
// requests: a live session token when the identity provider has one,
// otherwise the locally persisted fallback token, otherwise anonymous.
type CredentialResolver struct {
	source   types.CredentialSource
	fallback types.TokenStore
	logger   types.Logger
	metrics  types.MetricsManager
}

func NewCredentialResolver(source types.CredentialSource, fallback types.TokenStore, logger types.Logger, metrics types.MetricsManager) *CredentialResolver {
	return &CredentialResolver{
		source:   source,
		fallback: fallback,
		logger:   logger,
		metrics:  metrics,
	}
}

func (r *CredentialResolver) Resolve(ctx context.Context) (string, string) {
	if r.source != nil {
		token, err := r.source.Token(ctx)
		if err != nil {
			r.logger.Debug("Session token resolution failed", zap.Error(err))
		} else if token != "" {
			return token, credentialOriginSession
		}
	}

	if r.fallback != nil {
		if token, ok := r.fallback.Token(); ok && token != "" {
			if r.metrics != nil {
				r.metrics.RecordCredentialFallback()
			}
			return token, credentialOriginFallback
		}
	}

	return "", credentialOriginAnonymous
}

// HandleUnauthorized clears the persisted fallback token after a 401
// so subsequent requests do not replay known-bad credentials.
func (r *CredentialResolver) HandleUnauthorized() {
	if r.fallback == nil {
		return
	}

	if err := r.fallback.ClearToken(); err != nil {
		r.logger.Warn("Failed to clear fallback token", zap.Error(err))
		return
	}

	r.logger.Debug("Fallback token cleared after 401")
}

// DowngradeLoopback rewrites an accidental https URL targeting a
// loopback host to plain http. Local development transports do not
// terminate TLS.
func DowngradeLoopback(url string) string {
	const secureScheme = "https://"
	if !strings.HasPrefix(url, secureScheme) {
		return url
	}

	rest := url[len(secureScheme):]
	host := rest
	if idx := strings.IndexAny(rest, "/:?"); idx >= 0 {
		host = rest[:idx]
	}

	switch strings.ToLower(host) {
	case "localhost", "127.0.0.1":
		return "http://" + rest
	}

	if strings.HasPrefix(rest, "[::1]") {
		return "http://" + rest
	}

	return url
}
