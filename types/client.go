package types

import (
	"context"
	"time"
)

// RequestManager is the storefront request layer: response caching for
// idempotent reads, in-flight coalescing, credential attachment and
// bounded retries around a single HTTP transport.
type RequestManager interface {
	Get(ctx context.Context, path string, opts *CallOptions) ([]byte, int, error)
	Post(ctx context.Context, path string, data interface{}, opts *CallOptions) ([]byte, int, error)
	Put(ctx context.Context, path string, data interface{}, opts *CallOptions) ([]byte, int, error)
	Delete(ctx context.Context, path string, opts *CallOptions) ([]byte, int, error)
}

type CallOptions struct {
	Timeout        time.Duration
	Retry          int
	Headers        map[string]string
	Params         map[string]string
	NoCache        bool
	IdempotencyKey string
}

// CredentialSource resolves the primary session token. Resolution may
// require a network refresh, hence the context.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenStore holds the locally persisted fallback credential used when
// no live session exists.
type TokenStore interface {
	Token() (string, bool)
	SetToken(token string) error
	ClearToken() error
}
