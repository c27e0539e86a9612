package auth

import (
	"context"
	"crypto/tls"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/couchbase/gocbcore/v10"
)

// FetchFunc looks up the credentials for an endpoint ("host:port").
type FetchFunc func(ctx context.Context, endpoint string) (Credentials, error)

// RotatingProvider fetches credentials per endpoint and caches them.
//
// Concurrent lookups for the same endpoint share one fetch.
type RotatingProvider struct {
	fetch        FetchFunc
	lifespan     time.Duration
	fetchTimeout time.Duration

	mu      sync.RWMutex
	cache   map[string]*cachedCredentials
	pending map[string]chan struct{}
}

type cachedCredentials struct {
	creds     Credentials
	expiresAt time.Time
}

// RotatingOption configures a RotatingProvider.
type RotatingOption func(*RotatingProvider)

// WithLifespan sets how long fetched credentials are reused (default 5 minutes).
func WithLifespan(d time.Duration) RotatingOption {
	return func(p *RotatingProvider) {
		p.lifespan = d
	}
}

// WithFetchTimeout bounds each fetch (default 10 seconds).
func WithFetchTimeout(d time.Duration) RotatingOption {
	return func(p *RotatingProvider) {
		p.fetchTimeout = d
	}
}

// NewRotatingProvider creates a rotating provider backed by fetch.
func NewRotatingProvider(fetch FetchFunc, opts ...RotatingOption) *RotatingProvider {
	p := &RotatingProvider{
		fetch:        fetch,
		lifespan:     5 * time.Minute,
		fetchTimeout: 10 * time.Second,
		cache:        make(map[string]*cachedCredentials),
		pending:      make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// hostPort strips the scheme gocbcore puts on HTTP endpoints.
func hostPort(endpoint string) string {
	return strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
}

// Lookup returns cached credentials for endpoint, fetching them if needed.
func (p *RotatingProvider) Lookup(ctx context.Context, endpoint string) (Credentials, error) {
	endpoint = hostPort(endpoint)

	p.mu.RLock()
	if cached, ok := p.cache[endpoint]; ok && time.Now().Before(cached.expiresAt) {
		p.mu.RUnlock()
		return cached.creds, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	if pending, ok := p.pending[endpoint]; ok {
		p.mu.Unlock()
		select {
		case <-pending:
		case <-ctx.Done():
			return Credentials{}, ctx.Err()
		}
		return p.Lookup(ctx, endpoint)
	}
	pending := make(chan struct{})
	p.pending[endpoint] = pending
	p.mu.Unlock()

	creds, err := p.fetch(ctx, endpoint)

	p.mu.Lock()
	delete(p.pending, endpoint)
	close(pending)
	if err == nil {
		p.cache[endpoint] = &cachedCredentials{creds: creds, expiresAt: time.Now().Add(p.lifespan)}
	}
	p.mu.Unlock()

	if err != nil {
		return Credentials{}, errors.Wrapf(err, "fetch credentials for %s", endpoint)
	}
	return creds, nil
}

// Invalidate drops the cached credentials for endpoint, or all when endpoint is "".
func (p *RotatingProvider) Invalidate(endpoint string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if endpoint == "" {
		p.cache = make(map[string]*cachedCredentials)
		return
	}
	delete(p.cache, hostPort(endpoint))
}

// Credentials implements gocbcore.AuthProvider.
func (p *RotatingProvider) Credentials(req gocbcore.AuthCredsRequest) ([]gocbcore.UserPassPair, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.fetchTimeout)
	defer cancel()

	creds, err := p.Lookup(ctx, req.Endpoint)
	if err != nil {
		return []gocbcore.UserPassPair{{}}, err
	}
	return creds.pairs(), nil
}

func (p *RotatingProvider) SupportsTLS() bool    { return true }
func (p *RotatingProvider) SupportsNonTLS() bool { return true }

func (p *RotatingProvider) Certificate(gocbcore.AuthCertRequest) (*tls.Certificate, error) {
	return nil, nil
}
