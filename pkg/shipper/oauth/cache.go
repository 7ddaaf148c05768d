// Package oauth provides a client-credentials access token cache for carrier
// APIs. Concurrent callers that find the cache empty or stale share a single
// token refresh.
package oauth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tournevent/ratebridge/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshBuffer is how long before expiry a token stops being handed out.
const DefaultRefreshBuffer = 300 * time.Second

const (
	defaultTimeout = 30 * time.Second
	flightKey      = "token"
)

// Token is an OAuth access token. Values are copies; the cache never shares
// its own instance.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	Scope       string
}

// ValidAt reports whether the token may be used at now, keeping buffer in
// reserve before expiry.
func (t Token) ValidAt(now time.Time, buffer time.Duration) bool {
	return t.AccessToken != "" && t.ExpiresAt.After(now.Add(buffer))
}

// Fetcher obtains a new token from the authorization server.
type Fetcher interface {
	FetchToken(ctx context.Context) (Token, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) (Token, error)

// FetchToken calls f(ctx).
func (f FetcherFunc) FetchToken(ctx context.Context) (Token, error) {
	return f(ctx)
}

// Config holds token cache configuration.
type Config struct {
	Carrier       string
	RefreshBuffer time.Duration // zero or negative means 300s
	Timeout       time.Duration // bound on a single refresh, default 30s

	// OnRefresh, when set, is called after every network refresh.
	OnRefresh func(d time.Duration, err error)
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Cache holds at most one access token and coordinates its refresh.
type Cache struct {
	fetcher   Fetcher
	carrier   string
	buffer    time.Duration
	timeout   time.Duration
	onRefresh func(time.Duration, error)
	now       func() time.Time
	logger    *otelzap.Logger

	mu    sync.Mutex
	token *Token
	gen   uint64 // bumped by ClearCache; stale refreshes do not publish

	group singleflight.Group
}

// NewCache creates a token cache that refreshes through fetcher.
func NewCache(cfg Config, fetcher Fetcher, logger *otelzap.Logger) *Cache {
	buffer := cfg.RefreshBuffer
	if buffer <= 0 {
		buffer = DefaultRefreshBuffer
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}

	return &Cache{
		fetcher:   fetcher,
		carrier:   cfg.Carrier,
		buffer:    buffer,
		timeout:   timeout,
		onRefresh: cfg.OnRefresh,
		now:       now,
		logger:    logger,
	}
}

// GetToken returns the cached token while it is valid, otherwise refreshes.
// Callers arriving while a refresh is in flight wait for that refresh and
// receive its result, success or failure.
func (c *Cache) GetToken(ctx context.Context) (Token, error) {
	c.mu.Lock()
	if c.token != nil && c.token.ValidAt(c.now(), c.buffer) {
		tok := *c.token
		c.mu.Unlock()
		return tok, nil
	}
	c.mu.Unlock()

	return c.refresh(ctx)
}

// ForceRefresh discards the cached token and returns a freshly fetched one,
// regardless of the old token's remaining lifetime. A refresh already in
// flight is joined instead of starting a second one.
func (c *Cache) ForceRefresh(ctx context.Context) (Token, error) {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()

	return c.refresh(ctx)
}

// ClearCache drops the cached token and forgets any in-flight refresh. The
// outbound call of that refresh is not cancelled, but its token will not be
// stored.
func (c *Cache) ClearCache() {
	c.mu.Lock()
	c.token = nil
	c.gen++
	c.mu.Unlock()

	c.group.Forget(flightKey)
}

func (c *Cache) refresh(ctx context.Context) (Token, error) {
	ch := c.group.DoChan(flightKey, func() (any, error) {
		return c.fetch(ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Token{}, res.Err
		}
		return res.Val.(Token), nil
	case <-ctx.Done():
		return Token{}, shipper.Classify(c.carrier, nil, ctx.Err())
	}
}

// fetch runs as the single in-flight refresh. It is detached from the
// leader's cancellation and bounded by the cache timeout, so followers are
// always released.
func (c *Cache) fetch(ctx context.Context) (Token, error) {
	// A caller that saw a stale cache may only reach the flight after the
	// previous refresh for that staleness has finished and stored its token.
	c.mu.Lock()
	if c.token != nil && c.token.ValidAt(c.now(), c.buffer) {
		tok := *c.token
		c.mu.Unlock()
		return tok, nil
	}
	startGen := c.gen
	c.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	start := c.now()
	tok, err := c.fetcher.FetchToken(fetchCtx)
	if err == nil && !tok.ValidAt(c.now(), c.buffer) {
		err = shipper.NewAuthenticationError(c.carrier, "token lifetime does not exceed refresh buffer").
			WithContext("expires_at", tok.ExpiresAt)
	}
	if err != nil {
		err = asAuthError(c.carrier, err)
	}
	if c.onRefresh != nil {
		c.onRefresh(c.now().Sub(start), err)
	}
	if err != nil {
		c.logger.Ctx(ctx).Warn("Token refresh failed",
			zap.String("carrier", c.carrier),
			zap.Error(err),
		)
		return Token{}, err
	}

	c.mu.Lock()
	if c.gen == startGen {
		stored := tok
		c.token = &stored
	}
	c.mu.Unlock()

	c.logger.Ctx(ctx).Debug("Token refreshed",
		zap.String("carrier", c.carrier),
		zap.Time("expires_at", tok.ExpiresAt),
	)
	return tok, nil
}

// asAuthError guarantees refresh failures surface as authentication errors,
// keeping any other classification in the cause chain.
func asAuthError(carrier string, err error) error {
	var shipperErr *shipper.ShipperError
	if errors.As(err, &shipperErr) && shipperErr.Kind == shipper.KindAuthentication {
		return err
	}
	return shipper.NewAuthenticationError(carrier, "token refresh failed").WithCause(err)
}
