package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-search/core"
	"golang.org/x/time/rate"
)

const (
	DefaultRate  = rate.Limit(20)
	DefaultBurst = 40
)

type ThrottledError struct {
	Scope      string
	Collection string
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf(
		"ratelimit: scope %q collection %q throttled for %s",
		strings.TrimSpace(e.Scope),
		strings.TrimSpace(e.Collection),
		e.RetryAfter,
	)
}

func (e ThrottledError) ToSearchError() *goerrors.Error {
	metadata := map[string]any{
		"scope":      strings.TrimSpace(e.Scope),
		"collection": strings.TrimSpace(e.Collection),
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.SearchErrorRateLimited).
		WithMetadata(metadata)
}

// IsThrottled reports whether err is a rate limit envelope produced by Index.
func IsThrottled(err error) bool {
	var rich *goerrors.Error
	return goerrors.As(err, &rich) && rich.TextCode == core.SearchErrorRateLimited
}

// Index throttles page reads per scope with a token bucket. An empty bucket
// fails the read immediately; nothing waits or retries.
type Index struct {
	base  core.OrderedIndex
	limit rate.Limit
	burst int
	Now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

type Option func(*Index)

// WithRate sets the sustained reads per second allowed for each scope.
func WithRate(limit rate.Limit) Option {
	return func(i *Index) {
		if limit > 0 {
			i.limit = limit
		}
	}
}

// WithBurst sets how many reads a scope may issue back to back.
func WithBurst(burst int) Option {
	return func(i *Index) {
		if burst > 0 {
			i.burst = burst
		}
	}
}

func NewIndex(base core.OrderedIndex, opts ...Option) (*Index, error) {
	if base == nil {
		return nil, fmt.Errorf("ratelimit: base index is required")
	}
	index := &Index{
		base:     base,
		limit:    DefaultRate,
		burst:    DefaultBurst,
		Now:      time.Now,
		limiters: map[string]*rate.Limiter{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(index)
		}
	}
	return index, nil
}

func (i *Index) Query(ctx context.Context, query core.IndexQuery) (core.IndexPage, error) {
	if i == nil || i.base == nil {
		return core.IndexPage{}, fmt.Errorf("ratelimit: index is not configured")
	}
	if err := ctx.Err(); err != nil {
		return core.IndexPage{}, err
	}

	now := i.now()
	reservation := i.limiter(query.Scope).ReserveN(now, 1)
	if !reservation.OK() {
		return core.IndexPage{}, ThrottledError{Scope: query.Scope, Collection: query.Collection}.ToSearchError()
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return core.IndexPage{}, ThrottledError{
			Scope:      query.Scope,
			Collection: query.Collection,
			RetryAfter: delay,
		}.ToSearchError()
	}
	return i.base.Query(ctx, query)
}

// Forget drops the bucket of a scope, e.g. after the organisation is removed.
func (i *Index) Forget(scope string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.limiters, strings.TrimSpace(scope))
}

func (i *Index) limiter(scope string) *rate.Limiter {
	scope = strings.TrimSpace(scope)
	i.mu.Lock()
	defer i.mu.Unlock()
	limiter, ok := i.limiters[scope]
	if !ok {
		limiter = rate.NewLimiter(i.limit, i.burst)
		i.limiters[scope] = limiter
	}
	return limiter
}

func (i *Index) now() time.Time {
	if i != nil && i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

var _ core.OrderedIndex = (*Index)(nil)
