package translation

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited wraps p so that every Translate call first takes a token from limiter.
func RateLimited(p Provider, limiter *rate.Limiter) Provider {
	if p == nil || limiter == nil {
		return p
	}
	return &rateLimitedProvider{Provider: p, limiter: limiter}
}

type rateLimitedProvider struct {
	Provider
	limiter *rate.Limiter
}

// Translate follows the engine's failure policy when no token can be taken: fail-soft
// engines hand back the original text, fail-hard engines return a BackendError.
func (p *rateLimitedProvider) Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	started := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		if PolicyFor(p.Engine()) == FailSoft {
			return fallbackResponse(p, req, started), nil
		}
		return nil, &BackendError{Engine: p.Engine(), Err: err}
	}
	return p.Provider.Translate(ctx, req)
}

// Unwrap returns the decorated provider.
func (p *rateLimitedProvider) Unwrap() Provider {
	return p.Provider
}
