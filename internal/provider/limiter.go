package provider

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/felixgeelhaar/pmteam/internal/errors"
	"github.com/felixgeelhaar/pmteam/internal/telemetry"
)

// RateLimited throttles a Client with a token bucket.
type RateLimited struct {
	Client
	limiter *rate.Limiter
}

// NewRateLimited wraps c to allow rps requests per second with the given
// burst. A non-positive rps disables limiting.
func NewRateLimited(c Client, rps float64, burst int) *RateLimited {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{Client: c, limiter: rate.NewLimiter(limit, burst)}
}

// Complete waits for a token, then delegates. A wait that would outlast the
// context deadline fails immediately.
func (r *RateLimited) Complete(ctx context.Context, req *Request) (*Response, error) {
	ctx, span := telemetry.StartProviderSpan(ctx, r.Name(), req.Model)
	defer span.End()

	if err := r.limiter.Wait(ctx); err != nil {
		err = errors.Wrap(errors.ErrCodeProviderRateLimit, "local rate limit for "+r.Name(), err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	resp, err := r.Client.Complete(ctx, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.RecordSuccess(span,
		attribute.Int("tokens.input", resp.InputTokens),
		attribute.Int("tokens.output", resp.OutputTokens),
	)
	return resp, nil
}
