package intelligence

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/pmteam/internal/log"
	"github.com/felixgeelhaar/pmteam/internal/metrics"
	"github.com/felixgeelhaar/pmteam/internal/telemetry"
)

// Attempt records one tier attempt for provenance and debugging.
type Attempt struct {
	Tier    string        `json:"tier"`
	Status  string        `json:"status"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency"`
}

// Reply is the chain's answer.
type Reply struct {
	Text string `json:"text"`
	// Tier names the tier that produced Text
	Tier string `json:"tier"`
	// Degraded is set when a higher tier was called and failed. Skipped
	// tiers do not degrade a reply.
	Degraded bool      `json:"degraded"`
	Attempts []Attempt `json:"attempts"`
}

// Chain tries its tiers in order and returns the first reply.
type Chain struct {
	tiers   []Tier
	logger  *log.Logger
	metrics *metrics.Metrics
}

// Option configures a Chain.
type Option func(*Chain)

// WithLogger sets the chain logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Chain) { c.logger = l }
}

// WithMetrics records tier attempts on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Chain) { c.metrics = m }
}

// NewChain builds a chain over tiers. A heuristic tier is appended when the
// last tier is not one, so Generate always has a reply.
func NewChain(tiers []Tier, opts ...Option) *Chain {
	c := &Chain{tiers: append([]Tier(nil), tiers...)}
	if n := len(c.tiers); n == 0 || c.tiers[n-1].Name() != TierHeuristic {
		c.tiers = append(c.tiers, HeuristicTier{})
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = log.OrDefault(c.logger)
	return c
}

// Tiers returns the tier names in order.
func (c *Chain) Tiers() []string {
	names := make([]string, len(c.tiers))
	for i, t := range c.tiers {
		names[i] = t.Name()
	}
	return names
}

// Generate runs the tiers sequentially until one replies.
func (c *Chain) Generate(ctx context.Context, p Prompt) Reply {
	var (
		reply      Reply
		higherFail bool
	)

	for _, tier := range c.tiers {
		out, latency := c.attempt(ctx, tier, p)

		a := Attempt{Tier: tier.Name(), Status: out.Status.String(), Latency: latency}
		if out.Err != nil {
			a.Error = out.Err.Error()
		}
		reply.Attempts = append(reply.Attempts, a)

		switch out.Status {
		case Replied:
			reply.Text = out.Reply
			reply.Tier = tier.Name()
			reply.Degraded = higherFail
			if higherFail {
				c.metrics.RecordDegraded(reply.Tier)
			}
			return reply
		case Failed:
			higherFail = true
			c.logger.WithContext(ctx).WithError(out.Err).Warn("tier failed, falling back",
				"tier", tier.Name(), "latency_ms", latency.Milliseconds())
		case Skipped:
			c.logger.Debug("tier skipped", "tier", tier.Name(), "reason", a.Error)
		case Cancelled:
			c.logger.Debug("tier cancelled by caller", "tier", tier.Name())
		}
	}

	// Unreachable with a trailing heuristic tier unless a caller-supplied
	// tier claims its name.
	out := HeuristicTier{}.Attempt(ctx, p)
	reply.Text, reply.Tier, reply.Degraded = out.Reply, TierHeuristic, higherFail
	return reply
}

// attempt runs one tier. A bounded tier runs under its own deadline and is
// reported as failed when it panics or overruns it; an end of the caller's
// context is reported as cancelled instead. Unbounded tiers run inline.
func (c *Chain) attempt(ctx context.Context, tier Tier, p Prompt) (Outcome, time.Duration) {
	parent := ctx
	ctx, span := telemetry.StartTierSpan(ctx, tier.Name())
	defer span.End()

	start := time.Now()
	var out Outcome
	if b, ok := tier.(Bounded); ok && b.Timeout() > 0 {
		out = bounded(parent, ctx, tier, b.Timeout(), p)
	} else {
		out = invoke(ctx, tier, p)
	}
	latency := time.Since(start)

	span.SetAttributes(attribute.String("status", out.Status.String()))
	telemetry.RecordDuration(span, "attempt", latency)
	switch out.Status {
	case Failed, Cancelled:
		telemetry.RecordError(span, out.Err)
	default:
		telemetry.RecordSuccess(span)
	}
	c.metrics.RecordTier(tier.Name(), out.Status.String(), latency)

	return out, latency
}

func bounded(parent, ctx context.Context, tier Tier, timeout time.Duration, p Prompt) Outcome {
	if err := parent.Err(); err != nil {
		return cancelled(fmt.Errorf("tier %s: %w", tier.Name(), err))
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan Outcome, 1)
	go func() { done <- invoke(ctx, tier, p) }()

	var out Outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = failed(fmt.Errorf("tier %s: %w", tier.Name(), ctx.Err()))
	}
	if out.Status == Failed && parent.Err() != nil {
		return cancelled(fmt.Errorf("tier %s: %w", tier.Name(), parent.Err()))
	}
	return out
}

func invoke(ctx context.Context, tier Tier, p Prompt) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = failed(fmt.Errorf("tier %s panicked: %v", tier.Name(), r))
		}
	}()
	return tier.Attempt(ctx, p)
}
