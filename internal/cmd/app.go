package cmd

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pmteam/internal/assistant"
	"github.com/felixgeelhaar/pmteam/internal/audit"
	"github.com/felixgeelhaar/pmteam/internal/config"
	"github.com/felixgeelhaar/pmteam/internal/intelligence"
	"github.com/felixgeelhaar/pmteam/internal/log"
	"github.com/felixgeelhaar/pmteam/internal/metrics"
	"github.com/felixgeelhaar/pmteam/internal/provider"
	"github.com/felixgeelhaar/pmteam/internal/store"
	"github.com/felixgeelhaar/pmteam/internal/telemetry"
	"github.com/felixgeelhaar/pmteam/internal/version"
)

// app is the wired object graph shared by the commands that touch runs.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	store    store.Store
	client   provider.Client
	service  *assistant.Service
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	shutdownTracing func(context.Context) error
}

func newApp(ctx context.Context, cc *CommandContext) (*app, error) {
	cfg, err := cc.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := cc.Logger(cfg)
	log.SetDefaultLogger(logger)

	shutdownTracing, err := telemetry.InitProvider(ctx, telemetry.FromConfig(cfg.Telemetry, version.Version))
	if err != nil {
		return nil, err
	}

	registry, m := metrics.NewRegistry()
	s, err := store.Open(cfg, store.Options{Logger: logger.With("component", "store"), Metrics: m})
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}

	var client provider.Client
	if cfg.HasCredential() {
		if client, err = provider.New(cfg.LLM); err != nil {
			_ = s.Close()
			_ = shutdownTracing(ctx)
			return nil, err
		}
	} else {
		logger.Debug("no completion credential configured, replies come from templates")
	}

	chain := intelligence.FromConfig(cfg.LLM, client,
		intelligence.WithLogger(logger.With("component", "intelligence")),
		intelligence.WithMetrics(m),
	)
	svc := assistant.New(s, chain, assistant.Options{
		Conversation: cfg.Conversation,
		Audit:        audit.NewLogger(s.Root()),
		Logger:       logger,
		Metrics:      m,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    s,
		client:   client,
		service:  svc,
		registry: registry,
		metrics:  m,

		shutdownTracing: shutdownTracing,
	}, nil
}

// Close flushes pending spans and releases the store.
func (a *app) Close(ctx context.Context) error {
	if err := a.shutdownTracing(context.WithoutCancel(ctx)); err != nil {
		a.logger.WithError(err).Warn("tracing shutdown failed")
	}
	return a.store.Close()
}

// withApp runs fn inside a command span against a freshly wired app and
// closes the app afterwards. fn sees the span through cmd.Context().
func withApp(cmd *cobra.Command, cc *CommandContext, fn func(*app) error) (err error) {
	a, err := newApp(cmd.Context(), cc)
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	ctx, span := telemetry.StartCommandSpan(cmd.Context(), cmd.CommandPath())
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.RecordSuccess(span)
		}
		span.End()
	}()
	cmd.SetContext(ctx)

	return fn(a)
}
