package cmd

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pmteam/internal/health"
	"github.com/felixgeelhaar/pmteam/internal/server"
	"github.com/felixgeelhaar/pmteam/internal/version"
)

func newServeCmd() *cobra.Command {
	var (
		address string
		port    int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the conversation API over HTTP",
		Long: `Starts the HTTP API with health probes, Prometheus metrics and the
OpenAPI contract at /openapi.yaml. SIGINT or SIGTERM drains in-flight
turns before exiting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd, cc, func(a *app) error {
				if cmd.Flags().Changed("address") {
					a.cfg.Server.Address = address
				}
				if cmd.Flags().Changed("port") {
					a.cfg.Server.Port = port
				}
				return serve(cmd.Context(), a)
			})
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "listen address, overrides server.address")
	cmd.Flags().IntVar(&port, "port", 0, "listen port, overrides server.port")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	probes := health.NewProbeManager(version.Version)
	probes.AddChecker(health.NewStoreChecker(a.store))
	probes.AddChecker(health.NewCompletionChecker(a.client))

	srv := server.New(server.Deps{
		Service:  a.service,
		Probes:   probes,
		Logger:   a.logger.With("component", "server"),
		Metrics:  a.metrics,
		Gatherer: a.registry,
	}, server.FromConfig(a.cfg.Server))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		a.logger.Info("shutting down, draining in-flight requests")
		if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
