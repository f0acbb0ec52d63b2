package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/OrlandoBitencourt/pennant"
	"github.com/OrlandoBitencourt/pennant/internal/server"
	"github.com/OrlandoBitencourt/pennant/internal/source"
	"github.com/OrlandoBitencourt/pennant/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		namespace string
		addr      string
	)

	cmd := &cobra.Command{
		Use:   "serve <file>",
		Short: "Load a payload, watch it for changes and expose the admin API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := readPayload(args[0])
			if err != nil {
				return err
			}
			ns, err := p.namespace(namespace)
			if err != nil {
				return describe(err)
			}
			if addr == "" {
				addr = a.cfg.AdminAddr
			}

			provider, err := telemetry.NewOTel()
			if err != nil {
				return err
			}
			engine, err := a.newEngine(ns, pennant.WithTelemetry(provider))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			file := &source.File{
				Path:   p.path,
				Logger: a.logger,
				Apply: func(data []byte) error {
					_, err := load(ctx, engine, ns, data, p.yaml, false)
					return err
				},
			}
			if err := file.Load(); err != nil {
				_ = engine.Close(context.Background())
				return describe(err)
			}

			admin := server.NewAdminServer(engine, addr, a.logger)
			errc := make(chan error, 2)
			go func() {
				if err := admin.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
			}()
			go func() {
				if err := file.Watch(ctx); err != nil {
					errc <- err
				}
			}()

			select {
			case <-ctx.Done():
				a.logger.Info("shutting down")
			case err = <-errc:
				a.logger.Error("serve failed", "error", err)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if serr := admin.Shutdown(shutdownCtx); serr != nil {
				a.logger.Error("admin shutdown error", "error", serr)
			}
			if cerr := engine.Close(shutdownCtx); cerr != nil {
				a.logger.Error("engine shutdown error", "error", cerr)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "", "Namespace to serve (default: the payload's namespace)")
	cmd.Flags().StringVar(&addr, "addr", "", "Admin listen address (default from PENNANT_ADMIN_ADDR)")
	return cmd
}
