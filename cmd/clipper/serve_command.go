package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jadenj13/clipper/internals/logging"
	"github.com/jadenj13/clipper/internals/webhook"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept requests over HTTP and expose run history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log, err := ctx.logger()
			if err != nil {
				return err
			}
			p, err := ctx.buildWorker(nil)
			if err != nil {
				return err
			}
			defer p.Close()

			if addr == "" {
				addr = cfg.Server.Addr
			}
			if cfg.Server.Secret == "" {
				log.Warn("server secret not set; requests are not authenticated")
			}
			server := webhook.NewServer(cmd.Context(), p.worker, p.store, cfg.Server.Secret, ctx.flags.agent,
				logging.NewComponentLogger(log, "webhook"))
			srv := &http.Server{
				Addr:        addr,
				Handler:     server.Handler(),
				ReadTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("request server listening", "addr", addr, "agent", ctx.flags.agent)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err, ok := <-errCh:
				if ok {
					return err
				}
				return nil
			case <-cmd.Context().Done():
			}
			log.Info("shutting down")

			shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutCtx); err != nil {
				log.Warn("http shutdown", "err", err)
			}
			// The history store closes on return; the in-flight run must
			// record its outcome first.
			return server.Wait(shutCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to server.addr)")
	return cmd
}
