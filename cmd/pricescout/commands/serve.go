package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpDelivery "github.com/pricescout/backend/internal/delivery/http"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the HTTP API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		log.WithFields(log.Fields{
			"environment": cfg.Server.Environment,
			"port":        cfg.Server.Port,
			"cache":       cfg.Cache.Type,
			"cache_ttl":   cfg.Cache.TTL,
		}).Info("starting pricescout")

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.session.Start(ctx); err != nil {
			return fmt.Errorf("start browser: %w", err)
		}

		handler := httpDelivery.NewHandler(a.service)
		router := httpDelivery.SetupRouter(cfg, handler)

		server := &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
			Handler: router,
		}

		errCh := make(chan error, 1)
		go func() {
			log.WithField("addr", server.Addr).Info("server listening")
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}
