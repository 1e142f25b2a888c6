package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chitechevents/eventsync/internal/api"
	"github.com/chitechevents/eventsync/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the add_event API",
		Long: `Serve the HTTP API. POST /add_event scrapes one event URL, publishes it
to the configured calendars and saves it to the events table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (default server.port from config)")
	return cmd
}

func runServe(cmd *cobra.Command, port int) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	// Publishing is optional for the API; without a calendar output the
	// endpoint scrapes and saves only.
	publish := cfg.Publish.ICSDir != "" || cfg.Publish.WebhookURL != ""
	a, err := newApp(ctx, cfg, appOptions{publish: publish})
	if err != nil {
		return err
	}
	defer a.Close()

	server := api.NewServer(a.runner, a.delivery, a.metrics, a.log)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("Shutting down API server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("Graceful shutdown failed", logger.Fields{"timeout": shutdownTimeout.String()}, err)
		return err
	}
	return nil
}
