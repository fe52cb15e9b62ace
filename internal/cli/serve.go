package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudgate/cloudgate/internal/cachemgr"
	"github.com/cloudgate/cloudgate/internal/config"
	"github.com/cloudgate/cloudgate/internal/logctx"
	"github.com/cloudgate/cloudgate/internal/media"
	"github.com/cloudgate/cloudgate/internal/server"
)

const defaultBind = "127.0.0.1:8080"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cloudgate HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	logger := logctx.New(os.Stdout)
	ctx = logctx.With(ctx, logger)

	dbPath, err := config.DBPath()
	if err != nil {
		return fmt.Errorf("resolve config directory: %w", err)
	}
	edb, err := config.Open(dbPath, config.Passphrase())
	if err != nil {
		return fmt.Errorf("open settings database: %w", err)
	}
	defer edb.Close()

	settings, err := config.NewSettings(edb)
	if err != nil {
		return fmt.Errorf("open settings: %w", err)
	}

	cache, err := cachemgr.New(edb.DB())
	if err != nil {
		return fmt.Errorf("open cache manager: %w", err)
	}

	bind, err := resolveBind(ctx, settings)
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: bind}
	mgr, handler := server.New(server.Services{
		Registry:    buildRegistry(settings),
		Settings:    settings,
		Cache:       cache,
		Pool:        media.NewPool(defaultWorkerCount()),
		Thumbnailer: media.ImageThumbnailer{},
		Logger:      logger,
		Shutdown: func(shutdownCtx context.Context) {
			httpServer.Shutdown(shutdownCtx)
		},
	})
	httpServer.Handler = handler

	if err := server.RestoreAccounts(ctx, mgr, settings); err != nil {
		logger.Error().Err(err).Msg("failed to restore persisted accounts")
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", bind).Msg("cloudgate listening")
		if !quiet {
			fmt.Printf("cloudgate listening on http://%s\n", bind)
		}
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mgr.Quit(shutdownCtx)
		return httpServer.Shutdown(shutdownCtx)
	}
	return nil
}

// resolveBind applies spec.md §6's bind-address precedence: the
// persisted host_set override, falling back to the loopback default
// unless public_network is enabled, in which case every interface is
// bound.
func resolveBind(ctx context.Context, settings *config.Settings) (string, error) {
	hostSet, err := settings.HostSet(ctx)
	if err != nil {
		return "", err
	}
	if hostSet != "" {
		return hostSet, nil
	}
	public, err := settings.PublicNetwork(ctx)
	if err != nil {
		return "", err
	}
	if public {
		return "0.0.0.0:8080", nil
	}
	return defaultBind, nil
}

// defaultWorkerCount sizes the media pool to the host's CPU count, the
// bounded-worker-pool rationale spec.md §5 gives for CPU-bound thumbnail
// and mux work.
func defaultWorkerCount() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}
