package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/hexbuzz/internal/config"
	"github.com/DoyleJ11/hexbuzz/internal/engine"
	"github.com/DoyleJ11/hexbuzz/internal/hexgrid"
	"github.com/DoyleJ11/hexbuzz/internal/httpapi"
	"github.com/DoyleJ11/hexbuzz/internal/hub"
	"github.com/DoyleJ11/hexbuzz/internal/logging"
	"github.com/DoyleJ11/hexbuzz/internal/natsmirror"
	"github.com/DoyleJ11/hexbuzz/internal/room"
	"github.com/DoyleJ11/hexbuzz/internal/store"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	releaseVersion  = "0.1.0"
	shutdownTimeout = 10 * time.Second
)

func main() {
	log.SetFlags(0)
	// A missing .env is fine; the environment and flags still apply.
	_ = godotenv.Load()

	cfg := &config.Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func newCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "hexbuzz",
		Short:   "Hex letter board and buzzer server for party quiz nights.",
		Args:    cobra.ExactArgs(0),
		Version: releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	config.BindFlags(cmd, cfg)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("hexbuzz v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	alphabet, err := hexgrid.LookupAlphabet(cfg.Alphabet)
	if err != nil {
		return err
	}

	roomOpts := room.Options{
		Clock:       clockwork.NewRealClock(),
		Logger:      logger,
		IdleTimeout: cfg.RoomIdleTimeout,
		OnEvent: func(roomID string, evt engine.Event) {
			logger.Debug("room event",
				zap.String("room", roomID),
				zap.String("event", string(evt.Type)),
				zap.String("player", evt.Player))
		},
	}

	var mirror *natsmirror.Mirror
	if cfg.NatsURL != "" {
		mirror, err = natsmirror.Connect(natsmirror.DefaultConfig(cfg.NatsURL), logger)
		if err != nil {
			return err
		}
		roomOpts.Mirror = mirror
		logger.Info("mirroring snapshots to NATS", zap.String("url", cfg.NatsURL))
	}

	// The hub outlives ctx so in-flight requests can finish during shutdown.
	hubCtx, cancelHub := context.WithCancel(context.Background())
	defer cancelHub()
	h := hub.NewHub(hubCtx, hub.Config{
		GridRows: cfg.GridRows,
		GridCols: cfg.GridCols,
		Alphabet: alphabet,
		Room:     roomOpts,
	})
	s := store.New(h, cfg.RequestTimeout)

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: httpapi.SetupRoutes(s, httpapi.Config{
			Logger:         logger,
			AllowedOrigins: cfg.AllowedOrigins,
			PublicURL:      cfg.PublicURL,
			CellSize:       cfg.CellSize,
			OutboxSize:     cfg.OutboxSize,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)

		select {
		case h.Inbox() <- hub.ShutdownHub{}:
		case <-h.Done():
		}
		<-h.Done()

		if mirror != nil {
			if cerr := mirror.Close(); cerr != nil {
				logger.Warn("closing NATS connection", zap.Error(cerr))
			}
		}
		return err
	})

	return g.Wait()
}
