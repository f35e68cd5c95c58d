package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"collier/internal/config"
	"collier/internal/logging"
	"collier/internal/observability"
	"collier/internal/solana"
)

// app carries the resolved configuration and logger into subcommands.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger zerolog.Logger
}

func main() {
	a := &app{v: viper.New(), logger: zerolog.New(os.Stderr).With().Timestamp().Logger()}

	root := newRootCmd(a)
	ctx, stop := signalContext(a)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		a.logger.Error().Err(err).Msg("collier failed")
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "collier",
		Short:         "Mine and remediate Metaplex token metadata",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.v, configFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger.With().Str("command", cmd.Name()).Logger()

			if cfg.MetricsAddr != "" {
				go serveMetrics(cfg.MetricsAddr, a.logger)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "path to YAML config file")
	flags.String(config.KeyDB, "collier.db", "sqlite database path")
	flags.String(config.KeyRPC, solana.DefaultEndpointURL, "Solana RPC HTTP endpoint")
	flags.String(config.KeyWS, "", "Solana WebSocket endpoint for transaction confirmation")
	flags.String(config.KeyPostgresDSN, "", "PostgreSQL connection string (replaces the sqlite store)")
	flags.String(config.KeyClickhouseDSN, "", "ClickHouse connection string for the remediation outcome log")
	flags.String(config.KeyLogLevel, "info", "log level: debug, info, warn, error")
	flags.String(config.KeyLogFormat, "console", "log format: console or json")
	flags.String(config.KeyMetricsAddr, "", "Prometheus metrics HTTP address (empty to disable)")
	flags.Float64(config.KeyRateLimit, solana.DefaultRateLimit, "RPC requests per second (0 disables throttling)")
	flags.Int(config.KeyRateBurst, solana.DefaultRateBurst, "RPC request burst")
	flags.Duration(config.KeyTimeout, solana.DefaultTimeout, "RPC request timeout")
	flags.String(config.KeyCommitment, solana.DefaultCommitment, "RPC commitment level")

	for _, key := range []string{
		config.KeyDB, config.KeyRPC, config.KeyWS, config.KeyPostgresDSN, config.KeyClickhouseDSN,
		config.KeyLogLevel, config.KeyLogFormat, config.KeyMetricsAddr,
		config.KeyRateLimit, config.KeyRateBurst, config.KeyTimeout, config.KeyCommitment,
	} {
		bindFlag(a.v, key, flags.Lookup(key))
	}

	root.AddCommand(
		newMineMetadataCmd(a),
		newMineHoldersCmd(a),
		newListMetadataURIsCmd(a),
		newRescueCmd(a),
		newMineMintCmd(a),
	)
	return root
}

// signalContext cancels on the first SIGINT or SIGTERM and exits on the second.
func signalContext(a *app) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			a.logger.Warn().Str("signal", sig.String()).Msg("shutting down")
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigCh:
			a.logger.Error().Str("signal", sig.String()).Msg("forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			a.logger.Error().Msg("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	logger.Info().Str("addr", addr).Msg("metrics server started")
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server failed")
	}
}
