package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"collier/internal/config"
	"collier/internal/mining"
	"collier/internal/observability"
	"collier/internal/remediation"
	"collier/internal/reporting"
	"collier/internal/retry"
	"collier/internal/solana"
)

func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

// run records the command duration and outcome around fn.
func run(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		err := fn(cmd.Context(), cmd, args)
		observability.RecordRun(cmd.Name(), time.Since(start), err)
		return err
	}
}

func newMineMetadataCmd(a *app) *cobra.Command {
	var opts mining.MinerOptions

	cmd := &cobra.Command{
		Use:   "mine-metadata <creator_address>",
		Short: "Store every metadata account listing the creator",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().BoolVar(&opts.SkipExisting, "incremental", false, "skip metadata accounts already stored")
	cmd.Flags().BoolVar(&opts.AllCreatorPositions, "all-positions", false, "match the creator in every creator slot, not only the first")

	cmd.RunE = run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		store, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		opts.Logger = a.logger
		miner := mining.NewMetadataMiner(a.newRPCClient(), store, opts)
		stats, err := miner.Mine(ctx, args[0])
		if err != nil {
			return err
		}

		a.logger.Info().
			Int("stored", stats.Stored).
			Int("skipped", stats.Skipped).
			Msg("mine-metadata done")
		return nil
	})
	return cmd
}

func newMineHoldersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mine-holders [creator_address]",
		Short: "Resolve the current holder of every stored mint",
		Long:  "Resolve the current holder of every stored mint. With a creator address, only mints linked to that creator are resolved.",
		Args:  cobra.MaximumNArgs(1),
	}
	cmd.Flags().Int(config.KeyWorkers, 1, "concurrent per-mint fetches")
	bindFlag(a.v, config.KeyWorkers, cmd.Flags().Lookup(config.KeyWorkers))

	cmd.RunE = run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		store, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		opts := mining.ResolverOptions{
			Workers: a.cfg.Workers,
			Logger:  a.logger,
		}
		if len(args) == 1 {
			opts.Creator = args[0]
		}

		stats, err := mining.NewHolderResolver(a.newRPCClient(), store, opts).Resolve(ctx)
		if err != nil {
			return err
		}

		a.logger.Info().
			Int("resolved", stats.Resolved).
			Int("failed", stats.Failed).
			Msg("mine-holders done")
		return nil
	})
	return cmd
}

func newListMetadataURIsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list-metadata-uris",
		Short: "Print the mint address and metadata URI of every stored record",
		Args:  cobra.NoArgs,
	}

	cmd.RunE = run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		store, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.ListMetadata(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, rec := range records {
			fmt.Fprintf(out, "%s\t%s\n", rec.MintAddress, rec.CleanURI())
		}
		return nil
	})
	return cmd
}

func newRescueCmd(a *app) *cobra.Command {
	var (
		send       bool
		reportPath string
	)

	cmd := &cobra.Command{
		Use:   "rescue <update_authority_keyfile>",
		Short: "Rebuild the creator list of stored records and simulate the update",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().Int(config.KeyExpectedCreators, 4, "creator count of a record eligible for remediation")
	cmd.Flags().BoolVar(&send, "send", false, "submit transactions that simulate successfully")
	cmd.Flags().StringVar(&reportPath, "report", "", "write a run report to this path (.md for Markdown, otherwise CSV)")
	bindFlag(a.v, config.KeyExpectedCreators, cmd.Flags().Lookup(config.KeyExpectedCreators))

	cmd.RunE = run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		signer, err := remediation.LoadSigner(args[0])
		if err != nil {
			return err
		}

		store, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		opts := remediation.Options{
			ExpectedCreators: a.cfg.ExpectedCreators,
			RetryPolicy:      retry.DefaultPolicy(),
			Send:             send,
			Logger:           a.logger,
		}

		outcomeLog, closeLog, err := a.openOutcomeLog(ctx)
		if err != nil {
			return err
		}
		defer closeLog()
		opts.OutcomeLog = outcomeLog

		if send && a.cfg.WS != "" {
			ws, err := a.newWSClient(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()
			opts.WS = ws
		}

		// The engine owns fetch retries, so fetches go through a single-attempt client.
		opts.Fetcher = a.newRPCClient(solana.WithRetryPolicy(retry.Policy{MaxAttempts: 1}))
		engine := remediation.NewEngine(a.newRPCClient(), store, signer, opts)

		outcomes, stats, err := engine.Run(ctx)
		if reportPath != "" && len(outcomes) > 0 {
			if werr := writeReport(reportPath, reporting.NewReport(engine.RunID(), outcomes, time.Now().UTC())); werr != nil {
				a.logger.Error().Err(werr).Str("path", reportPath).Msg("write report failed")
			}
		}
		if err != nil {
			return err
		}

		a.logger.Info().
			Str("run_id", engine.RunID()).
			Int("done", stats.Done).
			Int("skipped", stats.Skipped).
			Int("failed", stats.Failed).
			Msg("rescue done")
		return nil
	})
	return cmd
}

func writeReport(path string, r *reporting.Report) error {
	content := reporting.RenderCSV(r)
	if strings.EqualFold(filepath.Ext(path), ".md") {
		content = reporting.RenderMarkdown(r)
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func newMineMintCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mine-mint <mint_address>",
		Short: "Store the metadata account of a single mint",
		Args:  cobra.ExactArgs(1),
	}

	cmd.RunE = run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		store, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		miner := mining.NewMetadataMiner(a.newRPCClient(), store, mining.MinerOptions{Logger: a.logger})
		rec, err := miner.MineMint(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", rec.MetadataAddress, rec.CleanName(), rec.CleanURI())
		return nil
	})
	return cmd
}
