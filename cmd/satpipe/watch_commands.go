package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"satpipe/internal/config"
	"satpipe/internal/daemonrun"
	"satpipe/internal/metadata"
	"satpipe/internal/trigger"
	"satpipe/internal/watcher"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool
	var development bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the watcher daemon in the foreground",
		Long: "Poll the metadata store for to_load records, claim them and trigger their pipelines " +
			"until interrupted. Also sweeps abandoned temp paths and warns about stuck records.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:      ctx.logLevel(),
				Development:   development,
				SkipPreflight: skipPreflight,
			})
		},
	}
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Start even when readiness checks fail")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in logs")
	return cmd
}

func newPollCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var limit int

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run a single watcher tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(cfg *config.Config, store *metadata.Store) error {
				var runtime trigger.Runtime = trigger.NewLog(logger)
				if !dryRun {
					runtime, err = trigger.New(cfg, logger)
					if err != nil {
						return err
					}
				}
				defer runtime.Close()

				opts := watcher.OptionsFromConfig(cfg.Watcher)
				opts.Logger = logger
				opts.BatchLimit = limit
				w, err := watcher.New(store, runtime, watcher.GroupsFromConfig(cfg.Watcher.Groups), opts)
				if err != nil {
					return err
				}
				result, err := w.Tick(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Candidates: %d, claimed: %d, lost: %d, triggered: %d, trigger failures: %d\n",
					result.Candidates, result.Claimed, result.Lost, result.Triggered, result.TriggerFailures)
				if result.TriggerFailures > 0 {
					return fmt.Errorf("%d pipeline triggers failed", result.TriggerFailures)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Claim records but only log triggers")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum candidates per watch group (0 = all)")
	return cmd
}
