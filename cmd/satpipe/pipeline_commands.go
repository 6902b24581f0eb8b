package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"satpipe/internal/config"
	"satpipe/internal/logging"
	"satpipe/internal/metadata"
	"satpipe/internal/pipeline"
	"satpipe/internal/staging"
)

type runFlags struct {
	executionKey string
	recordID     int64
	areaID       string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.executionKey, "execution-key", "e", "", "Execution key (record date_time, 2006-01-02T15:04:05)")
	cmd.Flags().Int64Var(&f.recordID, "record-id", 0, "Triggering record id")
	cmd.Flags().StringVar(&f.areaID, "area-id", "", "Area id override (defaults to the record's area)")
}

func (f *runFlags) request() (pipeline.Request, error) {
	req := pipeline.Request{ExecutionKey: strings.TrimSpace(f.executionKey), RecordID: f.recordID}
	if raw := strings.TrimSpace(f.areaID); raw != "" && raw != "null" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return req, fmt.Errorf("invalid --area-id %q", raw)
		}
		req.AreaID = &id
	}
	if req.ExecutionKey == "" && req.RecordID == 0 {
		return req, fmt.Errorf("--execution-key or --record-id is required")
	}
	return req, nil
}

func newPipelineCommand(ctx *commandContext) *cobra.Command {
	pipelineCmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run and inspect configured pipelines",
	}
	pipelineCmd.AddCommand(newPipelineRunCommand(ctx))
	pipelineCmd.AddCommand(newPipelineListCommand(ctx))
	return pipelineCmd
}

func newPipelineRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <pipeline>",
		Short: "Run every stage of a pipeline and record the outcome on the triggering record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(cfg *config.Config, store *metadata.Store) error {
				def, err := pipeline.Lookup(cfg, args[0])
				if err != nil {
					return err
				}
				runner, closeLog, err := newPipelineRunner(ctx, cfg, store, def.Name, req)
				if err != nil {
					return err
				}
				defer closeLog()

				outcome, runErr := runner.Run(cmd.Context(), def, req)
				out := cmd.OutOrStdout()
				if outcome != nil {
					for _, stage := range outcome.Stages {
						fmt.Fprintf(out, "Stage %s loaded %s\n", stage.Stage, formatLoaded(stage.Loaded))
					}
					if outcome.Final != "" {
						fmt.Fprintf(out, "Record %d -> %s\n", req.RecordID, formatStatusLabel(outcome.Final))
					}
				}
				return runErr
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newStageCommand(ctx *commandContext) *cobra.Command {
	stageCmd := &cobra.Command{
		Use:   "stage",
		Short: "Run a single pipeline stage",
	}

	var flags runFlags
	runCmd := &cobra.Command{
		Use:   "run <pipeline> <stage>",
		Short: "Run one stage through extract, execute, load and cleanup without touching record status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(cfg *config.Config, store *metadata.Store) error {
				def, err := pipeline.Lookup(cfg, args[0])
				if err != nil {
					return err
				}
				runner, closeLog, err := newPipelineRunner(ctx, cfg, store, def.Name+"-"+args[1], req)
				if err != nil {
					return err
				}
				defer closeLog()

				outcome, err := runner.RunStage(cmd.Context(), def, args[1], req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stage %s loaded %s\n", outcome.Stage, formatLoaded(outcome.Loaded))
				return nil
			})
		},
	}
	flags.register(runCmd)
	stageCmd.AddCommand(runCmd)
	return stageCmd
}

// newPipelineRunner builds a runner whose logs are also written to a
// per-run JSON file under the run log directory.
func newPipelineRunner(ctx *commandContext, cfg *config.Config, store *metadata.Store, name string, req pipeline.Request) (*pipeline.Runner, func(), error) {
	logger, err := ctx.logger()
	if err != nil {
		return nil, nil, err
	}
	temp, err := staging.NewManager(cfg.Paths.StagingDir, cfg.Staging.Prefix)
	if err != nil {
		return nil, nil, err
	}
	logName := fmt.Sprintf("%s-%s-%d.log", name, time.Now().UTC().Format(staging.RunTimestampLayout), req.RecordID)
	runLogger, closeFn, err := logging.NewRunLogger(logger, filepath.Join(cfg.RunLogDir(), logName))
	if err != nil {
		logging.WarnWithContext(logger, "run log unavailable", "run_log_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check log_dir permissions"),
			logging.String(logging.FieldImpact, "run output only appears on stderr and satpipe.log"),
		)
		return pipeline.NewRunner(store, temp, logger), func() {}, nil
	}
	return pipeline.NewRunner(store, temp, runLogger), func() { _ = closeFn() }, nil
}

func formatLoaded(loaded map[string]int64) string {
	if len(loaded) == 0 {
		return "nothing"
	}
	keys := make([]string, 0, len(loaded))
	for key := range loaded {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=#%d", key, loaded[key]))
	}
	return strings.Join(parts, ", ")
}

func newPipelineListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured pipelines and the watch groups that trigger them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			triggeredBy := make(map[string][]string)
			for _, g := range cfg.Watcher.Groups {
				for _, p := range g.Pipelines {
					triggeredBy[p] = append(triggeredBy[p], g.Name)
				}
			}
			rows := make([][]string, 0, len(cfg.Pipelines))
			for _, p := range cfg.Pipelines {
				stages := make([]string, 0, len(p.Stages))
				for _, s := range p.Stages {
					stages = append(stages, s.Name)
				}
				rows = append(rows, []string{
					p.Name,
					strings.Join(stages, " -> "),
					formatStatusLabel(filestateOrEmpty(p.TerminalStatus)),
					strings.Join(triggeredBy[p.Name], ", "),
				})
			}
			return tableView{
				headers: []string{"Pipeline", "Stages", "On Success", "Watch Groups"},
				rows:    rows,
			}.write(cmd.OutOrStdout())
		},
	}
}
