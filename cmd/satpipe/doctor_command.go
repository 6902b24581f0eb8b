package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"satpipe/internal/artifact"
	"satpipe/internal/metadata"
	"satpipe/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, store, artifacts, configuration and external commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var (
				pinger    preflight.Pinger
				artifacts artifact.Store
			)
			store, openErr := metadata.Open(cmd.Context(), cfg)
			if openErr == nil {
				defer store.Close()
				pinger = store
				artifacts = store.Artifacts()
			}

			fmt.Fprintln(out, renderSectionHeader("satpipe doctor"))
			if openErr != nil {
				fmt.Fprintln(out, renderStatusLine("Metadata store", statusError, openErr.Error(), colorize))
			}
			results := preflight.RunAll(cmd.Context(), cfg, pinger, artifacts)
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}

			failed := len(preflight.Failed(results))
			if failed > 0 {
				return fmt.Errorf("%d checks failed", failed)
			}
			return nil
		},
	}
}
