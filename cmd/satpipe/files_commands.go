package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"satpipe/internal/config"
	"satpipe/internal/filestate"
	"satpipe/internal/metadata"
)

func newFilesCommand(ctx *commandContext) *cobra.Command {
	filesCmd := &cobra.Command{
		Use:   "files",
		Short: "Inspect and manage file records",
	}
	filesCmd.AddCommand(newFilesListCommand(ctx))
	filesCmd.AddCommand(newFilesShowCommand(ctx))
	filesCmd.AddCommand(newFilesStatsCommand(ctx))
	filesCmd.AddCommand(newFilesAddCommand(ctx))
	filesCmd.AddCommand(newFilesExtractCommand(ctx))
	filesCmd.AddCommand(newFilesSetStatusCommand(ctx))
	filesCmd.AddCommand(newFilesStuckCommand(ctx))
	filesCmd.AddCommand(newFilesResetCommand(ctx))
	return filesCmd
}

func newFilesListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var products []int64
	var areas []int64
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List file records",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := metadata.Filter{ProductTypeIDs: products, AreaIDs: areas, Limit: limit}
			for _, raw := range statuses {
				status, err := filestate.Parse(raw)
				if err != nil {
					return err
				}
				filter.Statuses = append(filter.Statuses, status)
			}
			return ctx.withStore(cmd.Context(), func(_ *config.Config, store *metadata.Store) error {
				records, err := store.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, records)
				}
				return recordTable(records).write(cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().Int64SliceVarP(&products, "product-id", "p", nil, "Filter by product type id (repeatable)")
	cmd.Flags().Int64SliceVarP(&areas, "area-id", "a", nil, "Filter by area id (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum records to list (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newFilesShowCommand(ctx *commandContext) *cobra.Command {
	var selector string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show one record by id or by selector",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && strings.TrimSpace(selector) == "" {
				return fmt.Errorf("an id or --selector is required")
			}
			return ctx.withStore(cmd.Context(), func(_ *config.Config, store *metadata.Store) error {
				var (
					record *metadata.FileRecord
					err    error
				)
				if len(args) == 1 {
					id, parseErr := parseRecordID(args[0])
					if parseErr != nil {
						return parseErr
					}
					record, err = store.Get(cmd.Context(), id)
				} else {
					// Extract with no destination only resolves the selector.
					record, err = store.Extract(cmd.Context(), selector, "")
				}
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, record)
				}
				writeRecordDetail(cmd.OutOrStdout(), record)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&selector, "selector", "", "Selector such as \"product_type_id=6 AND date_time=2024-01-01T00:00:00\"")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newFilesStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count records per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(_ *config.Config, store *metadata.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(stats))
				total := 0
				for _, status := range filestate.All() {
					count := stats[status]
					total += count
					rows = append(rows, []string{formatStatusLabel(status), strconv.Itoa(count)})
				}
				return tableView{
					headers: []string{"Status", "Count"},
					rows:    rows,
					aligns:  []columnAlignment{alignLeft, alignRight},
					caption: fmt.Sprintf("%d records", total),
				}.write(cmd.OutOrStdout())
			})
		},
	}
}

func newFilesAddCommand(ctx *commandContext) *cobra.Command {
	var (
		product   string
		productID int64
		area      string
		areaID    int64
		dateTime  string
		status    string
		recordID  int64
	)

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Archive a file and register it in the metadata store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := metadata.ParseDateTime(dateTime)
			if err != nil {
				return err
			}
			md := metadata.Metadata{
				ID:            recordID,
				ProductType:   strings.TrimSpace(product),
				ProductTypeID: productID,
				Area:          strings.TrimSpace(area),
				DateTime:      dt,
			}
			if areaID != 0 {
				md.AreaID = &areaID
			}
			if strings.TrimSpace(status) != "" {
				parsed, err := filestate.Parse(status)
				if err != nil {
					return err
				}
				md.Status = parsed
			}
			return ctx.withStore(cmd.Context(), func(_ *config.Config, store *metadata.Store) error {
				id, err := store.Load(cmd.Context(), md, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered record %d\n", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&product, "product", "", "Product type short name")
	cmd.Flags().Int64Var(&productID, "product-id", 0, "Product type id")
	cmd.Flags().StringVar(&area, "area", "", "Area short name")
	cmd.Flags().Int64Var(&areaID, "area-id", 0, "Area id")
	cmd.Flags().StringVar(&dateTime, "date-time", "", "Acquisition time (2006-01-02T15:04:05)")
	cmd.Flags().StringVar(&status, "status", "", "Initial status (default std)")
	cmd.Flags().Int64Var(&recordID, "id", 0, "Update this record instead of inserting")
	_ = cmd.MarkFlagRequired("date-time")
	return cmd
}

func newFilesExtractCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <selector> <path>",
		Short: "Copy the archived file of exactly one record to path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(_ *config.Config, store *metadata.Store) error {
				record, err := store.Extract(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Extracted record %d to %s\n", record.ID, args[1])
				return nil
			})
		},
	}
}

func newFilesSetStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <id> <from> <to>",
		Short: "Apply a legal status transition if the record is still in <from>",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, from, to, err := parseTransitionArgs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(_ *config.Config, store *metadata.Store) error {
				ok, err := store.UpdateStatus(cmd.Context(), id, from, to)
				if err != nil {
					return err
				}
				return reportTransition(cmd.OutOrStdout(), id, from, to, ok)
			})
		},
	}
}

func newFilesResetCommand(ctx *commandContext) *cobra.Command {
	var from string
	var to string

	cmd := &cobra.Command{
		Use:   "reset <id>...",
		Short: "Move records between any two statuses (operator override)",
		Long: "Reset bypasses the transition rules, typically to return records stuck in processing " +
			"to to_load after a failed trigger. It still only applies when the record is in --from.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fromStatus, err := filestate.Parse(from)
			if err != nil {
				return err
			}
			toStatus, err := filestate.Parse(to)
			if err != nil {
				return err
			}
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseRecordID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return ctx.withStore(cmd.Context(), func(_ *config.Config, store *metadata.Store) error {
				failed := 0
				for _, id := range ids {
					ok, err := store.ResetStatus(cmd.Context(), id, fromStatus, toStatus)
					if err != nil {
						return err
					}
					if reportTransition(cmd.OutOrStdout(), id, fromStatus, toStatus, ok) != nil {
						failed++
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d records were not reset", failed, len(ids))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", string(filestate.StatusProcessing), "Status the record must currently have")
	cmd.Flags().StringVar(&to, "to", string(filestate.StatusToLoad), "Status to apply")
	return cmd
}

func newFilesStuckCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "stuck",
		Short: "List records that have been processing longer than a threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(cfg *config.Config, store *metadata.Store) error {
				threshold := olderThan
				if threshold <= 0 {
					threshold = time.Duration(cfg.Watcher.StuckAfter) * time.Second
				}
				records, err := store.Stuck(cmd.Context(), threshold)
				if err != nil {
					return err
				}
				view := recordTable(records)
				view.caption = fmt.Sprintf("processing for more than %s", threshold)
				return view.write(cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Threshold (default watcher.stuck_after)")
	return cmd
}

func parseRecordID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid record id %q", raw)
	}
	return id, nil
}

func parseTransitionArgs(args []string) (int64, filestate.Status, filestate.Status, error) {
	id, err := parseRecordID(args[0])
	if err != nil {
		return 0, "", "", err
	}
	from, err := filestate.Parse(args[1])
	if err != nil {
		return 0, "", "", err
	}
	to, err := filestate.Parse(args[2])
	if err != nil {
		return 0, "", "", err
	}
	return id, from, to, nil
}

func reportTransition(w io.Writer, id int64, from, to filestate.Status, ok bool) error {
	if !ok {
		fmt.Fprintf(w, "Record %d: not changed (not in %s, missing, or %s -> %s is not allowed)\n", id, from, from, to)
		return fmt.Errorf("record %d not updated", id)
	}
	fmt.Fprintf(w, "Record %d: %s -> %s\n", id, formatStatusLabel(from), formatStatusLabel(to))
	return nil
}

func recordTable(records []*metadata.FileRecord) tableView {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			strconv.FormatInt(r.ProductTypeID, 10),
			formatArea(r.AreaID),
			r.ExecutionKey(),
			formatStatusLabel(r.Status),
			formatOptionalTime(r.LastProcessed),
		})
	}
	return tableView{
		headers: []string{"ID", "Product", "Area", "Date Time", "Status", "Last Processed"},
		rows:    rows,
		aligns:  []columnAlignment{alignRight, alignRight, alignRight},
	}
}

func writeRecordDetail(w io.Writer, r *metadata.FileRecord) {
	fmt.Fprintf(w, "ID:              %d\n", r.ID)
	fmt.Fprintf(w, "Product type:    %d\n", r.ProductTypeID)
	fmt.Fprintf(w, "Area:            %s\n", formatArea(r.AreaID))
	fmt.Fprintf(w, "Date time:       %s\n", r.ExecutionKey())
	fmt.Fprintf(w, "Status:          %s\n", formatStatusLabel(r.Status))
	fmt.Fprintf(w, "Filepath:        %s\n", r.Filepath)
	fmt.Fprintf(w, "Multihash:       %s\n", r.Multihash)
	fmt.Fprintf(w, "Last processed:  %s\n", formatOptionalTime(r.LastProcessed))
	fmt.Fprintf(w, "Created:         %s\n", r.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Updated:         %s\n", r.UpdatedAt.Local().Format(time.DateTime))
}

func formatArea(id *int64) string {
	if id == nil {
		return "-"
	}
	return strconv.FormatInt(*id, 10)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}

func filestateOrEmpty(value string) filestate.Status {
	status, err := filestate.Parse(value)
	if err != nil {
		return ""
	}
	return status
}
