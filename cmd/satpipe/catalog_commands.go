package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"satpipe/internal/config"
	"satpipe/internal/metadata"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage product types and areas",
	}
	catalogCmd.AddCommand(newCatalogAddCommand(ctx, "add-product", "Register a product type", func(cmd *cobra.Command, store *metadata.Store, id int64, name string) error {
		return store.RegisterProduct(cmd.Context(), metadata.Product{ID: id, ShortName: name})
	}))
	catalogCmd.AddCommand(newCatalogAddCommand(ctx, "add-area", "Register an area", func(cmd *cobra.Command, store *metadata.Store, id int64, name string) error {
		return store.RegisterArea(cmd.Context(), metadata.Area{ID: id, ShortName: name})
	}))
	catalogCmd.AddCommand(newCatalogListCommand(ctx))
	return catalogCmd
}

type registerFunc func(cmd *cobra.Command, store *metadata.Store, id int64, name string) error

func newCatalogAddCommand(ctx *commandContext, use, short string, register registerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id> <short_name>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid id %q", args[0])
			}
			name := strings.TrimSpace(args[1])
			if name == "" {
				return fmt.Errorf("short name is required")
			}
			return ctx.withStore(cmd.Context(), func(_ *config.Config, store *metadata.Store) error {
				if err := register(cmd, store, id, name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s as #%d\n", name, id)
				return nil
			})
		},
	}
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered product types and areas",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(_ *config.Config, store *metadata.Store) error {
				products, err := store.Products(cmd.Context())
				if err != nil {
					return err
				}
				areas, err := store.Areas(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(products)+len(areas))
				for _, p := range products {
					rows = append(rows, []string{"product", strconv.FormatInt(p.ID, 10), p.ShortName})
				}
				for _, a := range areas {
					rows = append(rows, []string{"area", strconv.FormatInt(a.ID, 10), a.ShortName})
				}
				return tableView{
					headers: []string{"Kind", "ID", "Short Name"},
					rows:    rows,
					aligns:  []columnAlignment{alignLeft, alignRight},
				}.write(cmd.OutOrStdout())
			})
		},
	}
}
