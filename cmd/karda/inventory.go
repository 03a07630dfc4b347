package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/kardainfra/karda/catalog"
	"github.com/kardainfra/karda/content"
	"github.com/kardainfra/karda/inventory"
	"github.com/kardainfra/karda/jobs"
	"github.com/kardainfra/karda/parser"
	"github.com/spf13/cobra"
)

func newJobsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List the hard-coded inventory jobs.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defs, err := jobs.Definitions()
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetStyle(table.StyleRounded)
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Job", "Kind", "Summary"})
			for _, job := range defs {
				kind := string(job.Kind)
				if job.Kind == jobs.KindScrape {
					kind += " (" + string(job.Engine) + ")"
				}
				t.AppendRow(table.Row{job.Name, kind, job.Summary})
			}
			t.Render()
			return nil
		},
	}
}

func newInventoryCmd(a *app) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "inventory [search]",
		Short: "Show the inventory as a terminal table.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := inventory.Filter{}
			if status != "" {
				s, ok := parser.NormalizeStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q", status)
				}
				filter.Status = s
			}

			repo, err := a.openRepository()
			if err != nil {
				return err
			}
			listings, err := repo.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				listings = catalog.Filter(listings, args[0])
			}
			if len(listings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "NO ASSETS FOUND")
				return nil
			}
			catalog.RenderTable(cmd.OutOrStdout(), listings)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only show listings with this status")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the inventory document schema as JSON.",
		Args:  cobra.NoArgs,
		// The schema is static; skip config loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := json.MarshalIndent(content.InventorySchema, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(out)))
			return nil
		},
	}
}
