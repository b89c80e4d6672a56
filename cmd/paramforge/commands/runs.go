package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/paramforge/paramforge/pkg/config"
	"github.com/paramforge/paramforge/pkg/stores"
	"github.com/spf13/cobra"
)

var dbPath string

func newRunsCommand() *cobra.Command {
	var (
		component string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List saved explorations",
		Long: `List the explorations saved with "explore --save", newest first.

Runs can be shown or deleted by id or by any unambiguous id prefix.`,
		Example: `  # List saved runs
  paramforge runs

  # Only runs of one component
  paramforge runs --component cumsum

  # Show a run as CSV
  paramforge runs show 3f2a --csv runs.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openRunStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.ListExplorations(ctx, stores.ExplorationFilter{Component: component, Limit: limit})
			if err != nil {
				return err
			}
			return writeRunList(cmd.OutOrStdout(), list)
		},
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "exploration database path")
	cmd.Flags().StringVar(&component, "component", "", "only runs of this component")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")

	cmd.AddCommand(newRunsShowCommand())
	cmd.AddCommand(newRunsDeleteCommand())

	return cmd
}

func newRunsShowCommand() *cobra.Command {
	var (
		limit    int
		offset   int
		csvFile  string
		yamlFile string
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved exploration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openRunStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			id, err := store.ResolveID(ctx, args[0])
			if err != nil {
				return err
			}
			exp, err := store.GetExploration(ctx, id)
			if err != nil {
				return err
			}
			rows, err := store.ListConfigurations(ctx, id, limit, offset)
			if err != nil {
				return err
			}
			stats, err := stores.DecodeStats(exp)
			if err != nil {
				return err
			}

			table := tableFromStore(exp, rows)
			if csvFile != "" {
				if err := writeFile(csvFile, table.writeCSV); err != nil {
					return err
				}
			}
			if yamlFile != "" {
				if err := writeFile(yamlFile, table.writeYAML); err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(w, struct {
					*stores.Exploration
					Configurations []*stores.ConfigurationRow `json:"configurations"`
				}{exp, rows})
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "ID:\t%s\n", exp.ID)
			fmt.Fprintf(tw, "Component:\t%s\n", exp.Component)
			fmt.Fprintf(tw, "Strategy:\t%s\n", exp.Strategy)
			fmt.Fprintf(tw, "Status:\t%s\n", exp.Status)
			fmt.Fprintf(tw, "Started:\t%s\n", exp.StartedAt.Local().Format(time.RFC3339))
			fmt.Fprintf(tw, "Elapsed:\t%s\n", stats.Elapsed)
			fmt.Fprintf(tw, "Configurations:\t%d\n", exp.Count)
			fmt.Fprintf(tw, "Pruned:\t%d\n", stats.Pruned)
			fmt.Fprintf(tw, "Filtered:\t%d\n", stats.Filtered)
			for _, warn := range exp.Warnings {
				fmt.Fprintf(tw, "Warning:\t%s\n", warn)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(w)
			return table.writeText(w)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of configurations to show (0 = all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "skip this many configurations")
	cmd.Flags().StringVar(&csvFile, "csv", "", "write the configurations to a CSV file")
	cmd.Flags().StringVar(&yamlFile, "yaml", "", "write the configurations to a YAML file")

	return cmd
}

func newRunsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved exploration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openRunStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			id, err := store.ResolveID(ctx, args[0])
			if err != nil {
				return err
			}
			if err := store.DeleteExploration(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			return nil
		},
	}
}

// openRunStore opens the database named by --db or the settings. Listing runs
// needs neither telemetry nor the component registry.
func openRunStore(ctx context.Context) (*stores.SQLiteStore, error) {
	path := dbPath
	if path == "" {
		settings, err := config.LoadSettings(configPath)
		if err != nil {
			return nil, err
		}
		path = settings.Paths.Database
	}
	return openStore(ctx, path)
}

func writeRunList(w io.Writer, list []*stores.Exploration) error {
	if jsonOutput {
		return printJSON(w, list)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOMPONENT\tSTRATEGY\tSTATUS\tCONFIGS\tSTARTED")
	for _, e := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			shortID(e.ID), e.Component, e.Strategy, e.Status, e.Count,
			e.StartedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
