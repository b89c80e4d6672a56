package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/paramforge/paramforge/pkg/engine"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newGraphCommand() *cobra.Command {
	var (
		output string
		levels bool
	)

	cmd := &cobra.Command{
		Use:   "graph <component>",
		Short: "Export the parameter dependency graph",
		Long: `Export the dependency graph of a component's parameters in DOT format.

An edge A -> B means that an updater or validator of B reads A. Validator
reads are dashed; reads of a later parameter, which the resolver rejects,
are drawn in red.`,
		Example: `  # Render with Graphviz
  paramforge graph cumsum | dot -Tsvg > cumsum.svg

  # Show the evaluation levels only
  paramforge graph cumsum --levels`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			c, err := a.component(args[0])
			if err != nil {
				return err
			}

			b := engine.NewDAGBuilder()
			graph, err := b.BuildGraph(engine.DeclarationOf(c))
			if err != nil {
				return err
			}
			log.Debug().
				Str("component", c.Name).
				Int("nodes", len(graph.Nodes)).
				Int("edges", len(graph.Edges)).
				Int("levels", len(b.GetLevels())).
				Msg("Dependency graph built")

			if levels {
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), b.GetLevels())
				}
				for i, names := range b.GetLevels() {
					fmt.Fprintf(cmd.OutOrStdout(), "%d: %v\n", i, names)
				}
				return nil
			}

			dot := b.ToDOT(c.Name)
			if output == "" {
				_, err := io.WriteString(cmd.OutOrStdout(), dot)
				return err
			}
			if err := os.WriteFile(output, []byte(dot), 0o644); err != nil {
				return fmt.Errorf("failed to write graph: %w", err)
			}
			log.Info().Str("path", output).Msg("Graph written")
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the DOT graph to a file")
	cmd.Flags().BoolVar(&levels, "levels", false, "print the evaluation levels instead of the graph")

	return cmd
}
