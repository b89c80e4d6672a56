package commands

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"strings"

	"github.com/paramforge/paramforge/pkg/components"
	"github.com/paramforge/paramforge/pkg/config"
	"github.com/paramforge/paramforge/pkg/domain"
	"github.com/paramforge/paramforge/pkg/engine"
	"github.com/paramforge/paramforge/pkg/telemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newResolveCommand() *cobra.Command {
	var (
		assignments    []string
		defaultsFile   string
		nonInteractive bool
		noArtifact     bool
		printArtifact  bool
		outDir         string
		graphName      string
	)

	cmd := &cobra.Command{
		Use:   "resolve <component>",
		Short: "Resolve a configuration of a component",
		Long: `Resolve every parameter of a component in declared order.

Interactively, each parameter shows its legal domain and default; a rejected
candidate shows the reason and the nearest legal value. Enter "<" to go back
to the previous parameter and "q" to abort.

With --non-interactive the defaults are taken as given: the first rejection
fails the run and values are never adjusted.

The resolved configuration is verified and handed to the component's
emitter, which writes the graph source and ports.json to the output
directory.`,
		Example: `  # Resolve interactively
  paramforge resolve cumsum

  # Resolve from a defaults file, overriding one value
  paramforge resolve cumsum --defaults cumsum.yaml --set TP_DIM_A=32 --non-interactive

  # Print the generated graph instead of writing it
  paramforge resolve ssr_casc --non-interactive --print-artifact`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			c, err := a.component(args[0])
			if err != nil {
				return err
			}

			ctx, span := a.telemetry.Tracer.StartCommandSpan(cmd.Context(), "resolve", c.Name)
			defer func() {
				telemetry.RecordError(span, err)
				span.End()
			}()

			defaults := make(map[string]domain.Value)
			if defaultsFile != "" {
				loaded, err := config.LoadDefaults(ctx, defaultsFile, c)
				if err != nil {
					return err
				}
				maps.Copy(defaults, loaded)
			}
			set, err := config.ParseAssignments(c, assignments)
			if err != nil {
				return err
			}
			maps.Copy(defaults, set)

			opts := []engine.SessionOption{
				engine.WithSessionLogger(a.logger),
				engine.WithSessionMetrics(a.telemetry.Metrics),
			}

			var cfg *engine.Configuration
			if nonInteractive {
				cfg, err = engine.ResolveDefaults(ctx, c, defaults, opts...)
			} else {
				prompter := newTextPrompter(c, cmd.InOrStdin(), cmd.ErrOrStderr())
				cfg, err = engine.Resolve(ctx, c, prompter, append(opts, engine.WithDefaults(defaults))...)
			}
			if err != nil {
				if errors.Is(err, engine.ErrAborted) {
					log.Info().Str("component", c.Name).Msg("Resolution aborted")
				}
				return err
			}

			w := cmd.OutOrStdout()
			if noArtifact || c.Emitter == nil {
				if !noArtifact {
					log.Info().Str("component", c.Name).Msg("Component has no artifact emitter")
				}
				return writeConfiguration(w, c.Name, cfg, nil)
			}

			art, err := engine.EmitVerified(ctx, c, cfg, graphName)
			if err != nil {
				return err
			}
			if printArtifact {
				if err := writeConfiguration(cmd.ErrOrStderr(), c.Name, cfg, nil); err != nil {
					return err
				}
				_, err := io.WriteString(w, art.Text)
				return err
			}

			dir := outDir
			if dir == "" {
				dir = a.settings.Paths.Output
			}
			written, err := components.WriteArtifact(dir, c.Name, art)
			if err != nil {
				return err
			}
			for _, path := range written {
				log.Info().Str("path", path).Msg("Artifact written")
			}
			return writeConfiguration(w, c.Name, cfg, written)
		},
	}

	cmd.Flags().StringArrayVar(&assignments, "set", nil, "default for one parameter as NAME=VALUE (repeatable)")
	cmd.Flags().StringVar(&defaultsFile, "defaults", "", "defaults file (YAML, JSON, CUE or Starlark)")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "resolve from defaults without prompting")
	cmd.Flags().BoolVar(&noArtifact, "no-artifact", false, "do not emit the graph and port descriptors")
	cmd.Flags().BoolVar(&printArtifact, "print-artifact", false, "print the generated graph instead of writing files")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory for generated files")
	cmd.Flags().StringVar(&graphName, "graph-name", components.DefaultGraphName, "name of the generated graph class")

	return cmd
}

type resolvedOutput struct {
	Component     string         `json:"component"`
	Configuration map[string]any `json:"configuration"`
	Files         []string       `json:"files,omitempty"`
}

func writeConfiguration(w io.Writer, component string, cfg *engine.Configuration, files []string) error {
	if jsonOutput {
		return printJSON(w, resolvedOutput{Component: component, Configuration: cfg.Map(), Files: files})
	}

	width := 0
	for _, name := range cfg.Names() {
		width = max(width, len(name))
	}
	values := cfg.Values()
	var sb strings.Builder
	for i, name := range cfg.Names() {
		fmt.Fprintf(&sb, "%-*s = %s\n", width, name, values[i])
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
