package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/paramforge/paramforge/pkg/engine"
	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available components",
		Long: `List the built-in components and those declared in the metadata
directory, with their parameter counts.`,
		Example: `  # List built-in components
  paramforge list

  # Include components declared in ./metadata
  paramforge list -m ./metadata`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			return writeComponentList(cmd.OutOrStdout(), a.registry.List())
		},
	}
	return cmd
}

type componentSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Params      int    `json:"params"`
	Emitter     bool   `json:"emitter"`
}

func writeComponentList(w io.Writer, list []*engine.Component) error {
	summaries := make([]componentSummary, 0, len(list))
	for _, c := range list {
		summaries = append(summaries, componentSummary{
			Name:        c.Name,
			Description: c.Description,
			Params:      len(c.Params),
			Emitter:     c.Emitter != nil,
		})
	}
	if jsonOutput {
		return printJSON(w, summaries)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPARAMS\tEMITTER\tDESCRIPTION")
	for _, s := range summaries {
		emitter := "no"
		if s.Emitter {
			emitter = "yes"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", s.Name, s.Params, emitter, s.Description)
	}
	return tw.Flush()
}

func newParamsCommand() *cobra.Command {
	var markdown bool

	cmd := &cobra.Command{
		Use:   "params <component>",
		Short: "List the parameters of a component",
		Long: `List the parameters of a component in declared order with their types,
dependencies and defaults.`,
		Example: `  # Show the parameters of the cumulative-sum kernel
  paramforge params cumsum

  # Render as a markdown table
  paramforge params ssr_casc --markdown`,
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

			w := cmd.OutOrStdout()
			switch {
			case jsonOutput:
				return printJSON(w, paramRecords(c))
			case markdown:
				return writeMarkdown(w, paramsMarkdown(c))
			default:
				return writeParams(w, c)
			}
		},
	}

	cmd.Flags().BoolVar(&markdown, "markdown", false, "render the parameter table as markdown")

	return cmd
}

type paramRecord struct {
	Index          int      `json:"index"`
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	ElementType    string   `json:"element_type,omitempty"`
	Description    string   `json:"description,omitempty"`
	UpdaterArgs    []string `json:"updater_args"`
	ValidatorArgs  []string `json:"validator_args"`
	SkipValidation bool     `json:"skip_validation,omitempty"`
	Default        string   `json:"default,omitempty"`
}

func paramRecords(c *engine.Component) []paramRecord {
	records := make([]paramRecord, 0, len(c.Params))
	for i := range c.Params {
		p := &c.Params[i]
		rec := paramRecord{
			Index:          p.Index,
			Name:           p.Name,
			Type:           p.Type.String(),
			ElementType:    p.ElementType,
			Description:    p.Description,
			UpdaterArgs:    p.UpdaterArgs,
			ValidatorArgs:  p.ValidatorArgs,
			SkipValidation: p.SkipValidation,
		}
		if !p.Default.IsZero() {
			rec.Default = p.Default.String()
		}
		records = append(records, rec)
	}
	return records
}

// argList renders a capability argument list; nil means every earlier parameter.
func argList(args []string) string {
	if args == nil {
		return "*"
	}
	if len(args) == 0 {
		return "-"
	}
	return strings.Join(args, ",")
}

func writeParams(w io.Writer, c *engine.Component) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tTYPE\tREADS\tDEFAULT\tDESCRIPTION")
	for _, r := range paramRecords(c) {
		def := r.Default
		if def == "" {
			def = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", r.Index, r.Name, r.Type, argList(r.UpdaterArgs), def, r.Description)
	}
	return tw.Flush()
}

func paramsMarkdown(c *engine.Component) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", c.Name)
	if c.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", c.Description)
	}
	sb.WriteString("| # | Name | Type | Updater reads | Validator reads | Default | Description |\n")
	sb.WriteString("|---|------|------|---------------|-----------------|---------|-------------|\n")
	for _, r := range paramRecords(c) {
		def := r.Default
		if def == "" {
			def = "-"
		}
		fmt.Fprintf(&sb, "| %d | `%s` | %s | %s | %s | %s | %s |\n",
			r.Index, r.Name, r.Type, argList(r.UpdaterArgs), argList(r.ValidatorArgs), def,
			strings.ReplaceAll(r.Description, "|", "\\|"))
	}
	return sb.String()
}

// writeMarkdown renders markdown for a terminal and writes it raw otherwise.
func writeMarkdown(w io.Writer, markdown string) error {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
		if err == nil {
			out, err := r.Render(markdown)
			if err == nil {
				_, err = io.WriteString(w, out)
				return err
			}
		}
	}
	_, err := io.WriteString(w, markdown)
	return err
}
