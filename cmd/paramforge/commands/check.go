package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/paramforge/paramforge/pkg/config"
	"github.com/paramforge/paramforge/pkg/engine"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// recheckDelay debounces bursts of metadata edits into one check.
const recheckDelay = 300 * time.Millisecond

func newCheckCommand() *cobra.Command {
	var (
		all   bool
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "check [component...]",
		Short: "Check component declarations",
		Long: `Check that component declarations are consistent.

This command checks:
  - every updater and validator reads only parameters declared before it
  - no parameter is declared twice
  - the dependency graph has no cycles
  - the declared defaults resolve and the result verifies (canary)

With --watch the metadata directory is watched and the check is repeated
whenever a declaration or script changes.`,
		Example: `  # Check one component
  paramforge check cumsum

  # Check everything, including declarations in ./metadata
  paramforge check --all -m ./metadata

  # Re-check on every change while editing declarations
  paramforge check --all -m ./metadata --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("name a component or use --all")
			}

			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			failed, err := runCheck(ctx, w, a.registry, a.problems, args, all)
			if !watch {
				if err != nil {
					return err
				}
				if failed > 0 {
					return fmt.Errorf("%d component(s) failed the check", failed)
				}
				return nil
			}
			if err != nil {
				log.Error().Err(err).Msg("Check failed")
			}

			dir := a.settings.Paths.Metadata
			if dir == "" {
				return fmt.Errorf("--watch needs a metadata directory (--metadata)")
			}
			return watchMetadata(ctx, dir, func() {
				reg, problems, err := loadRegistry(ctx, dir)
				if err != nil {
					log.Error().Err(err).Msg("Failed to reload metadata")
					return
				}
				if _, err := runCheck(ctx, w, reg, problems, args, all); err != nil {
					log.Error().Err(err).Msg("Check failed")
				}
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "check every component")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-check when metadata files change")

	return cmd
}

// checkReport is the outcome of checking one component.
type checkReport struct {
	Component string     `json:"component"`
	Issues    []string   `json:"issues,omitempty"`
	Levels    [][]string `json:"levels,omitempty"`
	Canary    string     `json:"canary,omitempty"`
	Error     string     `json:"error,omitempty"`
}

func (r checkReport) ok() bool {
	return len(r.Issues) == 0 && r.Error == ""
}

// checkComponent runs the static order check, builds the dependency graph
// and, when both pass, resolves the declared defaults.
func checkComponent(ctx context.Context, c *engine.Component) checkReport {
	report := checkReport{Component: c.Name}
	decl := engine.DeclarationOf(c)

	for _, issue := range engine.CheckOrder(decl) {
		report.Issues = append(report.Issues, issue.String())
	}

	b := engine.NewDAGBuilder()
	if _, err := b.BuildGraph(decl); err != nil {
		report.Issues = append(report.Issues, err.Error())
	} else {
		report.Levels = b.GetLevels()
	}
	if len(report.Issues) > 0 {
		return report
	}

	cfg, err := engine.CheckCanary(ctx, c, nil)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Canary = cfg.String()
	return report
}

// runCheck checks the named components, or all of them, and writes the
// reports. It returns the number of failures, counting metadata files that
// did not load.
func runCheck(ctx context.Context, w io.Writer, reg *engine.Registry, problems config.ValidationErrors, names []string, all bool) (int, error) {
	var list []*engine.Component
	if all {
		list = reg.List()
	} else {
		for _, name := range names {
			c, err := reg.Get(name)
			if err != nil {
				return 0, err
			}
			list = append(list, c)
		}
	}

	reports := make([]checkReport, 0, len(list))
	failed := 0
	for _, c := range list {
		r := checkComponent(ctx, c)
		if !r.ok() {
			failed++
		}
		reports = append(reports, r)
	}
	if problems.HasErrors() {
		failed++
	}

	if jsonOutput {
		return failed, printJSON(w, struct {
			Components []checkReport          `json:"components"`
			Problems   config.ValidationErrors `json:"problems,omitempty"`
		}{reports, problems})
	}

	var sb strings.Builder
	for _, p := range problems {
		fmt.Fprintf(&sb, "%-5s %s\n", strings.ToUpper(p.Severity), p.Error())
	}
	for _, r := range reports {
		if r.ok() {
			fmt.Fprintf(&sb, "ok    %s (%d levels; defaults: %s)\n", r.Component, len(r.Levels), r.Canary)
			continue
		}
		fmt.Fprintf(&sb, "FAIL  %s\n", r.Component)
		for _, issue := range r.Issues {
			fmt.Fprintf(&sb, "      %s\n", issue)
		}
		if r.Error != "" {
			fmt.Fprintf(&sb, "      %s\n", r.Error)
		}
	}
	_, err := io.WriteString(w, sb.String())
	return failed, err
}

// watchMetadata calls run after every burst of changes under dir until ctx
// is cancelled.
func watchMetadata(ctx context.Context, dir string, run func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	log.Info().Str("dir", dir).Msg("Watching metadata for changes")

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						log.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch directory")
					}
					continue
				}
			}
			if !config.IsMetadataFile(event.Name) && filepath.Ext(event.Name) != ".star" {
				continue
			}
			log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Metadata changed")
			pending = time.After(recheckDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Watcher error")

		case <-pending:
			pending = nil
			run()
		}
	}
}
