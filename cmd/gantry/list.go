package main

import (
	"fmt"
	"strings"

	"github.com/gantryci/gantry/internal/config"
	"github.com/gantryci/gantry/internal/engine"
	"github.com/gantryci/gantry/internal/output"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show jobs, expanded contexts, and trigger verdicts without executing",
		RunE:  listExecute,
	}
}

func listExecute(cmd *cobra.Command, args []string) error {
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log := newLogger(cmd.ErrOrStderr(), cfg.Verbose)

	data, err := loadPipeline(root, cfg)
	if err != nil {
		return err
	}

	filtered, err := applyFilters(data, cfg)
	if err != nil {
		return err
	}

	if len(filtered.workflows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No matching jobs or steps")
		return nil
	}

	ev, err := parseEvent(cfg)
	if err != nil {
		return err
	}

	eng := engine.New(engine.Options{
		Event:     ev,
		RunNumber: cfg.RunNumber,
		Log:       log,
	})
	contexts, err := eng.Plan(filtered.workflows)
	if err != nil {
		return err
	}

	warnings := collapseWarnings(filtered.warnings)

	switch strings.ToLower(cfg.Format) {
	case config.FormatPretty:
		renderer := output.NewPretty(cmd.OutOrStdout())
		if err := renderer.RenderList(filtered.workflows, contexts); err != nil {
			return err
		}
		for _, msg := range warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", msg)
		}
	case config.FormatJSON:
		jsonReport := output.Report{
			Provider:  filtered.provider,
			Event:     string(ev.Kind),
			Branch:    ev.Branch,
			RunNumber: cfg.RunNumber,
			Workflows: filtered.workflows,
			Contexts:  contexts,
		}
		renderer := output.NewJSON(cmd.OutOrStdout())
		if err := renderer.Render(jsonReport); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format %q", cfg.Format)
	}

	return nil
}
