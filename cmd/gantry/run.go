package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gantryci/gantry/internal/artifact"
	"github.com/gantryci/gantry/internal/config"
	"github.com/gantryci/gantry/internal/engine"
	"github.com/gantryci/gantry/internal/output"
	"github.com/gantryci/gantry/internal/release"
	"github.com/gantryci/gantry/internal/runner"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute pipeline contexts for a simulated event",
		RunE:  runExecute,
	}
}

func runExecute(cmd *cobra.Command, args []string) error {
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

	storeRoot := cfg.ArtifactDir
	if !filepath.IsAbs(storeRoot) {
		storeRoot = filepath.Join(root, storeRoot)
	}

	runNumber := cfg.RunNumber
	if runNumber <= 0 {
		runNumber, err = artifact.NextRunNumber(storeRoot)
		if err != nil {
			return err
		}
	}

	store, err := artifact.NewStore(storeRoot, "")
	if err != nil {
		return err
	}
	log.Debug().Str("run_id", store.RunID()).Int("run_number", runNumber).Msg("starting run")

	host := &release.GitHost{
		Repo:      root,
		RecordDir: filepath.Join(storeRoot, "releases"),
		Remote:    os.Getenv("GANTRY_REMOTE"),
		Token:     os.Getenv("GANTRY_TOKEN"),
	}
	actions := &runner.Actions{
		Store:     store,
		Publisher: release.NewPublisher(host),
		RunNumber: runNumber,
		Log:       log,
	}

	execRunner := runner.New(runner.Options{
		Root:      root,
		Stdout:    cmd.OutOrStdout(),
		Stderr:    cmd.ErrOrStderr(),
		Verbose:   cfg.Verbose,
		DryRun:    cfg.DryRun,
		TailLines: 20,
		Log:       log,
		Actions:   actions,
	})

	eng := engine.New(engine.Options{
		Runner:      execRunner,
		Actions:     actions,
		Event:       ev,
		RunNumber:   runNumber,
		Parallelism: cfg.Parallelism,
		Log:         log,
	})

	result, err := eng.Run(cmd.Context(), filtered.workflows)
	if err != nil {
		return err
	}

	warnings := collapseWarnings(filtered.warnings)

	switch strings.ToLower(cfg.Format) {
	case config.FormatPretty:
		renderer := output.NewPretty(cmd.OutOrStdout())
		if err := renderer.RenderResults(result.Contexts, result.Summary); err != nil {
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
			RunNumber: runNumber,
			Workflows: filtered.workflows,
			Contexts:  result.Contexts,
			Summary:   result.Summary,
			Warnings:  warnings,
		}
		renderer := output.NewJSON(cmd.OutOrStdout())
		if err := renderer.Render(jsonReport); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format %q", cfg.Format)
	}

	if result.Summary.ExitCode != 0 {
		return fmt.Errorf("one or more contexts failed")
	}

	return nil
}
