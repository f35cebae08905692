package main

import (
	"fmt"

	"github.com/gantryci/gantry/internal/config"
	"github.com/spf13/cobra"
)

func gatherFlags(cmd *cobra.Command) (config.FlagValues, error) {
	flags := cmd.Flags()
	var values config.FlagValues

	if flags.Changed("provider") {
		v, err := flags.GetString("provider")
		if err != nil {
			return values, fmt.Errorf("parse --provider: %w", err)
		}
		values.Provider = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("workflow") {
		v, err := flags.GetStringArray("workflow")
		if err != nil {
			return values, fmt.Errorf("parse --workflow: %w", err)
		}
		values.Workflows = config.SliceFlag{Values: append([]string{}, v...)}
	}

	if flags.Changed("job") {
		v, err := flags.GetStringArray("job")
		if err != nil {
			return values, fmt.Errorf("parse --job: %w", err)
		}
		values.Jobs = config.SliceFlag{Values: append([]string{}, v...)}
	}

	if flags.Changed("only-step") {
		v, err := flags.GetStringArray("only-step")
		if err != nil {
			return values, fmt.Errorf("parse --only-step: %w", err)
		}
		values.OnlySteps = config.SliceFlag{Values: append([]string{}, v...)}
	}

	if flags.Changed("skip-step") {
		v, err := flags.GetStringArray("skip-step")
		if err != nil {
			return values, fmt.Errorf("parse --skip-step: %w", err)
		}
		values.SkipSteps = config.SliceFlag{Values: append([]string{}, v...)}
	}

	if flags.Changed("event") {
		v, err := flags.GetString("event")
		if err != nil {
			return values, fmt.Errorf("parse --event: %w", err)
		}
		values.Event = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("branch") {
		v, err := flags.GetString("branch")
		if err != nil {
			return values, fmt.Errorf("parse --branch: %w", err)
		}
		values.Branch = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("run-number") {
		v, err := flags.GetInt("run-number")
		if err != nil {
			return values, fmt.Errorf("parse --run-number: %w", err)
		}
		values.RunNumber = config.IntFlag{Value: v, Set: true}
	}

	if flags.Changed("parallelism") {
		v, err := flags.GetInt("parallelism")
		if err != nil {
			return values, fmt.Errorf("parse --parallelism: %w", err)
		}
		values.Parallelism = config.IntFlag{Value: v, Set: true}
	}

	if flags.Changed("artifact-dir") {
		v, err := flags.GetString("artifact-dir")
		if err != nil {
			return values, fmt.Errorf("parse --artifact-dir: %w", err)
		}
		values.ArtifactDir = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("format") {
		v, err := flags.GetString("format")
		if err != nil {
			return values, fmt.Errorf("parse --format: %w", err)
		}
		values.Format = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("dry-run") {
		v, err := flags.GetBool("dry-run")
		if err != nil {
			return values, fmt.Errorf("parse --dry-run: %w", err)
		}
		values.DryRun = config.BoolFlag{Value: v, Set: true}
	}

	if flags.Changed("verbose") {
		v, err := flags.GetBool("verbose")
		if err != nil {
			return values, fmt.Errorf("parse --verbose: %w", err)
		}
		values.Verbose = config.BoolFlag{Value: v, Set: true}
	}

	return values, nil
}

func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	root, err := workingRoot()
	if err != nil {
		return config.Config{}, "", err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return config.Config{}, "", err
	}

	flags, err := gatherFlags(cmd)
	if err != nil {
		return config.Config{}, "", err
	}
	config.ApplyFlags(&cfg, flags)

	return cfg, root, nil
}
