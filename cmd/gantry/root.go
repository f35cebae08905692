package main

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gantry",
		Short:         "Gantry runs build-test-release pipelines locally",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	persistent := cmd.PersistentFlags()
	persistent.String("provider", "", "workflow provider to use (auto|github)")
	persistent.StringArray("workflow", nil, "workflow file to include")
	persistent.StringArray("job", nil, "job filter (repeatable)")
	persistent.StringArray("only-step", nil, "include only matching steps")
	persistent.StringArray("skip-step", nil, "exclude matching steps")
	persistent.String("event", "", "event kind to simulate (push|pull_request)")
	persistent.String("branch", "", "branch the event targets")
	persistent.Int("run-number", 0, "run number used for tags and artifacts (0 = auto)")
	persistent.Int("parallelism", 0, "max contexts running at once (0 = CPU count)")
	persistent.String("artifact-dir", "", "directory backing the artifact store")
	persistent.Bool("dry-run", false, "print commands without executing them")
	persistent.BoolP("verbose", "v", false, "stream command output and debug logs")
	persistent.String("format", "pretty", "output format (pretty|json)")

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newRunCmd())

	return cmd
}

func newLogger(out io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: out}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
