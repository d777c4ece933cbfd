package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wbrown/dadacore/markov/brain"
	"github.com/wbrown/dadacore/markov/report"
)

// NewLearnCommand creates the learn command.
func NewLearnCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "learn <file>...",
		Short: "Learn every line of one or more text files",
		Long: `Learn every line of the given files into the model, then sync it to
the store. Lines too short for the model order are skipped. Use "-" to
read standard input.

Example:
  dada learn chat.log
  cat corpus.txt | dada --order 3 learn -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLearn(rootOpts, cmd, args)
		},
	}
}

func runLearn(opts *RootOptions, cmd *cobra.Command, files []string) (err error) {
	setupLogging(opts, cmd)
	cfg, err := loadConfig(opts, cmd)
	if err != nil {
		return err
	}
	b, err := openBrain(commandContext(cmd), opts, cmd, cfg)
	if err != nil {
		return err
	}
	defer closeBrain(b, &err)

	start := time.Now()
	var total brain.LearnResult
	for _, name := range files {
		res, err := learnFile(b, name, cmd.InOrStdin())
		total.Lines += res.Lines
		total.Learned += res.Learned
		total.Skipped += res.Skipped
		if err != nil {
			return err
		}
		slog.Debug("learned file", "file", name, "lines", res.Lines, "learned", res.Learned)
	}

	if err := b.Sync(); err != nil {
		return WrapExitError(ExitFailure, "failed to sync model", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), report.NewFormatter().FormatLearnResult(total, time.Since(start)))
	return nil
}

func learnFile(b *brain.Brain, name string, stdin io.Reader) (brain.LearnResult, error) {
	var r io.Reader = stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return brain.LearnResult{}, WrapExitError(ExitCommandError, "failed to open input", err)
		}
		defer f.Close()
		r = f
	}
	res, err := b.LearnLines(r)
	if err != nil {
		return res, WrapExitError(ExitFailure, fmt.Sprintf("failed to learn %s", name), err)
	}
	return res, nil
}
