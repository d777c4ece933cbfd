package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wbrown/dadacore/markov"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Count int
	Word  string
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate lines from the model",
		Long: `Generate lines at random, or around a word with --word.

Example:
  dada generate -n 5
  dada generate --word cat`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "number of lines")
	cmd.Flags().StringVarP(&opts.Word, "word", "w", "", "generate lines containing this word")

	return cmd
}

func runGenerate(opts *GenerateOptions, cmd *cobra.Command) (err error) {
	if opts.Count < 1 {
		return NewExitError(ExitCommandError, "--count must be at least 1")
	}
	setupLogging(opts.RootOptions, cmd)
	cfg, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	b, err := openBrain(commandContext(cmd), opts.RootOptions, cmd, cfg)
	if err != nil {
		return err
	}
	defer closeBrain(b, &err)

	word := strings.TrimSpace(opts.Word)
	for i := 0; i < opts.Count; i++ {
		var line string
		if word != "" {
			line, err = b.GenerateFromWord(word)
		} else {
			line, err = b.GenerateRandom()
		}
		if err != nil {
			return generateError(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}

// NewReplyCommand creates the reply command.
func NewReplyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reply <phrase>...",
		Short: "Reply to a phrase using one of its words",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			setupLogging(rootOpts, cmd)
			cfg, err := loadConfig(rootOpts, cmd)
			if err != nil {
				return err
			}
			b, err := openBrain(commandContext(cmd), rootOpts, cmd, cfg)
			if err != nil {
				return err
			}
			defer closeBrain(b, &err)

			line, err := b.Reply(strings.Join(args, " "))
			if err != nil {
				return generateError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
			return nil
		},
	}
}

func generateError(err error) error {
	switch {
	case errors.Is(err, markov.ErrModelIsEmpty):
		return WrapExitError(ExitFailure, "nothing learned yet", err)
	case errors.Is(err, markov.ErrStartWord):
		return WrapExitError(ExitFailure, "cannot generate from that word", err)
	default:
		return WrapExitError(ExitFailure, "generation failed", err)
	}
}
