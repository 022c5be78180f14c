package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/babelcloud/gbox/packages/avtool/config"
	"github.com/babelcloud/gbox/packages/avtool/internal/engine"
	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/util"
)

// EngineFactory creates the base media engine once logging is configured.
type EngineFactory func() media.Engine

type rootOptions struct {
	Verbose   bool
	newEngine EngineFactory
}

// openEngine composes the base engine with the configured writer selection.
// A non-empty muxer overrides output.muxer.
func (o *rootOptions) openEngine(muxer string) (*engine.Engine, error) {
	if muxer == "" {
		muxer = config.GetMuxer()
	}
	m, err := engine.ParseMuxer(muxer)
	if err != nil {
		return nil, err
	}
	return engine.New(o.newEngine(), m), nil
}

func newRootCommand(newEngine EngineFactory) *cobra.Command {
	opts := &rootOptions{newEngine: newEngine}

	rootCmd := &cobra.Command{
		Use:   "avtool",
		Short: "Remux and synthesize media files",
		Long: `avtool copies streams between containers without re-encoding and generates
synthetic audio/video test files with any encoder and container the media
engine supports.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			util.InitLogger(opts.Verbose)
			if err := config.LoadError(); err != nil {
				return err
			}
			if f := config.ConfigFile(); f != "" {
				util.GetLogger().Debug("Loaded config", "file", f)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(NewTranscodeCommand(opts))
	rootCmd.AddCommand(NewRemuxCommand(opts))
	rootCmd.AddCommand(NewProbeCommand(opts))
	rootCmd.AddCommand(NewVersionCommand())

	// Enable custom help output ordering
	setupHelpCommand(rootCmd)
	return rootCmd
}

// Execute runs the command line. Interrupts cancel the running session,
// which still releases everything it opened.
func Execute(newEngine EngineFactory) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand(newEngine)
	rootCmd.SetArgs(normalizeArgs(os.Args[1:]))
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		printDiagnostic(rootCmd.ErrOrStderr(), err)
	}
	return err
}

// normalizeArgs accepts the single dash writer options -flags and -fflags.
// Everything after "--" is left alone.
func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i, arg := range args {
		if arg == "--" {
			return append(out, args[i:]...)
		}
		for _, name := range writerOptionFlags {
			if arg == "-"+name || strings.HasPrefix(arg, "-"+name+"=") {
				arg = "-" + arg
				break
			}
		}
		out = append(out, arg)
	}
	return out
}

// printDiagnostic reports err on one line. Classified errors already name
// their failure class and operation.
func printDiagnostic(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintf(w, "%s interrupted\n", red.Sprint("Error:"))
		return
	}
	fmt.Fprintf(w, "%s %s\n", red.Sprint("Error:"), err)
}

// exactArgs is cobra.ExactArgs that also prints the usage.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			cmd.Usage()
			return errors.Errorf("%s requires %d argument(s), received %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}
