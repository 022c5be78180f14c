package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/babelcloud/gbox/packages/avtool/config"
	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/remux"
	"github.com/babelcloud/gbox/packages/avtool/internal/util"
)

type RemuxOptions struct {
	Format string
	Kinds  []string
	Muxer  string
}

func NewRemuxCommand(root *rootOptions) *cobra.Command {
	opts := &RemuxOptions{}

	cmd := &cobra.Command{
		Use:   "remux <input> <output>",
		Short: "Copy streams into another container without re-encoding",
		Long: `Copy the audio, video and subtitle streams of input into a new container.
Packets are not decoded; only their timestamps are converted to the output
streams' timebases. Streams of other kinds are left out.`,
		Example: `  avtool remux in.mp4 out.mkv
  avtool remux in.mkv out.mp4 --kinds video,audio
  avtool remux in.ts out.webm --muxer native`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("kinds") {
				config.Set("remux.kinds", opts.Kinds)
			}
			return runRemux(cmd, root, opts, args[0], args[1])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Format, "format", "f", "", "Force the output container format")
	flags.StringSliceVarP(&opts.Kinds, "kinds", "k", nil, "Stream kinds to keep (audio, video, subtitle, data, attachment)")
	flags.StringVar(&opts.Muxer, "muxer", "", "Container writer (libav or native)")

	cmd.RegisterFlagCompletionFunc("kinds", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"audio", "video", "subtitle", "data", "attachment"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runRemux(cmd *cobra.Command, root *rootOptions, opts *RemuxOptions, input, output string) error {
	kinds, err := config.RemuxKinds()
	if err != nil {
		return err
	}
	eng, err := root.openEngine(opts.Muxer)
	if err != nil {
		return err
	}

	session := uuid.NewString()
	logger := util.GetLogger().With("component", "remux")
	logger.Debug("Starting remux", "session", session, "input", input, "output", output, "kinds", kinds.String(), "muxer", eng.Muxer())

	stderr := cmd.ErrOrStderr()
	interactive := !root.Verbose && stderr == os.Stderr && term.IsTerminal(int(os.Stderr.Fd()))
	sp := util.NewSpinner(stderr, interactive, fmt.Sprintf("Remuxing %s to %s...", input, output))

	res, err := remux.Remux(cmd.Context(), eng, input, output,
		remux.WithKinds(kinds),
		remux.WithFormat(opts.Format),
		remux.WithLogger(logger),
		remux.WithSession(session),
	)
	if err != nil {
		sp.Fail(fmt.Sprintf("Failed to remux %s", input))
		return err
	}
	sp.Success(fmt.Sprintf("Remuxed %s (%s) to %s (%s)", input, color.CyanString(res.InputFormat), output, color.CyanString(res.OutputFormat)))

	printRemuxSummary(cmd.OutOrStdout(), res)
	return nil
}

// kindColor tints a media kind for tables.
func kindColor(k media.MediaType) string {
	switch k {
	case media.MediaTypeVideo:
		return color.New(color.FgCyan).Sprint(k)
	case media.MediaTypeAudio:
		return color.New(color.FgGreen).Sprint(k)
	case media.MediaTypeSubtitle:
		return color.New(color.FgYellow).Sprint(k)
	}
	return color.New(color.Faint).Sprint(k)
}
