package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/babelcloud/gbox/packages/avtool/config"
	"github.com/babelcloud/gbox/packages/avtool/internal/transcode"
	"github.com/babelcloud/gbox/packages/avtool/internal/util"
)

// writerOptionFlags are passed through to the container writer.
var writerOptionFlags = []string{"flags", "fflags"}

type TranscodeOptions struct {
	Flags      string
	FFlags     string
	Format     string
	Duration   time.Duration
	FPS        int
	VideoCodec string
	AudioCodec string
	Muxer      string
}

func NewTranscodeCommand(root *rootOptions) *cobra.Command {
	opts := &TranscodeOptions{}

	cmd := &cobra.Command{
		Use:   "transcode <output>",
		Short: "Encode a synthetic audio/video stream into a file",
		Long: `Encode a generated test picture and a sine tone into a new file. The
container is guessed from the output name and falls back to mpeg. Encoders
default to the container's usual codecs.`,
		Example: `  avtool transcode out.mpg
  avtool transcode out.mp4 --duration 5s --fps 30
  avtool transcode out.mkv -flags +global_header
  avtool transcode out.webm --muxer native`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("duration") {
				config.Set("transcode.duration", opts.Duration)
			}
			if flags.Changed("fps") {
				config.Set("transcode.frame_rate", opts.FPS)
			}
			if flags.Changed("video-codec") {
				config.Set("transcode.video.codec", opts.VideoCodec)
			}
			if flags.Changed("audio-codec") {
				config.Set("transcode.audio.codec", opts.AudioCodec)
			}
			return runTranscode(cmd, root, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Flags, "flags", "", "Writer flags, passed to the container as \"flags\"")
	flags.StringVar(&opts.FFlags, "fflags", "", "Writer format flags, passed to the container as \"fflags\"")
	flags.StringVarP(&opts.Format, "format", "f", "", "Force the output container format")
	flags.DurationVar(&opts.Duration, "duration", 10*time.Second, "Length of the generated streams")
	flags.IntVar(&opts.FPS, "fps", 25, "Video frame rate")
	flags.StringVar(&opts.VideoCodec, "video-codec", "", "Video encoder, \"none\" to disable video")
	flags.StringVar(&opts.AudioCodec, "audio-codec", "", "Audio encoder, \"none\" to disable audio")
	flags.StringVar(&opts.Muxer, "muxer", "", "Container writer (libav or native)")

	cmd.RegisterFlagCompletionFunc("muxer", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"libav", "native"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// writerOptions collects the writer flags that were given.
func (o *TranscodeOptions) writerOptions(cmd *cobra.Command) map[string]string {
	values := map[string]string{"flags": o.Flags, "fflags": o.FFlags}
	out := map[string]string{}
	for _, name := range writerOptionFlags {
		if cmd.Flags().Changed(name) {
			out[name] = values[name]
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func runTranscode(cmd *cobra.Command, root *rootOptions, opts *TranscodeOptions, output string) error {
	s, err := config.TranscodeSettings()
	if err != nil {
		return err
	}
	s.Format = opts.Format
	s.WriterOptions = opts.writerOptions(cmd)

	eng, err := root.openEngine(opts.Muxer)
	if err != nil {
		return err
	}

	session := uuid.NewString()
	logger := util.GetLogger().With("component", "transcode")
	logger.Debug("Starting transcode", "session", session, "output", output, "duration", s.Duration, "fps", s.FrameRate, "muxer", eng.Muxer())

	stderr := cmd.ErrOrStderr()
	interactive := !root.Verbose && stderr == os.Stderr && term.IsTerminal(int(os.Stderr.Fd()))
	sp := util.NewSpinner(stderr, interactive, fmt.Sprintf("Encoding %s...", output))

	res, err := transcode.Transcode(cmd.Context(), eng, output, s,
		transcode.WithLogger(logger),
		transcode.WithSession(session),
		transcode.WithProgressFunc(func(p transcode.Progress) {
			sp.Update(fmt.Sprintf("Encoding %s... %s %.1fs/%.0fs", output, p.Kind, p.Seconds, p.Total.Seconds()))
		}),
	)
	if err != nil {
		sp.Fail(fmt.Sprintf("Failed to encode %s", output))
		return err
	}
	sp.Success(fmt.Sprintf("Encoded %s (%s)", output, color.CyanString(res.Format)))

	printTranscodeSummary(cmd.OutOrStdout(), res)
	return nil
}
