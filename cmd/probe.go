package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/babelcloud/gbox/packages/avtool/config"
	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/remux"
	"github.com/babelcloud/gbox/packages/avtool/internal/util"
)

type ProbeOptions struct {
	Kinds []string
}

func NewProbeCommand(root *rootOptions) *cobra.Command {
	opts := &ProbeOptions{}

	cmd := &cobra.Command{
		Use:   "probe <input>",
		Short: "List the streams of a file and how remux would map them",
		Example: `  avtool probe in.mp4
  avtool probe in.mkv --kinds video`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("kinds") {
				config.Set("remux.kinds", opts.Kinds)
			}
			return runProbe(cmd, root, args[0])
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Kinds, "kinds", "k", nil, "Stream kinds remux would keep")

	return cmd
}

func runProbe(cmd *cobra.Command, root *rootOptions, input string) error {
	kinds, err := config.RemuxKinds()
	if err != nil {
		return err
	}
	eng, err := root.openEngine("")
	if err != nil {
		return err
	}
	in, err := eng.OpenInput(input)
	if err != nil {
		return media.WrapError(media.OpenError, err, "open input %s", input)
	}
	defer in.Close()

	streams := media.Describe(in.Streams())
	outputs := map[int]int{}
	for _, e := range remux.Plan(streams, kinds) {
		outputs[e.Input] = e.Output
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Input %s, format %s, %d stream(s)\n\n", input, color.CyanString(in.FormatName()), len(streams))

	rows := make([]map[string]interface{}, 0, len(streams))
	for _, s := range streams {
		target := color.New(color.Faint).Sprint("dropped")
		if o, ok := outputs[s.Index]; ok {
			target = fmt.Sprintf("#%d", o)
		}
		rows = append(rows, map[string]interface{}{
			"index":    s.Index,
			"kind":     kindColor(s.Kind),
			"codec":    s.Codec.Codec,
			"timebase": s.TimeBase.String(),
			"details":  streamDetails(s.Codec),
			"remux":    target,
		})
	}
	util.RenderTable(out, []util.TableColumn{
		{Header: "INDEX", Key: "index"},
		{Header: "KIND", Key: "kind"},
		{Header: "CODEC", Key: "codec"},
		{Header: "TIMEBASE", Key: "timebase"},
		{Header: "DETAILS", Key: "details"},
		{Header: "REMUX", Key: "remux"},
	}, rows)
	return nil
}

// streamDetails summarizes the kind specific codec parameters.
func streamDetails(c media.CodecInfo) string {
	switch c.Kind {
	case media.MediaTypeVideo:
		if c.PixelFormat != "" {
			return fmt.Sprintf("%dx%d %s", c.Width, c.Height, c.PixelFormat)
		}
		return fmt.Sprintf("%dx%d", c.Width, c.Height)
	case media.MediaTypeAudio:
		return fmt.Sprintf("%d Hz, %d ch", c.SampleRate, c.Channels)
	}
	return ""
}
