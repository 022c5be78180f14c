package cmd

import (
	"fmt"
	"io"

	"github.com/babelcloud/gbox/packages/avtool/internal/remux"
	"github.com/babelcloud/gbox/packages/avtool/internal/transcode"
	"github.com/babelcloud/gbox/packages/avtool/internal/util"
)

func printRemuxSummary(w io.Writer, res *remux.Result) {
	rows := make([]map[string]interface{}, 0, len(res.Outputs))
	for _, s := range res.Outputs {
		input, _ := res.Mapping.Input(s.Index)
		rows = append(rows, map[string]interface{}{
			"output":   s.Index,
			"input":    input,
			"kind":     kindColor(s.Kind),
			"codec":    s.Codec.Codec,
			"timebase": s.TimeBase.String(),
			"packets":  res.Stats.Written[s.Index],
		})
	}
	util.RenderTable(w, []util.TableColumn{
		{Header: "OUTPUT", Key: "output"},
		{Header: "INPUT", Key: "input"},
		{Header: "KIND", Key: "kind"},
		{Header: "CODEC", Key: "codec"},
		{Header: "TIMEBASE", Key: "timebase"},
		{Header: "PACKETS", Key: "packets"},
	}, rows)
	fmt.Fprintf(w, "\n%d packet(s) read, %d dropped\n", res.Stats.Read, res.Stats.Dropped)
}

func printTranscodeSummary(w io.Writer, res *transcode.Result) {
	rows := make([]map[string]interface{}, 0, len(res.Streams))
	for _, s := range res.Streams {
		rows = append(rows, map[string]interface{}{
			"index":    s.Index,
			"kind":     kindColor(s.Kind),
			"codec":    s.Codec,
			"timebase": s.TimeBase.String(),
			"frames":   s.Frames,
			"packets":  s.Packets,
			"seconds":  fmt.Sprintf("%.2f", s.Seconds),
		})
	}
	util.RenderTable(w, []util.TableColumn{
		{Header: "INDEX", Key: "index"},
		{Header: "KIND", Key: "kind"},
		{Header: "CODEC", Key: "codec"},
		{Header: "TIMEBASE", Key: "timebase"},
		{Header: "FRAMES", Key: "frames"},
		{Header: "PACKETS", Key: "packets"},
		{Header: "SECONDS", Key: "seconds"},
	}, rows)
	fmt.Fprintf(w, "\n%d encoding step(s)\n", res.Steps)
}
