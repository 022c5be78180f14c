package remux

import (
	"context"
	"io"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/timebase"
)

// PacketWriter is the interleaved writer side of an output container whose
// header has been written.
type PacketWriter interface {
	Streams() []media.Stream
	WritePacket(p media.Packet) error
}

// Stats counts what the packet loop did.
type Stats struct {
	Read    int
	Dropped int
	// Written is keyed by output stream index.
	Written map[int]int
}

// CopyPackets reads every packet of in and forwards the mapped ones to w.
// Packets of unmapped streams are released and skipped. Mapped packets get
// the output index, timestamps rescaled from the input stream's timebase to
// the output stream's, and no byte position. End of input is the only
// successful exit; the first read or write failure aborts the loop.
func CopyPackets(ctx context.Context, in media.InputContainer, w PacketWriter, m *Mapping, pkt media.Packet, logger *slog.Logger) (*Stats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	inStreams := in.Streams()
	outStreams := w.Streams()
	stats := &Stats{Written: make(map[int]int, m.Len())}

	for {
		if err := ctx.Err(); err != nil {
			return stats, errors.Wrap(err, "remux interrupted")
		}

		err := in.ReadPacket(pkt)
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, media.WrapError(media.OpenError, err, "reading packet %d from input", stats.Read)
		}
		stats.Read++

		inIdx := pkt.StreamIndex()
		outIdx, ok := m.Output(inIdx)
		if !ok || inIdx >= len(inStreams) || outIdx >= len(outStreams) {
			stats.Dropped++
			logger.Debug("Dropping packet of unmapped stream", "input", inIdx, "pts", pkt.PTS())
			pkt.Unref()
			continue
		}

		from := inStreams[inIdx].TimeBase()
		to := outStreams[outIdx].TimeBase()
		pkt.SetStreamIndex(outIdx)
		pkt.SetPTS(timebase.Rescale(pkt.PTS(), from, to))
		pkt.SetDTS(timebase.Rescale(pkt.DTS(), from, to))
		if d := pkt.Duration(); d > 0 {
			pkt.SetDuration(timebase.Rescale(d, from, to))
		}
		pkt.SetPos(-1)

		if err := w.WritePacket(pkt); err != nil {
			return stats, err
		}
		stats.Written[outIdx]++
	}
}
