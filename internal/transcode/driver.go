package transcode

import (
	"io"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/timebase"
)

// ErrStreamDone is returned when a finished stream is stepped again.
var ErrStreamDone = errors.New("stream already drained")

// PacketWriter accepts encoded packets whose timestamps are in the output
// stream's timebase.
type PacketWriter interface {
	WritePacket(p media.Packet) error
}

// Driver runs one synthesis-encode cycle at a time.
type Driver struct {
	w      PacketWriter
	logger *slog.Logger
}

// NewDriver returns a driver writing to w.
func NewDriver(w PacketWriter, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{w: w, logger: logger}
}

// Step advances st once. An active stream gets its next frame, or the end
// marker when the synthesizer is exhausted. Afterwards every packet the
// encoder is willing to emit is written.
func (d *Driver) Step(st *OutputStream) error {
	switch st.state {
	case Done:
		return errors.Wrapf(ErrStreamDone, "stream #%d", st.Stream.Index())
	case Active:
		frame, err := st.Synth.Next(st)
		if err != nil {
			return err
		}
		if frame == nil {
			st.state = Draining
			d.logger.Debug("Stream exhausted, flushing encoder", "stream", st.Stream.Index(), "frames", st.frames)
			if err := st.Encoder.SendFrame(nil); err != nil {
				return media.WrapError(media.EncodeError, err, "flushing %s encoder", st.Encoder.CodecName())
			}
		} else {
			if err := st.Encoder.SendFrame(frame); err != nil {
				return media.WrapError(media.EncodeError, err, "sending frame %d to %s encoder", frame.PTS(), st.Encoder.CodecName())
			}
			st.frames++
		}
	case Draining:
		// The end marker is sent once; later steps only collect packets.
	}
	return d.drain(st)
}

func (d *Driver) drain(st *OutputStream) error {
	for {
		err := st.Encoder.ReceivePacket(st.Packet)
		switch {
		case errors.Is(err, media.ErrAgain):
			return nil
		case errors.Is(err, io.EOF):
			st.state = Done
			d.logger.Debug("Stream drained", "stream", st.Stream.Index(), "packets", st.packets)
			return nil
		case err != nil:
			return media.WrapError(media.EncodeError, err, "receiving packet from %s encoder", st.Encoder.CodecName())
		}

		from, to := st.Encoder.TimeBase(), st.Stream.TimeBase()
		st.Packet.SetPTS(timebase.Rescale(st.Packet.PTS(), from, to))
		st.Packet.SetDTS(timebase.Rescale(st.Packet.DTS(), from, to))
		if dur := st.Packet.Duration(); dur > 0 {
			st.Packet.SetDuration(timebase.Rescale(dur, from, to))
		}
		st.Packet.SetStreamIndex(st.Stream.Index())

		if err := d.w.WritePacket(st.Packet); err != nil {
			return err
		}
		st.packets++
	}
}
