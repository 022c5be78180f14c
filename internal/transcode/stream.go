package transcode

import (
	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/timebase"
)

// State is the encoder phase of an output stream.
type State int

const (
	// Active streams synthesize and submit frames.
	Active State = iota
	// Draining streams have sent the end marker and collect what is left.
	Draining
	// Done streams have been fully drained.
	Done
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Draining:
		return "draining"
	case Done:
		return "done"
	}
	return "invalid"
}

// Synthesizer produces the next raw frame of a stream.
type Synthesizer interface {
	// Next returns the frame to encode, or nil once the stream is exhausted.
	Next(st *OutputStream) (media.Frame, error)
}

// OutputStream is the per-stream state owned by the scheduler.
type OutputStream struct {
	Stream  media.Stream
	Encoder media.Encoder

	// NextPTS is the timestamp of the next frame in the encoder timebase.
	NextPTS int64
	// SamplesCount is the number of audio samples produced so far.
	SamplesCount int64

	// Frame is handed to the encoder. TmpFrame holds synthesized data when
	// it needs converting first.
	Frame    media.Frame
	TmpFrame media.Frame

	Resampler media.Resampler
	Scaler    media.Scaler

	Synth  Synthesizer
	Packet media.Packet

	state   State
	frames  int
	packets int
}

// State returns the encoder phase.
func (st *OutputStream) State() State {
	return st.state
}

// Kind returns the content kind of the stream.
func (st *OutputStream) Kind() media.MediaType {
	return st.Encoder.Kind()
}

// TimeBase returns the timebase of NextPTS.
func (st *OutputStream) TimeBase() timebase.Rational {
	return st.Encoder.TimeBase()
}

// Frames returns how many frames were submitted to the encoder.
func (st *OutputStream) Frames() int {
	return st.frames
}

// Packets returns how many packets were written for the stream.
func (st *OutputStream) Packets() int {
	return st.packets
}

// Seconds returns the stream clock position.
func (st *OutputStream) Seconds() float64 {
	return timebase.Seconds(st.NextPTS, st.TimeBase())
}

// Close releases the encoder, frames, adapters and packet.
func (st *OutputStream) Close() {
	if st.Encoder != nil {
		st.Encoder.Close()
	}
	if st.Frame != nil {
		st.Frame.Free()
	}
	if st.TmpFrame != nil {
		st.TmpFrame.Free()
	}
	if st.Resampler != nil {
		st.Resampler.Close()
	}
	if st.Scaler != nil {
		st.Scaler.Close()
	}
	if st.Packet != nil {
		st.Packet.Free()
	}
}
