package media

import (
	"github.com/babelcloud/gbox/packages/avtool/internal/timebase"
)

// CodecInfo is an engine-neutral description of a stream's codec.
type CodecInfo struct {
	Kind         MediaType
	Codec        string
	BitRate      int64
	ExtraData    []byte
	Width        int
	Height       int
	PixelFormat  PixelFormat
	SampleRate   int
	Channels     int
	SampleFormat SampleFormat
	FrameSize    int
}

// CodecParameters is the engine-owned codec description of a stream.
type CodecParameters interface {
	Kind() MediaType
	Info() CodecInfo
	CodecTag() uint32
	SetCodecTag(tag uint32)
	// CopyTo duplicates every parameter into dst.
	CopyTo(dst CodecParameters) error
}

// InfoSetter is implemented by parameters that can be filled from a
// neutral description, which is how parameters cross engine boundaries.
type InfoSetter interface {
	SetInfo(info CodecInfo) error
}

// Stream is a stream descriptor inside a container.
type Stream interface {
	Index() int
	Kind() MediaType
	TimeBase() timebase.Rational
	SetTimeBase(tb timebase.Rational)
	CodecParameters() CodecParameters
}

// Packet is a compressed unit of one stream. Timestamps are in the owning
// stream's timebase.
type Packet interface {
	StreamIndex() int
	SetStreamIndex(i int)
	PTS() int64
	SetPTS(ts int64)
	DTS() int64
	SetDTS(ts int64)
	Duration() int64
	SetDuration(d int64)
	Pos() int64
	SetPos(pos int64)
	IsKey() bool
	Data() []byte
	// Unref drops the payload so the packet can be reused.
	Unref()
	Free()
}

// InputContainer is an opened and probed source.
type InputContainer interface {
	FormatName() string
	Streams() []Stream
	// ReadPacket fills p with the next packet. It returns io.EOF once the
	// input is exhausted.
	ReadPacket(p Packet) error
	Close() error
}

// OutputContainer is a destination being described and written.
type OutputContainer interface {
	FormatName() string
	// NeedsFile is false for formats that manage their own I/O.
	NeedsFile() bool
	// WantsGlobalHeader reports whether encoders must emit global headers.
	WantsGlobalHeader() bool
	NewStream() (Stream, error)
	Streams() []Stream
	OpenIO(target string) error
	WriteHeader(options map[string]string) error
	// WriteInterleaved takes ownership of the packet's payload.
	WriteInterleaved(p Packet) error
	WriteTrailer() error
	Close() error
}

// EncoderCapabilities lists what an encoder accepts. Empty slices mean the
// encoder did not declare a restriction.
type EncoderCapabilities struct {
	Name          string
	Kind          MediaType
	SampleFormats []SampleFormat
	SampleRates   []int
	PixelFormats  []PixelFormat
	// VariableFrameSize reports an audio encoder that accepts frames of
	// any sample count.
	VariableFrameSize bool
}

// EncoderConfig holds the settings an encoder is opened with.
type EncoderConfig struct {
	Codec        string
	Kind         MediaType
	BitRate      int64
	TimeBase     timebase.Rational
	SampleFormat SampleFormat
	SampleRate   int
	Channels     int
	Width        int
	Height       int
	PixelFormat  PixelFormat
	FrameRate    int
	GOPSize      int
	GlobalHeader bool
	Options      map[string]string
}

// Encoder is an opened codec context.
type Encoder interface {
	Kind() MediaType
	CodecName() string
	TimeBase() timebase.Rational
	// FrameSize is the number of samples per audio frame, 0 when the
	// encoder accepts any size.
	FrameSize() int
	AudioFormat() AudioFormat
	VideoFormat() VideoFormat
	// SendFrame submits a frame. A nil frame is the end-of-stream marker.
	SendFrame(f Frame) error
	// ReceivePacket returns ErrAgain when more input is needed and io.EOF
	// once the encoder is fully drained.
	ReceivePacket(p Packet) error
	CopyParametersTo(dst CodecParameters) error
	Close() error
}

// Frame is a reusable raw buffer.
type Frame interface {
	MakeWritable() error
	// SetBytes copies packed plane data into the frame. Audio is
	// interleaved or planar per the frame's sample format; video planes are
	// laid out back to back with no padding.
	SetBytes(b []byte) error
	PTS() int64
	SetPTS(ts int64)
	NbSamples() int
	Free()
}

// Resampler converts audio between sample formats.
type Resampler interface {
	// Delay returns the number of buffered samples expressed in 1/base units.
	Delay(base int) int64
	// Convert writes src into dst and returns the number of samples written.
	Convert(src, dst Frame) (int, error)
	Close()
}

// Scaler converts pictures between pixel formats.
type Scaler interface {
	Scale(src, dst Frame) error
	Close()
}

// ContainerEngine opens containers and allocates packets.
type ContainerEngine interface {
	OpenInput(url string) (InputContainer, error)
	// CreateOutput allocates an output container. An empty format lets the
	// engine guess from url.
	CreateOutput(url, format string) (OutputContainer, error)
	AllocPacket() Packet
}

// CodecEngine opens encoders and the buffers and adapters they need.
type CodecEngine interface {
	FindEncoder(kind MediaType, name string) (*EncoderCapabilities, error)
	OpenEncoder(cfg EncoderConfig) (Encoder, error)
	AllocAudioFrame(format AudioFormat, nbSamples int) (Frame, error)
	AllocVideoFrame(format VideoFormat) (Frame, error)
	NewResampler(in, out AudioFormat) (Resampler, error)
	NewScaler(in, out VideoFormat) (Scaler, error)
}

// Engine is the complete external media engine.
type Engine interface {
	ContainerEngine
	CodecEngine
}

// StreamInfo is a copy of a stream descriptor that outlives its container.
type StreamInfo struct {
	Index    int
	Kind     MediaType
	TimeBase timebase.Rational
	Codec    CodecInfo
}

// Describe snapshots streams.
func Describe(streams []Stream) []StreamInfo {
	out := make([]StreamInfo, len(streams))
	for i, s := range streams {
		out[i] = StreamInfo{
			Index:    s.Index(),
			Kind:     s.Kind(),
			TimeBase: s.TimeBase(),
			Codec:    s.CodecParameters().Info(),
		}
	}
	return out
}
