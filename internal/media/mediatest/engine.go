package mediatest

import (
	"io"

	"github.com/pkg/errors"

	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/timebase"
)

// Engine is a media.Engine over in-memory containers and fake codecs.
type Engine struct {
	Inputs map[string]*Input
	// NewOutput builds the container returned by CreateOutput. The default
	// accepts every format except "bad".
	NewOutput func(url, format string) (*Output, error)
	// Capabilities restricts FindEncoder to the listed codecs when set.
	Capabilities map[string]*media.EncoderCapabilities
	// AudioFrameSize is reported by audio encoders. With the default
	// capabilities, 0 also marks them as variable frame size.
	AudioFrameSize int
	// EncoderDelay is how many frames an encoder holds before emitting.
	EncoderDelay int
	// ResamplerDelay is reported by every resampler.
	ResamplerDelay int64
	// SendErr makes encoders reject frames.
	SendErr error

	Outputs    []*Output
	Encoders   []*Encoder
	Frames     []*Frame
	Resamplers []*Resampler
	Scalers    []*Scaler
	Allocated  []*Packet
}

var _ media.Engine = (*Engine)(nil)

func (e *Engine) OpenInput(url string) (media.InputContainer, error) {
	in, ok := e.Inputs[url]
	if !ok {
		return nil, errors.Errorf("%s: no such file or directory", url)
	}
	return in, nil
}

func (e *Engine) CreateOutput(url, format string) (media.OutputContainer, error) {
	var (
		out *Output
		err error
	)
	if e.NewOutput != nil {
		out, err = e.NewOutput(url, format)
	} else if format == "bad" {
		err = errors.Errorf("unknown format %q", format)
	} else {
		out = &Output{Format: format}
	}
	if err != nil {
		return nil, err
	}
	e.Outputs = append(e.Outputs, out)
	return out, nil
}

func (e *Engine) AllocPacket() media.Packet {
	p := &Packet{}
	e.Allocated = append(e.Allocated, p)
	return p
}

func (e *Engine) FindEncoder(kind media.MediaType, name string) (*media.EncoderCapabilities, error) {
	if e.Capabilities != nil {
		caps, ok := e.Capabilities[name]
		if !ok {
			return nil, errors.Errorf("encoder %q not found", name)
		}
		return caps, nil
	}
	if name == "" {
		return nil, errors.New("no encoder name")
	}
	return &media.EncoderCapabilities{
		Name:              name,
		Kind:              kind,
		VariableFrameSize: kind == media.MediaTypeAudio && e.AudioFrameSize == 0,
	}, nil
}

func (e *Engine) OpenEncoder(cfg media.EncoderConfig) (media.Encoder, error) {
	enc := &Encoder{
		Config:    cfg,
		Delay:     e.EncoderDelay,
		SendErr:   e.SendErr,
		frameSize: e.AudioFrameSize,
	}
	if cfg.Kind != media.MediaTypeAudio {
		enc.frameSize = 0
	}
	e.Encoders = append(e.Encoders, enc)
	return enc, nil
}

func (e *Engine) AllocAudioFrame(format media.AudioFormat, nbSamples int) (media.Frame, error) {
	f := &Frame{Audio: format, Samples: nbSamples}
	e.Frames = append(e.Frames, f)
	return f, nil
}

func (e *Engine) AllocVideoFrame(format media.VideoFormat) (media.Frame, error) {
	f := &Frame{Video: format}
	e.Frames = append(e.Frames, f)
	return f, nil
}

func (e *Engine) NewResampler(in, out media.AudioFormat) (media.Resampler, error) {
	r := &Resampler{In: in, Out: out, DelayValue: e.ResamplerDelay}
	e.Resamplers = append(e.Resamplers, r)
	return r, nil
}

func (e *Engine) NewScaler(in, out media.VideoFormat) (media.Scaler, error) {
	s := &Scaler{In: in, Out: out}
	e.Scalers = append(e.Scalers, s)
	return s, nil
}

// Encoder emits one packet per frame once more than Delay frames are
// queued, and everything left after the end marker.
type Encoder struct {
	Config  media.EncoderConfig
	Delay   int
	SendErr error

	Frames    int
	EOSCount  int
	Received  int
	Closed    bool
	frameSize int
	queue     []int64
	eos       bool
}

func (e *Encoder) Kind() media.MediaType       { return e.Config.Kind }
func (e *Encoder) CodecName() string           { return e.Config.Codec }
func (e *Encoder) TimeBase() timebase.Rational { return e.Config.TimeBase }
func (e *Encoder) FrameSize() int              { return e.frameSize }

func (e *Encoder) AudioFormat() media.AudioFormat {
	return media.AudioFormat{
		SampleFormat: e.Config.SampleFormat,
		SampleRate:   e.Config.SampleRate,
		Channels:     e.Config.Channels,
	}
}

func (e *Encoder) VideoFormat() media.VideoFormat {
	return media.VideoFormat{
		PixelFormat: e.Config.PixelFormat,
		Width:       e.Config.Width,
		Height:      e.Config.Height,
	}
}

func (e *Encoder) SendFrame(f media.Frame) error {
	if e.eos {
		return io.EOF
	}
	if f == nil {
		e.eos = true
		e.EOSCount++
		return nil
	}
	if e.SendErr != nil {
		return e.SendErr
	}
	e.Frames++
	e.queue = append(e.queue, f.PTS())
	return nil
}

func (e *Encoder) ReceivePacket(p media.Packet) error {
	if len(e.queue) == 0 || (!e.eos && len(e.queue) <= e.Delay) {
		if e.eos {
			return io.EOF
		}
		return media.ErrAgain
	}
	pts := e.queue[0]
	e.queue = e.queue[1:]
	duration := int64(1)
	if e.Config.Kind == media.MediaTypeAudio {
		duration = int64(e.frameSize)
		if duration == 0 {
			duration = 1
		}
	}
	p.SetPTS(pts)
	p.SetDTS(pts)
	p.SetDuration(duration)
	p.SetPos(-1)
	if dst, ok := p.(*Packet); ok {
		dst.Key = true
		dst.Payload = []byte{byte(pts)}
	}
	e.Received++
	return nil
}

func (e *Encoder) CopyParametersTo(dst media.CodecParameters) error {
	setter, ok := dst.(media.InfoSetter)
	if !ok {
		return errors.Errorf("cannot copy parameters into %T", dst)
	}
	return setter.SetInfo(media.CodecInfo{
		Kind:         e.Config.Kind,
		Codec:        e.Config.Codec,
		BitRate:      e.Config.BitRate,
		Width:        e.Config.Width,
		Height:       e.Config.Height,
		PixelFormat:  e.Config.PixelFormat,
		SampleRate:   e.Config.SampleRate,
		Channels:     e.Config.Channels,
		SampleFormat: e.Config.SampleFormat,
		FrameSize:    e.frameSize,
	})
}

func (e *Encoder) Close() error {
	e.Closed = true
	return nil
}

// Frame keeps the last bytes written into it.
type Frame struct {
	Audio   media.AudioFormat
	Video   media.VideoFormat
	Samples int
	Pts     int64
	Bytes   []byte
	// WritableErr makes MakeWritable fail.
	WritableErr  error
	WritableHits int
	Freed        bool
}

func (f *Frame) PTS() int64      { return f.Pts }
func (f *Frame) SetPTS(ts int64) { f.Pts = ts }
func (f *Frame) NbSamples() int  { return f.Samples }
func (f *Frame) Free()           { f.Freed = true }

func (f *Frame) MakeWritable() error {
	f.WritableHits++
	return f.WritableErr
}

func (f *Frame) SetBytes(b []byte) error {
	f.Bytes = append(f.Bytes[:0], b...)
	return nil
}

// Resampler copies samples through and reports a fixed delay.
type Resampler struct {
	In, Out    media.AudioFormat
	DelayValue int64
	// Short makes Convert report that many fewer samples.
	Short  int
	Calls  int
	Closed bool
}

func (r *Resampler) Delay(base int) int64 { return r.DelayValue }

func (r *Resampler) Convert(src, dst media.Frame) (int, error) {
	r.Calls++
	if s, ok := src.(*Frame); ok {
		if d, ok := dst.(*Frame); ok {
			d.Bytes = append(d.Bytes[:0], s.Bytes...)
		}
	}
	return src.NbSamples() - r.Short, nil
}

func (r *Resampler) Close() { r.Closed = true }

// Scaler copies pictures through.
type Scaler struct {
	In, Out media.VideoFormat
	Calls   int
	Closed  bool
}

func (s *Scaler) Scale(src, dst media.Frame) error {
	s.Calls++
	if a, ok := src.(*Frame); ok {
		if b, ok := dst.(*Frame); ok {
			b.Bytes = append(b.Bytes[:0], a.Bytes...)
		}
	}
	return nil
}

func (s *Scaler) Close() { s.Closed = true }
