package libav

import (
	"io"

	"github.com/asticode/go-astiav"
	"github.com/pkg/errors"

	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/timebase"
)

// Frame wraps an astiav frame with its allocated sample capacity.
type Frame struct {
	f        *astiav.Frame
	capacity int
}

var _ media.Frame = (*Frame)(nil)

func (f *Frame) MakeWritable() error     { return f.f.MakeWritable() }
func (f *Frame) SetBytes(b []byte) error { return f.f.Data().SetBytes(b, 1) }
func (f *Frame) PTS() int64              { return f.f.Pts() }
func (f *Frame) SetPTS(ts int64)         { f.f.SetPts(ts) }
func (f *Frame) NbSamples() int          { return f.f.NbSamples() }
func (f *Frame) Free()                   { f.f.Free() }

func frameOf(f media.Frame) (*Frame, error) {
	lf, ok := f.(*Frame)
	if !ok {
		return nil, errors.Errorf("frame %T was not allocated by libav", f)
	}
	return lf, nil
}

// Encoder is an opened codec context.
type Encoder struct {
	cc   *astiav.CodecContext
	name string
	kind media.MediaType
}

var _ media.Encoder = (*Encoder)(nil)

func openEncoder(cfg media.EncoderConfig) (*Encoder, error) {
	codec := astiav.FindEncoderByName(cfg.Codec)
	if codec == nil {
		return nil, errors.Errorf("encoder %q not found", cfg.Codec)
	}
	var layout astiav.ChannelLayout
	if cfg.Kind == media.MediaTypeAudio {
		var err error
		if layout, err = channelLayout(cfg.Channels); err != nil {
			return nil, err
		}
	}
	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		return nil, errors.Errorf("failed to allocate codec context for %s", cfg.Codec)
	}
	if cfg.BitRate > 0 {
		cc.SetBitRate(cfg.BitRate)
	}
	cc.SetTimeBase(toRational(cfg.TimeBase))
	switch cfg.Kind {
	case media.MediaTypeAudio:
		cc.SetSampleFormat(toSampleFormat(cfg.SampleFormat))
		cc.SetSampleRate(cfg.SampleRate)
		cc.SetChannelLayout(layout)
	case media.MediaTypeVideo:
		cc.SetWidth(cfg.Width)
		cc.SetHeight(cfg.Height)
		cc.SetPixelFormat(toPixelFormat(cfg.PixelFormat))
		cc.SetGopSize(cfg.GOPSize)
		if cfg.FrameRate > 0 {
			cc.SetFramerate(astiav.NewRational(cfg.FrameRate, 1))
		}
	}
	if cfg.GlobalHeader {
		cc.SetFlags(cc.Flags().Add(astiav.CodecContextFlagGlobalHeader))
	}

	var d *astiav.Dictionary
	if len(cfg.Options) > 0 {
		var err error
		if d, err = dictionary(cfg.Options); err != nil {
			cc.Free()
			return nil, err
		}
		defer d.Free()
	}
	if err := cc.Open(codec, d); err != nil {
		cc.Free()
		return nil, errors.Wrapf(err, "failed to open encoder %s", cfg.Codec)
	}
	return &Encoder{cc: cc, name: codec.Name(), kind: cfg.Kind}, nil
}

func (e *Encoder) Kind() media.MediaType       { return e.kind }
func (e *Encoder) CodecName() string           { return e.name }
func (e *Encoder) TimeBase() timebase.Rational { return fromRational(e.cc.TimeBase()) }
func (e *Encoder) FrameSize() int              { return e.cc.FrameSize() }

func (e *Encoder) AudioFormat() media.AudioFormat {
	return media.AudioFormat{
		SampleFormat: fromSampleFormat(e.cc.SampleFormat()),
		SampleRate:   e.cc.SampleRate(),
		Channels:     e.cc.ChannelLayout().Channels(),
	}
}

func (e *Encoder) VideoFormat() media.VideoFormat {
	return media.VideoFormat{
		PixelFormat: fromPixelFormat(e.cc.PixelFormat()),
		Width:       e.cc.Width(),
		Height:      e.cc.Height(),
	}
}

func (e *Encoder) SendFrame(f media.Frame) error {
	if f == nil {
		return e.cc.SendFrame(nil)
	}
	lf, err := frameOf(f)
	if err != nil {
		return err
	}
	return e.cc.SendFrame(lf.f)
}

func (e *Encoder) ReceivePacket(p media.Packet) error {
	pkt, err := packetOf(p)
	if err != nil {
		return err
	}
	err = e.cc.ReceivePacket(pkt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, astiav.ErrEagain):
		return media.ErrAgain
	case errors.Is(err, astiav.ErrEof):
		return io.EOF
	}
	return err
}

func (e *Encoder) CopyParametersTo(dst media.CodecParameters) error {
	switch d := dst.(type) {
	case *Params:
		return d.cp.FromCodecContext(e.cc)
	case media.InfoSetter:
		cp := astiav.AllocCodecParameters()
		defer cp.Free()
		if err := cp.FromCodecContext(e.cc); err != nil {
			return err
		}
		return d.SetInfo((&Params{cp: cp}).Info())
	}
	return errors.Errorf("cannot copy encoder parameters into %T", dst)
}

func (e *Encoder) Close() error {
	e.cc.Free()
	return nil
}

// Resampler wraps a software resample context. It is configured from the
// first pair of frames it converts.
type Resampler struct {
	ctx        *astiav.SoftwareResampleContext
	configured bool
}

var _ media.Resampler = (*Resampler)(nil)

func (r *Resampler) Delay(base int) int64 {
	if !r.configured {
		return 0
	}
	return r.ctx.Delay(int64(base))
}

func (r *Resampler) Convert(src, dst media.Frame) (int, error) {
	in, err := frameOf(src)
	if err != nil {
		return 0, err
	}
	out, err := frameOf(dst)
	if err != nil {
		return 0, err
	}
	out.f.SetNbSamples(out.capacity)
	if err := r.ctx.ConvertFrame(in.f, out.f); err != nil {
		return 0, err
	}
	r.configured = true
	return out.f.NbSamples(), nil
}

func (r *Resampler) Close() { r.ctx.Free() }

// Scaler wraps a software scale context.
type Scaler struct {
	ctx *astiav.SoftwareScaleContext
}

var _ media.Scaler = (*Scaler)(nil)

func (s *Scaler) Scale(src, dst media.Frame) error {
	in, err := frameOf(src)
	if err != nil {
		return err
	}
	out, err := frameOf(dst)
	if err != nil {
		return err
	}
	return s.ctx.ScaleFrame(in.f, out.f)
}

func (s *Scaler) Close() { s.ctx.Free() }
