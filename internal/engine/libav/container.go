package libav

import (
	"io"
	"log/slog"

	"github.com/asticode/go-astiav"
	"github.com/pkg/errors"

	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/timebase"
)

// Packet wraps an astiav packet.
type Packet struct {
	pkt *astiav.Packet
}

var _ media.Packet = (*Packet)(nil)

func (p *Packet) StreamIndex() int     { return p.pkt.StreamIndex() }
func (p *Packet) SetStreamIndex(i int) { p.pkt.SetStreamIndex(i) }
func (p *Packet) PTS() int64           { return p.pkt.Pts() }
func (p *Packet) SetPTS(ts int64)      { p.pkt.SetPts(ts) }
func (p *Packet) DTS() int64           { return p.pkt.Dts() }
func (p *Packet) SetDTS(ts int64)      { p.pkt.SetDts(ts) }
func (p *Packet) Duration() int64      { return p.pkt.Duration() }
func (p *Packet) SetDuration(d int64)  { p.pkt.SetDuration(d) }
func (p *Packet) Pos() int64           { return p.pkt.Pos() }
func (p *Packet) SetPos(pos int64)     { p.pkt.SetPos(pos) }
func (p *Packet) IsKey() bool          { return p.pkt.Flags().Has(astiav.PacketFlagKey) }
func (p *Packet) Data() []byte         { return p.pkt.Data() }
func (p *Packet) Unref()               { p.pkt.Unref() }
func (p *Packet) Free()                { p.pkt.Free() }

func packetOf(p media.Packet) (*astiav.Packet, error) {
	lp, ok := p.(*Packet)
	if !ok {
		return nil, errors.Errorf("packet %T was not allocated by libav", p)
	}
	return lp.pkt, nil
}

// Params wraps astiav codec parameters. Copies to parameters owned by another
// engine go through media.InfoSetter.
type Params struct {
	cp *astiav.CodecParameters
}

var _ media.CodecParameters = (*Params)(nil)

func (p *Params) Kind() media.MediaType { return fromMediaType(p.cp.MediaType()) }

func (p *Params) Info() media.CodecInfo {
	info := media.CodecInfo{
		Kind:      p.Kind(),
		Codec:     p.cp.CodecID().Name(),
		BitRate:   p.cp.BitRate(),
		ExtraData: append([]byte(nil), p.cp.ExtraData()...),
	}
	switch info.Kind {
	case media.MediaTypeVideo:
		info.Width = p.cp.Width()
		info.Height = p.cp.Height()
		info.PixelFormat = fromPixelFormat(p.cp.PixelFormat())
	case media.MediaTypeAudio:
		info.SampleRate = p.cp.SampleRate()
		info.Channels = p.cp.ChannelLayout().Channels()
		info.SampleFormat = fromSampleFormat(p.cp.SampleFormat())
		info.FrameSize = p.cp.FrameSize()
	}
	return info
}

func (p *Params) CodecTag() uint32       { return uint32(p.cp.CodecTag()) }
func (p *Params) SetCodecTag(tag uint32) { p.cp.SetCodecTag(astiav.CodecTag(tag)) }

func (p *Params) CopyTo(dst media.CodecParameters) error {
	switch d := dst.(type) {
	case *Params:
		return p.cp.Copy(d.cp)
	case media.InfoSetter:
		if err := d.SetInfo(p.Info()); err != nil {
			return err
		}
		dst.SetCodecTag(p.CodecTag())
		return nil
	}
	return errors.Errorf("cannot copy codec parameters into %T", dst)
}

// Stream wraps an astiav stream.
type Stream struct {
	s *astiav.Stream
}

var _ media.Stream = (*Stream)(nil)

func (s *Stream) Index() int                       { return s.s.Index() }
func (s *Stream) Kind() media.MediaType            { return fromMediaType(s.s.CodecParameters().MediaType()) }
func (s *Stream) TimeBase() timebase.Rational      { return fromRational(s.s.TimeBase()) }
func (s *Stream) SetTimeBase(tb timebase.Rational) { s.s.SetTimeBase(toRational(tb)) }

func (s *Stream) CodecParameters() media.CodecParameters {
	return &Params{cp: s.s.CodecParameters()}
}

func wrapStreams(ss []*astiav.Stream) []media.Stream {
	out := make([]media.Stream, len(ss))
	for i, s := range ss {
		out[i] = &Stream{s: s}
	}
	return out
}

// Input is an opened and probed format context.
type Input struct {
	fc     *astiav.FormatContext
	closed bool
}

var _ media.InputContainer = (*Input)(nil)

func openInput(url string, logger *slog.Logger) (*Input, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, errors.New("failed to allocate format context")
	}
	if err := fc.OpenInput(url, nil, nil); err != nil {
		fc.Free()
		return nil, errors.Wrapf(err, "failed to open %s", url)
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		fc.CloseInput()
		fc.Free()
		return nil, errors.Wrapf(err, "failed to find stream info for %s", url)
	}
	logger.Debug("Opened input", "url", url, "format", fc.InputFormat().Name(), "streams", fc.NbStreams())
	return &Input{fc: fc}, nil
}

func (in *Input) FormatName() string      { return in.fc.InputFormat().Name() }
func (in *Input) Streams() []media.Stream { return wrapStreams(in.fc.Streams()) }

func (in *Input) ReadPacket(p media.Packet) error {
	pkt, err := packetOf(p)
	if err != nil {
		return err
	}
	if err := in.fc.ReadFrame(pkt); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			return io.EOF
		}
		return err
	}
	return nil
}

func (in *Input) Close() error {
	if in.closed {
		return nil
	}
	in.closed = true
	in.fc.CloseInput()
	in.fc.Free()
	return nil
}

// Output is an output format context.
type Output struct {
	fc     *astiav.FormatContext
	io     *astiav.IOContext
	logger *slog.Logger
	closed bool
}

var _ media.OutputContainer = (*Output)(nil)

func createOutput(url, format string, logger *slog.Logger) (*Output, error) {
	var muxer *astiav.OutputFormat
	if format != "" {
		if muxer = astiav.FindOutputFormat(format); muxer == nil {
			return nil, errors.Errorf("unknown output format %q", format)
		}
	}
	fc, err := astiav.AllocOutputFormatContext(muxer, "", url)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to allocate output context for %s", url)
	}
	if fc == nil {
		return nil, errors.Errorf("could not deduce output format from %s", url)
	}
	return &Output{fc: fc, logger: logger}, nil
}

func (o *Output) FormatName() string { return o.fc.OutputFormat().Name() }

func (o *Output) NeedsFile() bool {
	return !o.fc.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile)
}

func (o *Output) WantsGlobalHeader() bool {
	return o.fc.OutputFormat().Flags().Has(astiav.IOFormatFlagGlobalheader)
}

func (o *Output) NewStream() (media.Stream, error) {
	s := o.fc.NewStream(nil)
	if s == nil {
		return nil, errors.New("failed to allocate output stream")
	}
	return &Stream{s: s}, nil
}

func (o *Output) Streams() []media.Stream { return wrapStreams(o.fc.Streams()) }

func (o *Output) OpenIO(target string) error {
	ioCtx, err := astiav.OpenIOContext(target, astiav.NewIOContextFlags(astiav.IOContextFlagWrite), nil, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s for writing", target)
	}
	o.io = ioCtx
	o.fc.SetPb(ioCtx)
	return nil
}

func (o *Output) WriteHeader(options map[string]string) error {
	var d *astiav.Dictionary
	if len(options) > 0 {
		var err error
		if d, err = dictionary(options); err != nil {
			return err
		}
		defer d.Free()
	}
	o.logger.Debug("Writing header", "format", o.FormatName(), "streams", o.fc.NbStreams(), "options", len(options))
	return o.fc.WriteHeader(d)
}

func (o *Output) WriteInterleaved(p media.Packet) error {
	pkt, err := packetOf(p)
	if err != nil {
		return err
	}
	return o.fc.WriteInterleavedFrame(pkt)
}

func (o *Output) WriteTrailer() error { return o.fc.WriteTrailer() }

func (o *Output) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true
	var err error
	if o.io != nil {
		if cerr := o.io.Close(); cerr != nil {
			err = errors.Wrap(cerr, "failed to close output")
		}
	}
	o.fc.Free()
	return err
}

func dictionary(options map[string]string) (*astiav.Dictionary, error) {
	d := astiav.NewDictionary()
	for k, v := range options {
		if err := d.Set(k, v, astiav.NewDictionaryFlags()); err != nil {
			d.Free()
			return nil, errors.Wrapf(err, "failed to set option %s", k)
		}
	}
	return d, nil
}
