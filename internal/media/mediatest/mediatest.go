// Package mediatest provides an in-memory media engine for tests. Inputs
// replay scripted packets, outputs record everything written to them and
// encoders emit one packet per frame after a configurable delay.
package mediatest

import (
	"io"

	"github.com/pkg/errors"

	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/timebase"
)

// Packet is a plain media.Packet.
type Packet struct {
	Index    int
	Pts      int64
	Dts      int64
	Dur      int64
	Position int64
	Key      bool
	Payload  []byte
	Unrefs   int
	Freed    bool
}

func (p *Packet) StreamIndex() int     { return p.Index }
func (p *Packet) SetStreamIndex(i int) { p.Index = i }
func (p *Packet) PTS() int64           { return p.Pts }
func (p *Packet) SetPTS(ts int64)      { p.Pts = ts }
func (p *Packet) DTS() int64           { return p.Dts }
func (p *Packet) SetDTS(ts int64)      { p.Dts = ts }
func (p *Packet) Duration() int64      { return p.Dur }
func (p *Packet) SetDuration(d int64)  { p.Dur = d }
func (p *Packet) Pos() int64           { return p.Position }
func (p *Packet) SetPos(pos int64)     { p.Position = pos }
func (p *Packet) IsKey() bool          { return p.Key }
func (p *Packet) Data() []byte         { return p.Payload }
func (p *Packet) Free()                { p.Freed = true }

func (p *Packet) Unref() {
	p.Unrefs++
	p.Payload = nil
}

// Params is a media.CodecParameters backed by a CodecInfo.
type Params struct {
	CodecInfo media.CodecInfo
	Tag       uint32
	// CopyErr makes CopyTo fail.
	CopyErr error
}

func (p *Params) Kind() media.MediaType  { return p.CodecInfo.Kind }
func (p *Params) Info() media.CodecInfo  { return p.CodecInfo }
func (p *Params) CodecTag() uint32       { return p.Tag }
func (p *Params) SetCodecTag(tag uint32) { p.Tag = tag }

func (p *Params) SetInfo(info media.CodecInfo) error {
	p.CodecInfo = info
	return nil
}

func (p *Params) CopyTo(dst media.CodecParameters) error {
	if p.CopyErr != nil {
		return p.CopyErr
	}
	switch d := dst.(type) {
	case *Params:
		d.CodecInfo = p.CodecInfo
		d.Tag = p.Tag
		return nil
	case media.InfoSetter:
		return d.SetInfo(p.CodecInfo)
	}
	return errors.Errorf("cannot copy parameters into %T", dst)
}

// Stream is a media.Stream.
type Stream struct {
	Idx    int
	TB     timebase.Rational
	Params *Params
}

// NewStream returns a stream with the given kind and codec name.
func NewStream(index int, kind media.MediaType, codec string, tb timebase.Rational) *Stream {
	return &Stream{
		Idx:    index,
		TB:     tb,
		Params: &Params{CodecInfo: media.CodecInfo{Kind: kind, Codec: codec}, Tag: 0x31637661},
	}
}

func (s *Stream) Index() int                             { return s.Idx }
func (s *Stream) Kind() media.MediaType                  { return s.Params.Kind() }
func (s *Stream) TimeBase() timebase.Rational            { return s.TB }
func (s *Stream) SetTimeBase(tb timebase.Rational)       { s.TB = tb }
func (s *Stream) CodecParameters() media.CodecParameters { return s.Params }

// Input replays Packets in order.
type Input struct {
	Format     string
	StreamList []*Stream
	Packets    []Packet
	// ReadErr is returned instead of io.EOF once the packets run out.
	ReadErr error
	Closed  bool
	next    int
}

func (in *Input) FormatName() string { return in.Format }

func (in *Input) Streams() []media.Stream {
	out := make([]media.Stream, len(in.StreamList))
	for i, s := range in.StreamList {
		out[i] = s
	}
	return out
}

func (in *Input) ReadPacket(p media.Packet) error {
	if in.next >= len(in.Packets) {
		if in.ReadErr != nil {
			return in.ReadErr
		}
		return io.EOF
	}
	src := in.Packets[in.next]
	in.next++
	p.SetStreamIndex(src.Index)
	p.SetPTS(src.Pts)
	p.SetDTS(src.Dts)
	p.SetDuration(src.Dur)
	p.SetPos(src.Position)
	if dst, ok := p.(*Packet); ok {
		dst.Key = src.Key
		dst.Payload = append([]byte(nil), src.Payload...)
	}
	return nil
}

func (in *Input) Close() error {
	in.Closed = true
	return nil
}

// Written is a snapshot of a packet handed to an Output.
type Written struct {
	Index    int
	Pts      int64
	Dts      int64
	Duration int64
	Pos      int64
	Key      bool
	Data     []byte
}

// Output records the calls made on it.
type Output struct {
	Format       string
	NoFile       bool
	GlobalHeader bool
	// MaxStreams limits NewStream when positive.
	MaxStreams int
	// HeaderTimeBase, when set, replaces each stream's timebase on header
	// write the way real muxers pick their own units.
	HeaderTimeBase func(s *Stream) timebase.Rational

	OpenErr    error
	HeaderErr  error
	TrailerErr error
	WriteErr   error
	// FailAfter makes WriteInterleaved fail with WriteErr once that many
	// packets have been accepted.
	FailAfter int

	StreamList    []*Stream
	Target        string
	HeaderOptions map[string]string
	Packets       []Written
	Calls         []string
	Closed        bool
}

func (o *Output) FormatName() string      { return o.Format }
func (o *Output) NeedsFile() bool         { return !o.NoFile }
func (o *Output) WantsGlobalHeader() bool { return o.GlobalHeader }

func (o *Output) NewStream() (media.Stream, error) {
	o.Calls = append(o.Calls, "new_stream")
	if o.MaxStreams > 0 && len(o.StreamList) >= o.MaxStreams {
		return nil, errors.New("too many streams")
	}
	s := &Stream{Idx: len(o.StreamList), Params: &Params{}}
	o.StreamList = append(o.StreamList, s)
	return s, nil
}

func (o *Output) Streams() []media.Stream {
	out := make([]media.Stream, len(o.StreamList))
	for i, s := range o.StreamList {
		out[i] = s
	}
	return out
}

func (o *Output) OpenIO(target string) error {
	o.Calls = append(o.Calls, "open")
	if o.OpenErr != nil {
		return o.OpenErr
	}
	o.Target = target
	return nil
}

func (o *Output) WriteHeader(options map[string]string) error {
	o.Calls = append(o.Calls, "header")
	if o.HeaderErr != nil {
		return o.HeaderErr
	}
	o.HeaderOptions = options
	if o.HeaderTimeBase != nil {
		for _, s := range o.StreamList {
			s.TB = o.HeaderTimeBase(s)
		}
	}
	return nil
}

func (o *Output) WriteInterleaved(p media.Packet) error {
	if o.WriteErr != nil && len(o.Packets) >= o.FailAfter {
		return o.WriteErr
	}
	o.Calls = append(o.Calls, "packet")
	o.Packets = append(o.Packets, Written{
		Index:    p.StreamIndex(),
		Pts:      p.PTS(),
		Dts:      p.DTS(),
		Duration: p.Duration(),
		Pos:      p.Pos(),
		Key:      p.IsKey(),
		Data:     append([]byte(nil), p.Data()...),
	})
	p.Unref()
	return nil
}

func (o *Output) WriteTrailer() error {
	o.Calls = append(o.Calls, "trailer")
	return o.TrailerErr
}

func (o *Output) Close() error {
	o.Calls = append(o.Calls, "close")
	o.Closed = true
	return nil
}

// PacketsFor returns the written packets of one output stream.
func (o *Output) PacketsFor(index int) []Written {
	var out []Written
	for _, p := range o.Packets {
		if p.Index == index {
			out = append(out, p)
		}
	}
	return out
}
