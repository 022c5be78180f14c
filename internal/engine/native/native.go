// Package native writes WebM, Matroska and fragmented MP4 containers in pure
// Go. Inputs, encoders and every other container come from the libav engine;
// these writers only take over the output side.
package native

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/timebase"
	"github.com/babelcloud/gbox/packages/avtool/internal/util"
)

// Format names understood by Create.
const (
	FormatWebM     = "webm"
	FormatMatroska = "matroska"
	FormatMP4      = "mp4"
)

// interleaveSpanMs bounds how long a stream may wait for the others.
const interleaveSpanMs = 10_000

// ErrUnsupportedFormat is returned by Create for formats it cannot write.
var ErrUnsupportedFormat = errors.New("format not supported by native writers")

// Detect returns the native format for an explicit format name or, when
// format is empty, for the extension of url. It returns "" when no native
// writer applies.
func Detect(url, format string) string {
	switch strings.ToLower(format) {
	case "webm":
		return FormatWebM
	case "matroska", "mkv":
		return FormatMatroska
	case "mp4", "fmp4":
		return FormatMP4
	case "":
	default:
		return ""
	}
	switch strings.ToLower(filepath.Ext(url)) {
	case ".webm":
		return FormatWebM
	case ".mkv", ".mka":
		return FormatMatroska
	case ".mp4", ".m4v", ".m4a", ".m4s":
		return FormatMP4
	}
	return ""
}

// muxer is the format-specific half of an Output.
type muxer interface {
	timeBase(info media.CodecInfo) timebase.Rational
	writeHeader(w *sinkCloser, streams []*Stream) error
	writeSample(st *Stream, s sample) error
	writeTrailer() error
}

// Option configures an Output.
type Option func(*Output)

// WithWriter makes OpenIO use w instead of creating a file.
func WithWriter(w io.WriteCloser) Option {
	return func(o *Output) {
		o.create = func(string) (io.WriteCloser, error) {
			return w, nil
		}
	}
}

// WithLogger sets the logger of the writer.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Output) {
		o.logger = logger
	}
}

// Create returns an output container for url in format, which is resolved
// with Detect.
func Create(url, format string, opts ...Option) (*Output, error) {
	name := Detect(url, format)
	if name == "" {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", format)
	}
	o := &Output{
		name:   name,
		logger: util.GetLogger().With("component", "native_"+name),
		create: func(target string) (io.WriteCloser, error) {
			return os.Create(target)
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	switch name {
	case FormatWebM, FormatMatroska:
		o.mux = newWebMMuxer(name, o.logger)
	case FormatMP4:
		o.mux = newFMP4Muxer(o.logger)
	}
	return o, nil
}

// Output is a media.OutputContainer backed by a native muxer.
type Output struct {
	name    string
	mux     muxer
	streams []*Stream
	sink    *sinkCloser
	il      *interleaver
	create  func(target string) (io.WriteCloser, error)
	logger  *slog.Logger
	header  bool
}

var _ media.OutputContainer = (*Output)(nil)

func (o *Output) FormatName() string { return o.name }

func (o *Output) NeedsFile() bool { return true }

// WantsGlobalHeader is true because both formats carry codec configuration
// in the header rather than in band.
func (o *Output) WantsGlobalHeader() bool { return true }

func (o *Output) NewStream() (media.Stream, error) {
	if o.header {
		return nil, errors.New("stream added after header")
	}
	s := &Stream{index: len(o.streams), params: &Params{}}
	o.streams = append(o.streams, s)
	return s, nil
}

func (o *Output) Streams() []media.Stream {
	out := make([]media.Stream, len(o.streams))
	for i, s := range o.streams {
		out[i] = s
	}
	return out
}

func (o *Output) OpenIO(target string) error {
	w, err := o.create(target)
	if err != nil {
		return errors.Wrapf(err, "creating %s", target)
	}
	o.sink = newSinkCloser(w)
	return nil
}

// WriteHeader fixes the stream timebases and writes the container header.
// Options are accepted for interface compatibility; none apply natively.
func (o *Output) WriteHeader(options map[string]string) error {
	if o.sink == nil {
		return errors.New("output not opened")
	}
	for k, v := range options {
		o.logger.Warn("Ignoring writer option", "key", k, "value", v)
	}
	tbs := make([]timebase.Rational, len(o.streams))
	for i, s := range o.streams {
		s.tb = o.mux.timeBase(s.params.info)
		tbs[i] = s.tb
	}
	if err := o.mux.writeHeader(o.sink, o.streams); err != nil {
		return err
	}
	o.il = newInterleaver(tbs, interleaveSpanMs)
	o.header = true
	return nil
}

func (o *Output) WriteInterleaved(p media.Packet) error {
	if !o.header {
		return errors.New("packet written before header")
	}
	idx := p.StreamIndex()
	if idx < 0 || idx >= len(o.streams) {
		p.Unref()
		return errors.Errorf("no stream #%d", idx)
	}
	s := sample{
		stream:   idx,
		pts:      p.PTS(),
		dts:      p.DTS(),
		duration: p.Duration(),
		key:      p.IsKey(),
		data:     append([]byte(nil), p.Data()...),
	}
	p.Unref()
	for _, ready := range o.il.push(s) {
		if err := o.mux.writeSample(o.streams[ready.stream], ready); err != nil {
			return err
		}
	}
	return nil
}

func (o *Output) WriteTrailer() error {
	if !o.header {
		return errors.New("trailer written before header")
	}
	for _, ready := range o.il.flush() {
		if err := o.mux.writeSample(o.streams[ready.stream], ready); err != nil {
			return err
		}
	}
	return o.mux.writeTrailer()
}

func (o *Output) Close() error {
	if o.sink == nil {
		return nil
	}
	return o.sink.Close()
}

// Stream is an output stream of a native container.
type Stream struct {
	index  int
	tb     timebase.Rational
	params *Params
}

func (s *Stream) Index() int                             { return s.index }
func (s *Stream) Kind() media.MediaType                  { return s.params.info.Kind }
func (s *Stream) TimeBase() timebase.Rational            { return s.tb }
func (s *Stream) SetTimeBase(tb timebase.Rational)       { s.tb = tb }
func (s *Stream) CodecParameters() media.CodecParameters { return s.params }

// Params holds the codec description copied from an encoder or input.
type Params struct {
	info media.CodecInfo
	tag  uint32
}

func (p *Params) Kind() media.MediaType  { return p.info.Kind }
func (p *Params) Info() media.CodecInfo  { return p.info }
func (p *Params) CodecTag() uint32       { return p.tag }
func (p *Params) SetCodecTag(tag uint32) { p.tag = tag }

func (p *Params) SetInfo(info media.CodecInfo) error {
	info.Codec = canonicalCodec(info.Codec)
	info.ExtraData = append([]byte(nil), info.ExtraData...)
	p.info = info
	return nil
}

func (p *Params) CopyTo(dst media.CodecParameters) error {
	setter, ok := dst.(media.InfoSetter)
	if !ok {
		return errors.Errorf("cannot copy parameters into %T", dst)
	}
	if err := setter.SetInfo(p.info); err != nil {
		return err
	}
	dst.SetCodecTag(p.tag)
	return nil
}

// canonicalCodec maps encoder names to the codec they produce.
func canonicalCodec(name string) string {
	switch name {
	case "libx264", "h264_videotoolbox", "h264_nvenc":
		return "h264"
	case "libvpx":
		return "vp8"
	case "libvpx-vp9":
		return "vp9"
	case "libaom-av1", "libsvtav1":
		return "av1"
	case "libopus":
		return "opus"
	case "libvorbis":
		return "vorbis"
	case "libmp3lame":
		return "mp3"
	case "libfdk_aac":
		return "aac"
	}
	return name
}

// sinkCloser closes the destination once and reports when that happened.
// Muxers that close the destination themselves are waited for through done.
type sinkCloser struct {
	w    io.WriteCloser
	once sync.Once
	err  error
	done chan struct{}
}

func newSinkCloser(w io.WriteCloser) *sinkCloser {
	return &sinkCloser{w: w, done: make(chan struct{})}
}

func (s *sinkCloser) Write(p []byte) (int, error) {
	select {
	case <-s.done:
		return 0, io.ErrClosedPipe
	default:
	}
	return s.w.Write(p)
}

func (s *sinkCloser) Close() error {
	s.once.Do(func() {
		s.err = s.w.Close()
		close(s.done)
	})
	return s.err
}
