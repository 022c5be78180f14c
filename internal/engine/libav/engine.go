// Package libav implements the media engine on top of FFmpeg through
// go-astiav.
package libav

import (
	"log/slog"

	"github.com/asticode/go-astiav"
	"github.com/pkg/errors"

	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/util"
)

// Engine is the FFmpeg backed media.Engine.
type Engine struct {
	logger *slog.Logger
}

var _ media.Engine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New returns an engine. Library log output follows the verbose setting.
func New(opts ...Option) *Engine {
	e := &Engine{logger: util.GetLogger().With("component", "libav")}
	for _, opt := range opts {
		opt(e)
	}
	SetLogLevel(util.IsVerbose())
	return e
}

// SetLogLevel routes FFmpeg messages into the logger and silences everything
// below errors unless verbose output was requested.
func SetLogLevel(verbose bool) {
	log := util.GetCompatLogger("ffmpeg")
	astiav.SetLogCallback(func(_ astiav.Classer, l astiav.LogLevel, _, msg string) {
		switch {
		case l <= astiav.LogLevelError:
			log.Errorf("%s", msg)
		case l <= astiav.LogLevelWarning:
			log.Warnf("%s", msg)
		case l <= astiav.LogLevelInfo:
			log.Infof("%s", msg)
		default:
			log.Debugf("%s", msg)
		}
	})
	if verbose {
		astiav.SetLogLevel(astiav.LogLevelVerbose)
		return
	}
	astiav.SetLogLevel(astiav.LogLevelError)
}

func (e *Engine) OpenInput(url string) (media.InputContainer, error) {
	return openInput(url, e.logger)
}

func (e *Engine) CreateOutput(url, format string) (media.OutputContainer, error) {
	return createOutput(url, format, e.logger)
}

func (e *Engine) AllocPacket() media.Packet {
	return &Packet{pkt: astiav.AllocPacket()}
}

func (e *Engine) FindEncoder(kind media.MediaType, name string) (*media.EncoderCapabilities, error) {
	codec := astiav.FindEncoderByName(name)
	if codec == nil {
		return nil, errors.Errorf("encoder %q not found", name)
	}
	if got := fromMediaType(codec.ID().MediaType()); got != kind {
		return nil, errors.Errorf("encoder %q encodes %s, not %s", name, got, kind)
	}
	caps := &media.EncoderCapabilities{
		Name:              codec.Name(),
		Kind:              kind,
		VariableFrameSize: codec.Capabilities().Has(astiav.CodecCapabilityVariableFrameSize),
	}
	for _, f := range codec.SampleFormats() {
		caps.SampleFormats = append(caps.SampleFormats, fromSampleFormat(f))
	}
	caps.SampleRates = append(caps.SampleRates, codec.SupportedSampleRates()...)
	for _, f := range codec.PixelFormats() {
		caps.PixelFormats = append(caps.PixelFormats, fromPixelFormat(f))
	}
	return caps, nil
}

func (e *Engine) OpenEncoder(cfg media.EncoderConfig) (media.Encoder, error) {
	enc, err := openEncoder(cfg)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Opened encoder", "codec", enc.CodecName(), "kind", cfg.Kind, "frameSize", enc.FrameSize())
	return enc, nil
}

func (e *Engine) AllocAudioFrame(format media.AudioFormat, nbSamples int) (media.Frame, error) {
	layout, err := channelLayout(format.Channels)
	if err != nil {
		return nil, err
	}
	f := astiav.AllocFrame()
	f.SetSampleFormat(toSampleFormat(format.SampleFormat))
	f.SetChannelLayout(layout)
	f.SetSampleRate(format.SampleRate)
	f.SetNbSamples(nbSamples)
	if nbSamples > 0 {
		if err := f.AllocBuffer(0); err != nil {
			f.Free()
			return nil, errors.Wrap(err, "failed to allocate audio buffer")
		}
	}
	return &Frame{f: f, capacity: nbSamples}, nil
}

func (e *Engine) AllocVideoFrame(format media.VideoFormat) (media.Frame, error) {
	f := astiav.AllocFrame()
	f.SetPixelFormat(toPixelFormat(format.PixelFormat))
	f.SetWidth(format.Width)
	f.SetHeight(format.Height)
	if err := f.AllocBuffer(0); err != nil {
		f.Free()
		return nil, errors.Wrap(err, "failed to allocate picture buffer")
	}
	return &Frame{f: f}, nil
}

func (e *Engine) NewResampler(in, out media.AudioFormat) (media.Resampler, error) {
	ctx := astiav.AllocSoftwareResampleContext()
	if ctx == nil {
		return nil, errors.New("failed to allocate resample context")
	}
	e.logger.Debug("Created resampler", "from", in.SampleFormat, "to", out.SampleFormat, "rate", out.SampleRate)
	return &Resampler{ctx: ctx}, nil
}

func (e *Engine) NewScaler(in, out media.VideoFormat) (media.Scaler, error) {
	ctx, err := astiav.CreateSoftwareScaleContext(
		in.Width, in.Height, toPixelFormat(in.PixelFormat),
		out.Width, out.Height, toPixelFormat(out.PixelFormat),
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBicubic),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scale context")
	}
	return &Scaler{ctx: ctx}, nil
}
