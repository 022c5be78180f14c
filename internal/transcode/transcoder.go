package transcode

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/babelcloud/gbox/packages/avtool/internal/container"
	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/timebase"
	"github.com/babelcloud/gbox/packages/avtool/internal/util"
)

// VideoSettings configures the synthesized video stream.
type VideoSettings struct {
	// Codec overrides the format default. NoCodec disables video.
	Codec   string
	Width   int
	Height  int
	BitRate int64
	GOPSize int
}

// AudioSettings configures the synthesized audio stream.
type AudioSettings struct {
	// Codec overrides the format default. NoCodec disables audio.
	Codec      string
	SampleRate int
	Channels   int
	BitRate    int64
	// VariableFrameSize is the number of samples per frame for encoders
	// that accept any frame size.
	VariableFrameSize int
}

// Settings configures a transcode session.
type Settings struct {
	Duration  time.Duration
	FrameRate int
	// Format forces the output format. When empty it is guessed from the
	// output name and FallbackFormat is used if that fails.
	Format         string
	FallbackFormat string
	Video          VideoSettings
	Audio          AudioSettings
	// WriterOptions are passed to the container writer with the header.
	WriterOptions map[string]string
}

// DefaultSettings returns a 10 second CIF stream at 25 fps with stereo audio.
func DefaultSettings() Settings {
	return Settings{
		Duration:       10 * time.Second,
		FrameRate:      25,
		FallbackFormat: "mpeg",
		Video: VideoSettings{
			Width:   352,
			Height:  288,
			BitRate: 400000,
			GOPSize: 12,
		},
		Audio: AudioSettings{
			SampleRate:        44100,
			Channels:          2,
			BitRate:           64000,
			VariableFrameSize: 10000,
		},
	}
}

// Progress reports a stream clock after a scheduler step.
type Progress struct {
	Stream  int
	Kind    media.MediaType
	Seconds float64
	Total   time.Duration
}

// Options configures a transcode session.
type Options struct {
	Logger   *slog.Logger
	Session  string
	Progress func(Progress)
}

// Option mutates Options.
type Option func(*Options)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithSession sets the session id attached to every log line.
func WithSession(id string) Option {
	return func(o *Options) {
		o.Session = id
	}
}

// WithProgressFunc registers a callback invoked after every scheduler step.
func WithProgressFunc(fn func(Progress)) Option {
	return func(o *Options) {
		o.Progress = fn
	}
}

// StreamSummary describes one encoded stream.
type StreamSummary struct {
	Index    int
	Kind     media.MediaType
	Codec    string
	TimeBase timebase.Rational
	Frames   int
	Packets  int
	Seconds  float64
}

// Result describes a finished session.
type Result struct {
	Session string
	Format  string
	Streams []StreamSummary
	Steps   int
}

type session struct {
	eng    media.Engine
	out    media.OutputContainer
	s      Settings
	logger *slog.Logger
}

// Transcode synthesizes s.Duration of audio and video, encodes it and
// writes it to a new container at output. Every resource it acquires is
// released before it returns, on success and on failure.
func Transcode(ctx context.Context, eng media.Engine, output string, s Settings, opts ...Option) (*Result, error) {
	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Session == "" {
		o.Session = uuid.New().String()
	}
	if o.Logger == nil {
		o.Logger = util.GetLogger().With("component", "transcode")
	}
	logger := o.Logger.With("session", o.Session)

	out, err := eng.CreateOutput(output, s.Format)
	if err != nil && s.Format == "" && s.FallbackFormat != "" {
		logger.Warn("Could not deduce output format from file extension", "output", output, "fallback", s.FallbackFormat, "error", err)
		out, err = eng.CreateOutput(output, s.FallbackFormat)
	}
	if err != nil {
		return nil, media.WrapError(media.OpenError, err, "creating output %s", output)
	}
	lc := container.New(out, container.WithLogger(logger))
	defer lc.Close()

	videoCodec, audioCodec, err := selectCodecs(out.FormatName(), s.Video.Codec, s.Audio.Codec)
	if err != nil {
		return nil, media.WrapError(media.EncodeError, err, "selecting encoders")
	}

	ss := &session{eng: eng, out: out, s: s, logger: logger}
	var streams []*OutputStream
	defer func() {
		for _, st := range streams {
			st.Close()
		}
	}()

	if videoCodec != "" {
		st := &OutputStream{}
		streams = append(streams, st)
		if err := ss.addVideo(st, videoCodec); err != nil {
			return nil, err
		}
	}
	if audioCodec != "" {
		st := &OutputStream{}
		streams = append(streams, st)
		if err := ss.addAudio(st, audioCodec); err != nil {
			return nil, err
		}
	}

	if err := lc.Open(output); err != nil {
		return nil, err
	}
	if err := lc.WriteHeader(s.WriterOptions); err != nil {
		return nil, err
	}
	logger.Info("Transcoding", "output", output, "format", out.FormatName(), "video", videoCodec, "audio", audioCodec, "duration", s.Duration)

	var schedOpts []SchedulerOption
	if o.Progress != nil {
		schedOpts = append(schedOpts, WithProgress(func(st *OutputStream) {
			o.Progress(Progress{Stream: st.Stream.Index(), Kind: st.Kind(), Seconds: st.Seconds(), Total: s.Duration})
		}))
	}
	sched := NewScheduler(NewDriver(lc, logger), streams, schedOpts...)
	if err := sched.Run(ctx); err != nil {
		return nil, err
	}

	res := &Result{Session: o.Session, Format: out.FormatName(), Steps: sched.Steps()}
	for _, st := range streams {
		res.Streams = append(res.Streams, StreamSummary{
			Index:    st.Stream.Index(),
			Kind:     st.Kind(),
			Codec:    st.Encoder.CodecName(),
			TimeBase: st.Stream.TimeBase(),
			Frames:   st.Frames(),
			Packets:  st.Packets(),
			Seconds:  st.Seconds(),
		})
	}
	if err := lc.Finish(); err != nil {
		return nil, err
	}
	logger.Info("Transcode finished", "steps", res.Steps, "streams", len(res.Streams))
	return res, nil
}

func (ss *session) addVideo(st *OutputStream, codec string) error {
	caps, err := ss.eng.FindEncoder(media.MediaTypeVideo, codec)
	if err != nil {
		return media.WrapError(media.EncodeError, err, "finding video encoder %q", codec)
	}
	stream, err := ss.out.NewStream()
	if err != nil {
		return media.WrapError(media.StreamAllocationError, err, "allocating video stream")
	}
	st.Stream = stream

	v := ss.s.Video
	tb := timebase.New(1, ss.s.FrameRate)
	stream.SetTimeBase(tb)

	pixFmt := media.PixelFormatYUV420P
	if len(caps.PixelFormats) > 0 && !slices.Contains(caps.PixelFormats, pixFmt) {
		pixFmt = caps.PixelFormats[0]
	}
	enc, err := ss.eng.OpenEncoder(media.EncoderConfig{
		Codec:        caps.Name,
		Kind:         media.MediaTypeVideo,
		BitRate:      v.BitRate,
		TimeBase:     tb,
		Width:        v.Width,
		Height:       v.Height,
		PixelFormat:  pixFmt,
		FrameRate:    ss.s.FrameRate,
		GOPSize:      v.GOPSize,
		GlobalHeader: ss.out.WantsGlobalHeader(),
		Options:      codecOptions(caps.Name),
	})
	if err != nil {
		return media.WrapError(media.EncodeError, err, "opening video encoder %s", caps.Name)
	}
	st.Encoder = enc

	format := enc.VideoFormat()
	if st.Frame, err = ss.eng.AllocVideoFrame(format); err != nil {
		return media.WrapError(media.BufferWritabilityError, err, "allocating video frame")
	}
	if format.PixelFormat != media.PixelFormatYUV420P {
		src := media.VideoFormat{PixelFormat: media.PixelFormatYUV420P, Width: format.Width, Height: format.Height}
		if st.TmpFrame, err = ss.eng.AllocVideoFrame(src); err != nil {
			return media.WrapError(media.BufferWritabilityError, err, "allocating temporary video frame")
		}
	}
	if err := enc.CopyParametersTo(stream.CodecParameters()); err != nil {
		return media.WrapError(media.ParameterCopyError, err, "copying video stream parameters")
	}
	st.Packet = ss.eng.AllocPacket()
	st.Synth = NewVideoSynth(ss.s.Duration, format.Width, format.Height, ss.eng)
	ss.logger.Debug("Video stream added", "stream", stream.Index(), "codec", caps.Name, "pix_fmt", format.PixelFormat)
	return nil
}

func (ss *session) addAudio(st *OutputStream, codec string) error {
	caps, err := ss.eng.FindEncoder(media.MediaTypeAudio, codec)
	if err != nil {
		return media.WrapError(media.EncodeError, err, "finding audio encoder %q", codec)
	}
	stream, err := ss.out.NewStream()
	if err != nil {
		return media.WrapError(media.StreamAllocationError, err, "allocating audio stream")
	}
	st.Stream = stream

	a := ss.s.Audio
	sampleFmt := media.SampleFormatFLTP
	if len(caps.SampleFormats) > 0 {
		sampleFmt = caps.SampleFormats[0]
	}
	rate := a.SampleRate
	if len(caps.SampleRates) > 0 && !slices.Contains(caps.SampleRates, rate) {
		rate = caps.SampleRates[0]
	}
	tb := timebase.New(1, rate)
	stream.SetTimeBase(tb)

	enc, err := ss.eng.OpenEncoder(media.EncoderConfig{
		Codec:        caps.Name,
		Kind:         media.MediaTypeAudio,
		BitRate:      a.BitRate,
		TimeBase:     tb,
		SampleFormat: sampleFmt,
		SampleRate:   rate,
		Channels:     a.Channels,
		GlobalHeader: ss.out.WantsGlobalHeader(),
		Options:      codecOptions(caps.Name),
	})
	if err != nil {
		return media.WrapError(media.EncodeError, err, "opening audio encoder %s", caps.Name)
	}
	st.Encoder = enc

	nb := enc.FrameSize()
	if caps.VariableFrameSize || nb == 0 {
		nb = a.VariableFrameSize
	}
	if nb <= 0 {
		return media.WrapError(media.EncodeError, errors.Errorf("invalid audio frame size %d", nb), "sizing %s frames", caps.Name)
	}
	format := enc.AudioFormat()
	if st.Frame, err = ss.eng.AllocAudioFrame(format, nb); err != nil {
		return media.WrapError(media.BufferWritabilityError, err, "allocating audio frame")
	}
	src := media.AudioFormat{SampleFormat: media.SampleFormatS16, SampleRate: format.SampleRate, Channels: format.Channels}
	if format.SampleFormat != media.SampleFormatS16 {
		if st.TmpFrame, err = ss.eng.AllocAudioFrame(src, nb); err != nil {
			return media.WrapError(media.BufferWritabilityError, err, "allocating temporary audio frame")
		}
		if st.Resampler, err = ss.eng.NewResampler(src, format); err != nil {
			return media.WrapError(media.ResampleError, err, "creating %s to %s resampler", src.SampleFormat, format.SampleFormat)
		}
	}
	if err := enc.CopyParametersTo(stream.CodecParameters()); err != nil {
		return media.WrapError(media.ParameterCopyError, err, "copying audio stream parameters")
	}
	st.Packet = ss.eng.AllocPacket()
	st.Synth = NewAudioSynth(ss.s.Duration, format.SampleRate, format.Channels, nb)
	ss.logger.Debug("Audio stream added", "stream", stream.Index(), "codec", caps.Name, "sample_fmt", format.SampleFormat, "rate", format.SampleRate, "frame_size", nb)
	return nil
}
