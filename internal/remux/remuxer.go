package remux

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/babelcloud/gbox/packages/avtool/internal/container"
	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/util"
)

// DefaultKinds are the content kinds copied when none are configured.
var DefaultKinds = media.NewKindSet(media.MediaTypeAudio, media.MediaTypeVideo, media.MediaTypeSubtitle)

// Options configures a remux session.
type Options struct {
	Kinds   media.KindSet
	Format  string
	Logger  *slog.Logger
	Session string
}

// Option mutates Options.
type Option func(*Options)

// WithKinds sets the relevant content kinds.
func WithKinds(kinds media.KindSet) Option {
	return func(o *Options) {
		o.Kinds = kinds
	}
}

// WithFormat forces the output format instead of guessing from the name.
func WithFormat(format string) Option {
	return func(o *Options) {
		o.Format = format
	}
}

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

// Result describes a finished session.
type Result struct {
	Session      string
	InputFormat  string
	OutputFormat string
	Mapping      *Mapping
	Inputs       []media.StreamInfo
	Outputs      []media.StreamInfo
	Stats        *Stats
}

// Remux copies the relevant streams of input into a new container at
// output without re-encoding. Every resource it acquires is released before
// it returns, on success and on failure.
func Remux(ctx context.Context, eng media.ContainerEngine, input, output string, opts ...Option) (*Result, error) {
	o := Options{Kinds: DefaultKinds}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Session == "" {
		o.Session = uuid.New().String()
	}
	if o.Logger == nil {
		o.Logger = util.GetLogger().With("component", "remux")
	}
	logger := o.Logger.With("session", o.Session)

	in, err := eng.OpenInput(input)
	if err != nil {
		return nil, media.WrapError(media.OpenError, err, "opening input %q", input)
	}
	defer in.Close()
	logger.Debug("Input opened", "input", input, "format", in.FormatName(), "streams", len(in.Streams()))

	out, err := eng.CreateOutput(output, o.Format)
	if err != nil {
		return nil, media.WrapError(media.OpenError, err, "creating output %q", output)
	}
	lc := container.New(out, container.WithLogger(logger))
	defer lc.Close()

	mapping, err := BuildMapping(in.Streams(), out, o.Kinds, logger)
	if err != nil {
		return nil, err
	}

	if err := lc.Open(output); err != nil {
		return nil, err
	}
	if err := lc.WriteHeader(nil); err != nil {
		return nil, err
	}

	pkt := eng.AllocPacket()
	defer pkt.Free()

	stats, err := CopyPackets(ctx, in, lc, mapping, pkt, logger)
	if err != nil {
		return nil, err
	}
	inputs := media.Describe(in.Streams())
	outputFormat := out.FormatName()
	outputs := media.Describe(out.Streams())
	if err := lc.Finish(); err != nil {
		return nil, err
	}

	logger.Info("Remux finished", "input", input, "output", output,
		"read", stats.Read, "dropped", stats.Dropped, "streams", mapping.Len())

	return &Result{
		Session:      o.Session,
		InputFormat:  in.FormatName(),
		OutputFormat: outputFormat,
		Mapping:      mapping,
		Inputs:       inputs,
		Outputs:      outputs,
		Stats:        stats,
	}, nil
}
