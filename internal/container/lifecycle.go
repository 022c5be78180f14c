package container

import (
	"log/slog"

	"github.com/pkg/errors"

	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/timebase"
	"github.com/babelcloud/gbox/packages/avtool/internal/util"
)

// State is the position of an output container in its lifecycle.
type State int

const (
	StateDescribing State = iota
	StateOpened
	StateHeaderWritten
	StateFinished
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDescribing:
		return "describing"
	case StateOpened:
		return "opened"
	case StateHeaderWritten:
		return "header written"
	case StateFinished:
		return "finished"
	case StateClosed:
		return "closed"
	}
	return "invalid"
}

// Programming errors. They are never produced by the engine.
var (
	ErrInvalidState      = errors.New("invalid container state")
	ErrHeaderNotWritten  = errors.New("packet written before header")
	ErrNoStreams         = errors.New("no output streams described")
	ErrIncompleteStreams = errors.New("output stream has no codec parameters")
)

// Lifecycle drives an output container through
// describe, open, header, packets, trailer and close.
type Lifecycle struct {
	out    media.OutputContainer
	state  State
	target string
	logger *slog.Logger
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithLogger sets the logger used for lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Lifecycle) {
		l.logger = logger
	}
}

// New wraps out, which must still be in the describing phase.
func New(out media.OutputContainer, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		out:    out,
		logger: util.GetLogger().With("component", "container"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Container returns the wrapped output container.
func (l *Lifecycle) Container() media.OutputContainer {
	return l.out
}

// State returns the current state.
func (l *Lifecycle) State() State {
	return l.state
}

// Streams returns the output streams described so far.
func (l *Lifecycle) Streams() []media.Stream {
	return l.out.Streams()
}

// Open creates the output resource. Formats that manage their own I/O skip
// this step but still advance the state.
func (l *Lifecycle) Open(target string) error {
	if l.state != StateDescribing {
		return errors.Wrapf(ErrInvalidState, "open in state %s", l.state)
	}
	if l.out.NeedsFile() {
		if err := l.out.OpenIO(target); err != nil {
			return media.WrapError(media.OpenError, err, "opening output %q", target)
		}
	} else {
		l.logger.Debug("Format manages its own I/O", "format", l.out.FormatName())
	}
	l.target = target
	l.state = StateOpened
	return nil
}

// WriteHeader writes the container header. Every stream must be fully
// described at this point.
func (l *Lifecycle) WriteHeader(options map[string]string) error {
	if l.state != StateOpened {
		return errors.Wrapf(ErrInvalidState, "write header in state %s", l.state)
	}
	streams := l.out.Streams()
	if len(streams) == 0 {
		return ErrNoStreams
	}
	for _, s := range streams {
		if s.CodecParameters() == nil || s.Kind() == media.MediaTypeUnknown {
			return errors.Wrapf(ErrIncompleteStreams, "stream #%d", s.Index())
		}
	}
	if err := l.out.WriteHeader(options); err != nil {
		return media.WrapError(media.HeaderWriteError, err, "writing header to %q", l.target)
	}
	l.state = StateHeaderWritten
	l.dump(streams)
	return nil
}

// WritePacket submits p to the interleaved writer.
func (l *Lifecycle) WritePacket(p media.Packet) error {
	if l.state != StateHeaderWritten {
		return errors.Wrapf(ErrHeaderNotWritten, "state %s", l.state)
	}
	if err := l.out.WriteInterleaved(p); err != nil {
		return media.WrapError(media.PacketWriteError, err, "writing packet for stream #%d", p.StreamIndex())
	}
	return nil
}

// Finish flushes buffered packets, writes the trailer and releases the
// resource.
func (l *Lifecycle) Finish() error {
	if l.state != StateHeaderWritten {
		return errors.Wrapf(ErrInvalidState, "finish in state %s", l.state)
	}
	if err := l.out.WriteTrailer(); err != nil {
		return media.WrapError(media.PacketWriteError, err, "writing trailer to %q", l.target)
	}
	l.state = StateFinished
	return l.Close()
}

// Close releases the container on any path. It is safe to call repeatedly.
func (l *Lifecycle) Close() error {
	if l.state == StateClosed {
		return nil
	}
	if l.state != StateFinished && l.state != StateDescribing {
		l.logger.Debug("Releasing unfinished output", "target", l.target, "state", l.state.String())
	}
	l.state = StateClosed
	return errors.Wrap(l.out.Close(), "closing output")
}

func (l *Lifecycle) dump(streams []media.Stream) {
	l.logger.Debug("Output header written", "target", l.target, "format", l.out.FormatName(), "streams", len(streams))
	for _, s := range streams {
		info := s.CodecParameters().Info()
		l.logger.Debug("Output stream",
			"index", s.Index(),
			"kind", s.Kind().String(),
			"codec", info.Codec,
			"time_base", s.TimeBase().String(),
			"seconds_per_unit", timebase.Seconds(1, s.TimeBase()))
	}
}
