// Package engine composes the media engine used by the commands: the base
// engine handles inputs, codecs and containers, and the native writers can
// take over supported output formats.
package engine

import (
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/babelcloud/gbox/packages/avtool/internal/engine/native"
	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/util"
)

// Muxer selects who writes output containers.
type Muxer string

const (
	MuxerLibav  Muxer = "libav"
	MuxerNative Muxer = "native"
)

// ParseMuxer validates a configured muxer name.
func ParseMuxer(s string) (Muxer, error) {
	switch m := Muxer(strings.ToLower(strings.TrimSpace(s))); m {
	case MuxerLibav, MuxerNative:
		return m, nil
	case "":
		return MuxerLibav, nil
	}
	return "", errors.Errorf("unknown muxer %q (want %s or %s)", s, MuxerLibav, MuxerNative)
}

// Engine is a media.Engine whose CreateOutput may be served natively.
type Engine struct {
	media.Engine
	muxer  Muxer
	logger *slog.Logger
}

var _ media.Engine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for writer selection.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New wraps base.
func New(base media.Engine, muxer Muxer, opts ...Option) *Engine {
	e := &Engine{
		Engine: base,
		muxer:  muxer,
		logger: util.GetLogger().With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Muxer returns the configured writer selection.
func (e *Engine) Muxer() Muxer {
	return e.muxer
}

// CreateOutput uses a native writer when one is configured and supports the
// format, and the base engine otherwise.
func (e *Engine) CreateOutput(url, format string) (media.OutputContainer, error) {
	if e.muxer == MuxerNative {
		if name := native.Detect(url, format); name != "" {
			out, err := native.Create(url, format, native.WithLogger(e.logger.With("writer", name)))
			if err != nil {
				return nil, err
			}
			e.logger.Debug("Using native writer", "url", url, "format", name)
			return out, nil
		}
		e.logger.Debug("No native writer for output, using engine", "url", url, "format", format)
	}
	return e.Engine.CreateOutput(url, format)
}
