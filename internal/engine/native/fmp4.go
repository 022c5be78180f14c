package native

import (
	"log/slog"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4/seekablebuffer"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"
	"github.com/pkg/errors"

	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/timebase"
)

const (
	videoTimeScale = 90000
	// fragmentMs is the minimum fragment length. Fragments are cut on video
	// keyframes when there is video.
	fragmentMs = 1000
)

type fmp4Track struct {
	id    int
	kind  media.MediaType
	codec string
	tb    timebase.Rational
	// offset shifts decode times so the first one is not negative.
	offset  int64
	started bool
	// pending samples wait for their successor, which fixes their duration.
	pending []sample
}

func (t *fmp4Track) bufferedMs() int64 {
	if len(t.pending) < 2 {
		return 0
	}
	first, last := t.pending[0].dts, t.pending[len(t.pending)-1].dts
	return timebase.Rescale(last-first, t.tb, timebase.Millisecond)
}

// fmp4Muxer writes an init segment followed by moof/mdat fragments.
type fmp4Muxer struct {
	logger *slog.Logger
	sink   *sinkCloser
	tracks []*fmp4Track
	// cue is the track whose keyframes start fragments.
	cue int
	seq uint32
}

func newFMP4Muxer(logger *slog.Logger) *fmp4Muxer {
	return &fmp4Muxer{logger: logger, cue: -1, seq: 1}
}

func (m *fmp4Muxer) timeBase(info media.CodecInfo) timebase.Rational {
	switch info.Kind {
	case media.MediaTypeVideo:
		return timebase.New(1, videoTimeScale)
	case media.MediaTypeAudio:
		if info.SampleRate > 0 {
			return timebase.New(1, info.SampleRate)
		}
	}
	return timebase.Millisecond
}

func initCodec(info media.CodecInfo) (mp4.Codec, error) {
	switch info.Codec {
	case "h264":
		sps, pps, err := parameterSets(info.ExtraData)
		if err != nil {
			return nil, err
		}
		return &mp4.CodecH264{SPS: sps, PPS: pps}, nil
	case "mpeg4":
		if len(info.ExtraData) == 0 {
			return nil, errors.New("mpeg4 stream has no decoder configuration")
		}
		return &mp4.CodecMPEG4Video{Config: info.ExtraData}, nil
	case "aac":
		var conf mpeg4audio.AudioSpecificConfig
		if len(info.ExtraData) > 0 {
			if err := conf.Unmarshal(info.ExtraData); err != nil {
				return nil, errors.Wrap(err, "parsing AudioSpecificConfig")
			}
		} else {
			conf = mpeg4audio.AudioSpecificConfig{
				Type:         mpeg4audio.ObjectTypeAACLC,
				SampleRate:   info.SampleRate,
				ChannelCount: info.Channels,
			}
		}
		return &mp4.CodecMPEG4Audio{Config: conf}, nil
	case "opus":
		return &mp4.CodecOpus{ChannelCount: info.Channels}, nil
	}
	return nil, errors.Errorf("codec %q is not supported in fragmented mp4", info.Codec)
}

func (m *fmp4Muxer) writeHeader(w *sinkCloser, streams []*Stream) error {
	init := &fmp4.Init{}
	for _, st := range streams {
		info := st.params.info
		if info.Kind != media.MediaTypeVideo && info.Kind != media.MediaTypeAudio {
			return errors.Errorf("stream #%d: %s streams are not supported in fragmented mp4", st.index, info.Kind)
		}
		codec, err := initCodec(info)
		if err != nil {
			return errors.Wrapf(err, "stream #%d", st.index)
		}
		t := &fmp4Track{id: st.index + 1, kind: info.Kind, codec: info.Codec, tb: st.tb}
		m.tracks = append(m.tracks, t)
		if m.cue < 0 && info.Kind == media.MediaTypeVideo {
			m.cue = st.index
		}
		init.Tracks = append(init.Tracks, &fmp4.InitTrack{
			ID:        t.id,
			TimeScale: uint32(st.tb.Den),
			Codec:     codec,
		})
	}
	if m.cue < 0 && len(m.tracks) > 0 {
		m.cue = 0
	}

	var buf seekablebuffer.Buffer
	if err := init.Marshal(&buf); err != nil {
		return errors.Wrap(err, "marshaling init segment")
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, "writing init segment")
	}
	m.sink = w
	m.logger.Debug("Init segment written", "tracks", len(init.Tracks), "size", len(buf.Bytes()))
	return nil
}

func (m *fmp4Muxer) writeSample(st *Stream, s sample) error {
	t := m.tracks[st.index]
	switch t.codec {
	case "h264":
		data, err := toAVCC(s.data)
		if err != nil {
			return err
		}
		s.data = data
	case "aac":
		s.data = stripADTS(s.data)
	}
	if !t.started {
		t.started = true
		if s.dts < 0 {
			t.offset = -s.dts
		}
	}
	t.pending = append(t.pending, s)

	cue := m.tracks[m.cue]
	startsFragment := st.index == m.cue && (s.key || t.kind != media.MediaTypeVideo)
	if startsFragment && cue.bufferedMs() >= fragmentMs {
		return m.flush(false)
	}
	return nil
}

func (m *fmp4Muxer) writeTrailer() error {
	return m.flush(true)
}

// flush writes one fragment holding every pending sample that already has a
// successor, or every pending sample when final is set.
func (m *fmp4Muxer) flush(final bool) error {
	part := &fmp4.Part{SequenceNumber: m.seq}
	for _, t := range m.tracks {
		n := len(t.pending) - 1
		if final {
			n = len(t.pending)
		}
		if n <= 0 {
			continue
		}
		samples := make([]*fmp4.Sample, 0, n)
		for i := 0; i < n; i++ {
			cur := t.pending[i]
			dur := cur.duration
			if i+1 < len(t.pending) {
				dur = t.pending[i+1].dts - cur.dts
			}
			if dur < 0 {
				dur = 0
			}
			samples = append(samples, &fmp4.Sample{
				Duration:        uint32(dur),
				PTSOffset:       int32(cur.pts - cur.dts),
				IsNonSyncSample: t.kind == media.MediaTypeVideo && !cur.key,
				Payload:         cur.data,
			})
		}
		part.Tracks = append(part.Tracks, &fmp4.PartTrack{
			ID:       t.id,
			BaseTime: uint64(t.pending[0].dts + t.offset),
			Samples:  samples,
		})
		t.pending = append(t.pending[:0], t.pending[n:]...)
	}
	if len(part.Tracks) == 0 {
		return nil
	}

	var buf seekablebuffer.Buffer
	if err := part.Marshal(&buf); err != nil {
		return errors.Wrap(err, "marshaling fragment")
	}
	if _, err := m.sink.Write(buf.Bytes()); err != nil {
		return errors.Wrapf(err, "writing fragment %d", m.seq)
	}
	m.logger.Debug("Fragment written", "sequence", m.seq, "tracks", len(part.Tracks), "size", len(buf.Bytes()))
	m.seq++
	return nil
}
