package native

import (
	"log/slog"
	"sync"
	"time"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"
	"github.com/pkg/errors"

	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/timebase"
)

const (
	trackTypeVideo    = 1
	trackTypeAudio    = 2
	trackTypeSubtitle = 0x11
)

// finalizeTimeout bounds the wait for the block writer to flush and close
// the destination.
const finalizeTimeout = 10 * time.Second

type matroskaCodec struct {
	id   string
	webm bool
}

var matroskaCodecs = map[string]matroskaCodec{
	"h264":      {"V_MPEG4/ISO/AVC", false},
	"hevc":      {"V_MPEGH/ISO/HEVC", false},
	"mpeg4":     {"V_MPEG4/ISO/ASP", false},
	"vp8":       {"V_VP8", true},
	"vp9":       {"V_VP9", true},
	"av1":       {"V_AV1", true},
	"opus":      {"A_OPUS", true},
	"vorbis":    {"A_VORBIS", true},
	"aac":       {"A_AAC", false},
	"mp3":       {"A_MPEG/L3", false},
	"mp2":       {"A_MPEG/L2", false},
	"ac3":       {"A_AC3", false},
	"flac":      {"A_FLAC", false},
	"pcm_s16le": {"A_PCM/INT/LIT", false},
	"webvtt":    {"S_TEXT/WEBVTT", true},
	"subrip":    {"S_TEXT/UTF8", false},
}

// webmMuxer writes WebM or Matroska through ebml-go's block writer. All
// timestamps are milliseconds, the default segment timecode scale.
type webmMuxer struct {
	docType string
	logger  *slog.Logger
	sink    *sinkCloser
	writers []webm.BlockWriteCloser

	mu    sync.Mutex
	fatal error
}

func newWebMMuxer(docType string, logger *slog.Logger) *webmMuxer {
	return &webmMuxer{docType: docType, logger: logger}
}

func (m *webmMuxer) timeBase(media.CodecInfo) timebase.Rational {
	return timebase.Millisecond
}

func (m *webmMuxer) trackEntry(st *Stream) (webm.TrackEntry, error) {
	info := st.params.info
	codec, ok := matroskaCodecs[info.Codec]
	if !ok || (m.docType == FormatWebM && !codec.webm) {
		return webm.TrackEntry{}, errors.Errorf("codec %q is not supported in %s", info.Codec, m.docType)
	}
	n := uint64(st.index + 1)
	entry := webm.TrackEntry{
		TrackNumber:  n,
		TrackUID:     n,
		CodecID:      codec.id,
		CodecPrivate: info.ExtraData,
	}
	switch info.Kind {
	case media.MediaTypeVideo:
		entry.Name = "Video"
		entry.TrackType = trackTypeVideo
		entry.Video = &webm.Video{PixelWidth: uint64(info.Width), PixelHeight: uint64(info.Height)}
		if info.Codec == "h264" {
			sps, pps, err := parameterSets(info.ExtraData)
			if err != nil {
				return webm.TrackEntry{}, errors.Wrapf(err, "stream #%d", st.index)
			}
			if len(sps) < 4 {
				return webm.TrackEntry{}, errors.Errorf("stream #%d: truncated SPS", st.index)
			}
			entry.CodecPrivate = avcDecoderConfig(sps, pps)
		}
	case media.MediaTypeAudio:
		entry.Name = "Audio"
		entry.TrackType = trackTypeAudio
		entry.Audio = &webm.Audio{SamplingFrequency: float64(info.SampleRate), Channels: uint64(info.Channels)}
	case media.MediaTypeSubtitle:
		entry.Name = "Subtitle"
		entry.TrackType = trackTypeSubtitle
	default:
		return webm.TrackEntry{}, errors.Errorf("stream #%d: %s streams are not supported", st.index, info.Kind)
	}
	return entry, nil
}

func (m *webmMuxer) writeHeader(w *sinkCloser, streams []*Stream) error {
	tracks := make([]webm.TrackEntry, 0, len(streams))
	for _, st := range streams {
		entry, err := m.trackEntry(st)
		if err != nil {
			return err
		}
		tracks = append(tracks, entry)
	}

	opts := []mkvcore.BlockWriterOption{
		mkvcore.WithEBMLHeader(webm.EBMLHeader{
			EBMLVersion:        1,
			EBMLReadVersion:    1,
			EBMLMaxIDLength:    4,
			EBMLMaxSizeLength:  8,
			DocType:            m.docType,
			DocTypeVersion:     4,
			DocTypeReadVersion: 2,
		}),
		// Packets arrive interleaved by decode time already.
		mkvcore.WithBlockInterceptor(nil),
		mkvcore.WithOnFatalHandler(func(err error) {
			m.logger.Warn("Block writer failed", "error", err)
			m.mu.Lock()
			m.fatal = err
			m.mu.Unlock()
		}),
	}
	writers, err := webm.NewSimpleBlockWriter(w, tracks, opts...)
	if err != nil {
		return errors.Wrap(err, "creating block writer")
	}
	m.sink = w
	m.writers = writers
	m.logger.Debug("Container initialized", "doc_type", m.docType, "tracks", len(tracks))
	return nil
}

func (m *webmMuxer) err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fatal
}

func (m *webmMuxer) writeSample(st *Stream, s sample) error {
	if err := m.err(); err != nil {
		return errors.Wrap(err, "block writer failed")
	}
	data := s.data
	if st.params.info.Codec == "h264" {
		var err error
		if data, err = toAVCC(data); err != nil {
			return err
		}
	}
	if _, err := m.writers[st.index].Write(s.key, s.pts, data); err != nil {
		return errors.Wrapf(err, "writing block for track %d", st.index+1)
	}
	return nil
}

// writeTrailer closes every track. The block writer closes the destination
// once the last track is closed, after it has written its final cluster.
func (m *webmMuxer) writeTrailer() error {
	for i, w := range m.writers {
		if err := w.Close(); err != nil {
			return errors.Wrapf(err, "closing track %d", i+1)
		}
	}
	select {
	case <-m.sink.done:
	case <-time.After(finalizeTimeout):
		return errors.New("timed out finalizing container")
	}
	if err := m.err(); err != nil {
		return errors.Wrap(err, "block writer failed")
	}
	return m.sink.err
}
