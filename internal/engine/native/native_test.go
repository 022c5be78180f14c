package native

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/at-wat/ebml-go"
	"github.com/at-wat/ebml-go/webm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/media/mediatest"
	"github.com/babelcloud/gbox/packages/avtool/internal/timebase"
)

type bufferCloser struct {
	bytes.Buffer
	closed int
}

func (b *bufferCloser) Close() error {
	b.closed++
	return nil
}

func newOutput(t *testing.T, url string, infos ...media.CodecInfo) (*Output, *bufferCloser) {
	t.Helper()
	buf := &bufferCloser{}
	out, err := Create(url, "", WithWriter(buf))
	require.NoError(t, err)
	for _, info := range infos {
		s, err := out.NewStream()
		require.NoError(t, err)
		require.NoError(t, s.CodecParameters().(media.InfoSetter).SetInfo(info))
	}
	require.NoError(t, out.OpenIO(url))
	return out, buf
}

func TestDetect(t *testing.T) {
	assert.Equal(t, FormatWebM, Detect("a.webm", ""))
	assert.Equal(t, FormatMatroska, Detect("a.MKV", ""))
	assert.Equal(t, FormatMP4, Detect("a.mp4", ""))
	assert.Equal(t, FormatMatroska, Detect("a.bin", "matroska"))
	assert.Equal(t, "", Detect("a.mp4", "mov"))
	assert.Equal(t, "", Detect("a.avi", ""))

	_, err := Create("a.avi", "")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParamsCopyCanonicalizesCodec(t *testing.T) {
	src := mediatest.NewStream(0, media.MediaTypeVideo, "libvpx", timebase.New(1, 25))
	src.Params.CodecInfo.ExtraData = []byte{1, 2}
	dst := &Params{}

	require.NoError(t, src.Params.CopyTo(dst))
	assert.Equal(t, "vp8", dst.Info().Codec)
	assert.Equal(t, media.MediaTypeVideo, dst.Kind())

	src.Params.CodecInfo.ExtraData[0] = 9
	assert.Equal(t, []byte{1, 2}, dst.Info().ExtraData)
}

func TestWebMOutput(t *testing.T) {
	out, buf := newOutput(t, "out.webm",
		media.CodecInfo{Kind: media.MediaTypeVideo, Codec: "libvpx", Width: 64, Height: 48},
		media.CodecInfo{Kind: media.MediaTypeAudio, Codec: "opus", SampleRate: 48000, Channels: 2, ExtraData: []byte("OpusHead")},
	)
	require.NoError(t, out.WriteHeader(nil))
	for _, s := range out.Streams() {
		assert.Equal(t, timebase.Millisecond, s.TimeBase())
	}

	for i := 0; i < 10; i++ {
		ts := int64(i * 40)
		require.NoError(t, out.WriteInterleaved(&mediatest.Packet{Index: 0, Pts: ts, Dts: ts, Key: i == 0, Payload: []byte{byte(i)}}))
		require.NoError(t, out.WriteInterleaved(&mediatest.Packet{Index: 1, Pts: ts, Dts: ts, Key: true, Payload: []byte{0xfc, byte(i)}}))
	}
	require.NoError(t, out.WriteTrailer())
	require.NoError(t, out.Close())
	assert.Equal(t, 1, buf.closed)

	var doc struct {
		Header  webm.EBMLHeader `ebml:"EBML"`
		Segment webm.Segment    `ebml:"Segment"`
	}
	require.NoError(t, ebml.Unmarshal(bytes.NewReader(buf.Bytes()), &doc))
	assert.Equal(t, "webm", doc.Header.DocType)
	require.Len(t, doc.Segment.Tracks.TrackEntry, 2)
	assert.Equal(t, "V_VP8", doc.Segment.Tracks.TrackEntry[0].CodecID)
	assert.Equal(t, "A_OPUS", doc.Segment.Tracks.TrackEntry[1].CodecID)
	assert.Equal(t, []byte("OpusHead"), doc.Segment.Tracks.TrackEntry[1].CodecPrivate)

	blocks := map[uint64]int{}
	for _, c := range doc.Segment.Cluster {
		for _, b := range c.SimpleBlock {
			blocks[b.TrackNumber]++
		}
	}
	assert.Equal(t, map[uint64]int{1: 10, 2: 10}, blocks)
}

func TestMatroskaOutputH264(t *testing.T) {
	out, buf := newOutput(t, "out.mkv",
		media.CodecInfo{Kind: media.MediaTypeVideo, Codec: "h264", Width: 1920, Height: 1080, ExtraData: annexB(testSPS, testPPS)},
	)
	require.NoError(t, out.WriteHeader(nil))
	require.NoError(t, out.WriteInterleaved(&mediatest.Packet{Index: 0, Key: true, Payload: annexB(testIDR)}))
	require.NoError(t, out.WriteInterleaved(&mediatest.Packet{Index: 0, Pts: 40, Dts: 40, Payload: annexB(testPFrame)}))
	require.NoError(t, out.WriteTrailer())

	var doc struct {
		Header  webm.EBMLHeader `ebml:"EBML"`
		Segment webm.Segment    `ebml:"Segment"`
	}
	require.NoError(t, ebml.Unmarshal(bytes.NewReader(buf.Bytes()), &doc))
	assert.Equal(t, "matroska", doc.Header.DocType)
	require.Len(t, doc.Segment.Tracks.TrackEntry, 1)
	assert.Equal(t, avcDecoderConfig(testSPS, testPPS), doc.Segment.Tracks.TrackEntry[0].CodecPrivate)

	require.NotEmpty(t, doc.Segment.Cluster)
	first := doc.Segment.Cluster[0].SimpleBlock[0]
	require.Len(t, first.Data, 1)
	assert.Equal(t, append([]byte{0, 0, 0, 5}, testIDR...), first.Data[0])
}

func TestWebMRejectsForeignCodecs(t *testing.T) {
	out, _ := newOutput(t, "out.webm", media.CodecInfo{Kind: media.MediaTypeVideo, Codec: "h264", ExtraData: annexB(testSPS, testPPS)})
	err := out.WriteHeader(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported in webm")
}

// topLevelBoxes lists the ISO BMFF box types of b.
func topLevelBoxes(t *testing.T, b []byte) []string {
	t.Helper()
	var types []string
	for len(b) > 0 {
		require.GreaterOrEqual(t, len(b), 8)
		size := int(binary.BigEndian.Uint32(b))
		require.GreaterOrEqual(t, size, 8)
		require.LessOrEqual(t, size, len(b))
		types = append(types, string(b[4:8]))
		b = b[size:]
	}
	return types
}

func TestFMP4Output(t *testing.T) {
	out, buf := newOutput(t, "out.mp4",
		media.CodecInfo{Kind: media.MediaTypeVideo, Codec: "libx264", Width: 1920, Height: 1080, ExtraData: avcDecoderConfig(testSPS, testPPS)},
		media.CodecInfo{Kind: media.MediaTypeAudio, Codec: "aac", SampleRate: 48000, Channels: 2},
	)
	require.NoError(t, out.WriteHeader(nil))
	streams := out.Streams()
	assert.Equal(t, timebase.New(1, 90000), streams[0].TimeBase())
	assert.Equal(t, timebase.New(1, 48000), streams[1].TimeBase())
	assert.Equal(t, []string{"ftyp", "moov"}, topLevelBoxes(t, buf.Bytes()))

	// Two seconds of 30 fps video with a keyframe every second, and AAC
	// frames of 1024 samples.
	audio := int64(0)
	for i := 0; i < 60; i++ {
		ts := int64(i * 3000)
		payload := annexB(testPFrame)
		if i%30 == 0 {
			payload = annexB(testIDR)
		}
		require.NoError(t, out.WriteInterleaved(&mediatest.Packet{Index: 0, Pts: ts, Dts: ts, Dur: 3000, Key: i%30 == 0, Payload: payload}))
		for audio*90000 < (ts+3000)*48000 {
			require.NoError(t, out.WriteInterleaved(&mediatest.Packet{Index: 1, Pts: audio, Dts: audio, Dur: 1024, Key: true, Payload: []byte{0x21, 0x10}}))
			audio += 1024
		}
	}
	require.NoError(t, out.WriteTrailer())
	require.NoError(t, out.Close())

	boxes := topLevelBoxes(t, buf.Bytes())
	assert.Equal(t, []string{"ftyp", "moov", "moof", "mdat", "moof", "mdat"}, boxes)
}

func TestFMP4RejectsUnsupported(t *testing.T) {
	tests := []struct {
		name string
		info media.CodecInfo
	}{
		{"subtitle", media.CodecInfo{Kind: media.MediaTypeSubtitle, Codec: "mov_text"}},
		{"h264 without extradata", media.CodecInfo{Kind: media.MediaTypeVideo, Codec: "h264"}},
		{"vorbis", media.CodecInfo{Kind: media.MediaTypeAudio, Codec: "vorbis", SampleRate: 44100, Channels: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := newOutput(t, "out.mp4", tt.info)
			assert.Error(t, out.WriteHeader(nil))
		})
	}
}

func TestOutputMisuse(t *testing.T) {
	out, _ := newOutput(t, "out.mkv", media.CodecInfo{Kind: media.MediaTypeAudio, Codec: "flac", SampleRate: 44100, Channels: 2})
	assert.Error(t, out.WriteInterleaved(&mediatest.Packet{}))
	require.NoError(t, out.WriteHeader(nil))

	_, err := out.NewStream()
	assert.Error(t, err)

	pkt := &mediatest.Packet{Index: 4, Payload: []byte{1}}
	assert.Error(t, out.WriteInterleaved(pkt))
	assert.Equal(t, 1, pkt.Unrefs)
}
