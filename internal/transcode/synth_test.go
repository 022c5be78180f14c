package transcode

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/media/mediatest"
	"github.com/babelcloud/gbox/packages/avtool/internal/timebase"
)

func newVideoStream(t *testing.T, eng *mediatest.Engine, d time.Duration, w, h int, pixFmt media.PixelFormat) *OutputStream {
	t.Helper()
	tb := timebase.New(1, 25)
	enc, err := eng.OpenEncoder(media.EncoderConfig{
		Codec: "mpeg4", Kind: media.MediaTypeVideo, TimeBase: tb,
		Width: w, Height: h, PixelFormat: pixFmt,
	})
	require.NoError(t, err)
	frame, err := eng.AllocVideoFrame(enc.VideoFormat())
	require.NoError(t, err)
	st := &OutputStream{
		Stream:  mediatest.NewStream(0, media.MediaTypeVideo, "mpeg4", tb),
		Encoder: enc,
		Frame:   frame,
		Packet:  &mediatest.Packet{},
		Synth:   NewVideoSynth(d, w, h, eng),
	}
	if pixFmt != media.PixelFormatYUV420P {
		st.TmpFrame, err = eng.AllocVideoFrame(media.VideoFormat{PixelFormat: media.PixelFormatYUV420P, Width: w, Height: h})
		require.NoError(t, err)
	}
	return st
}

func newAudioStream(t *testing.T, eng *mediatest.Engine, d time.Duration, rate, nb int, sampleFmt media.SampleFormat) *OutputStream {
	t.Helper()
	tb := timebase.New(1, rate)
	enc, err := eng.OpenEncoder(media.EncoderConfig{
		Codec: "aac", Kind: media.MediaTypeAudio, TimeBase: tb,
		SampleFormat: sampleFmt, SampleRate: rate, Channels: 2,
	})
	require.NoError(t, err)
	format := enc.AudioFormat()
	frame, err := eng.AllocAudioFrame(format, nb)
	require.NoError(t, err)
	st := &OutputStream{
		Stream:  mediatest.NewStream(1, media.MediaTypeAudio, "aac", tb),
		Encoder: enc,
		Frame:   frame,
		Packet:  &mediatest.Packet{},
		Synth:   NewAudioSynth(d, rate, 2, nb),
	}
	if sampleFmt != media.SampleFormatS16 {
		src := media.AudioFormat{SampleFormat: media.SampleFormatS16, SampleRate: rate, Channels: 2}
		st.TmpFrame, err = eng.AllocAudioFrame(src, nb)
		require.NoError(t, err)
		st.Resampler, err = eng.NewResampler(src, format)
		require.NoError(t, err)
	}
	return st
}

func TestAudioSynthTone(t *testing.T) {
	eng := &mediatest.Engine{}
	st := newAudioStream(t, eng, time.Second, 8000, 4, media.SampleFormatS16)

	f, err := st.Synth.Next(st)
	require.NoError(t, err)
	frame := f.(*mediatest.Frame)
	require.Len(t, frame.Bytes, 4*2*2)

	tincr := 2 * math.Pi * 110 / 8000
	expected := []int16{0, int16(math.Sin(tincr) * 10000)}
	for i, want := range expected {
		left := int16(binary.LittleEndian.Uint16(frame.Bytes[i*4:]))
		right := int16(binary.LittleEndian.Uint16(frame.Bytes[i*4+2:]))
		assert.Equal(t, want, left, "sample %d", i)
		assert.Equal(t, left, right, "sample %d channels differ", i)
	}
	assert.Equal(t, int64(0), frame.Pts)
	assert.Equal(t, int64(4), st.NextPTS)
	assert.Equal(t, int64(4), st.SamplesCount)
	assert.Equal(t, 1, frame.WritableHits)

	_, err = st.Synth.Next(st)
	require.NoError(t, err)
	assert.Equal(t, int64(4), frame.Pts)
}

func TestAudioSynthResamples(t *testing.T) {
	eng := &mediatest.Engine{}
	st := newAudioStream(t, eng, time.Second, 8000, 16, media.SampleFormatFLTP)

	f, err := st.Synth.Next(st)
	require.NoError(t, err)
	assert.Same(t, st.Frame, f)
	require.Len(t, eng.Resamplers, 1)
	assert.Equal(t, 1, eng.Resamplers[0].Calls)
	assert.Equal(t, st.TmpFrame.(*mediatest.Frame).Bytes, f.(*mediatest.Frame).Bytes)
}

func TestAudioSynthResampleMismatch(t *testing.T) {
	t.Run("buffered samples", func(t *testing.T) {
		eng := &mediatest.Engine{ResamplerDelay: 3}
		st := newAudioStream(t, eng, time.Second, 8000, 16, media.SampleFormatFLTP)
		_, err := st.Synth.Next(st)
		require.Error(t, err)
		assert.True(t, media.IsKind(err, media.ResampleError))
		assert.Zero(t, eng.Resamplers[0].Calls)
	})

	t.Run("short conversion", func(t *testing.T) {
		eng := &mediatest.Engine{}
		st := newAudioStream(t, eng, time.Second, 8000, 16, media.SampleFormatFLTP)
		eng.Resamplers[0].Short = 1
		_, err := st.Synth.Next(st)
		require.Error(t, err)
		assert.True(t, media.IsKind(err, media.ResampleError))
	})
}

func TestAudioSynthWritabilityFailure(t *testing.T) {
	eng := &mediatest.Engine{}
	st := newAudioStream(t, eng, time.Second, 8000, 16, media.SampleFormatS16)
	st.Frame.(*mediatest.Frame).WritableErr = assert.AnError

	_, err := st.Synth.Next(st)
	require.Error(t, err)
	assert.True(t, media.IsKind(err, media.BufferWritabilityError))
	assert.Zero(t, st.NextPTS)
}

func TestVideoSynthPattern(t *testing.T) {
	eng := &mediatest.Engine{}
	st := newVideoStream(t, eng, time.Second, 3, 3, media.PixelFormatYUV420P)

	_, err := st.Synth.Next(st)
	require.NoError(t, err)
	f, err := st.Synth.Next(st)
	require.NoError(t, err)
	frame := f.(*mediatest.Frame)

	// 3x3 luma followed by two 2x2 chroma planes.
	require.Len(t, frame.Bytes, 9+4+4)
	assert.Equal(t, []byte{3, 4, 5, 4, 5, 6, 5, 6, 7}, frame.Bytes[:9])
	assert.Equal(t, []byte{130, 130, 131, 131}, frame.Bytes[9:13])
	assert.Equal(t, []byte{69, 70, 69, 70}, frame.Bytes[13:])
	assert.Equal(t, int64(1), frame.Pts)
	assert.Equal(t, int64(2), st.NextPTS)
	assert.Empty(t, eng.Scalers)
}

func TestVideoSynthScalesToEncoderFormat(t *testing.T) {
	eng := &mediatest.Engine{}
	st := newVideoStream(t, eng, time.Second, 4, 2, media.PixelFormatRGB24)

	for i := 0; i < 3; i++ {
		_, err := st.Synth.Next(st)
		require.NoError(t, err)
	}
	require.Len(t, eng.Scalers, 1)
	sc := eng.Scalers[0]
	assert.Equal(t, 3, sc.Calls)
	assert.Equal(t, media.PixelFormatYUV420P, sc.In.PixelFormat)
	assert.Equal(t, media.PixelFormatRGB24, sc.Out.PixelFormat)
	assert.Same(t, sc, st.Scaler)
}

func TestSynthExhaustionIsIdempotent(t *testing.T) {
	eng := &mediatest.Engine{}
	video := newVideoStream(t, eng, 200*time.Millisecond, 2, 2, media.PixelFormatYUV420P)
	audio := newAudioStream(t, eng, 200*time.Millisecond, 8000, 1000, media.SampleFormatS16)

	for _, tc := range []struct {
		name   string
		st     *OutputStream
		frames int
	}{
		{"video", video, 5},
		{"audio", audio, 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			produced := 0
			for {
				f, err := tc.st.Synth.Next(tc.st)
				require.NoError(t, err)
				if f == nil {
					break
				}
				produced++
			}
			assert.Equal(t, tc.frames, produced)

			cursor := tc.st.NextPTS
			for i := 0; i < 3; i++ {
				f, err := tc.st.Synth.Next(tc.st)
				require.NoError(t, err)
				assert.Nil(t, f)
			}
			assert.Equal(t, cursor, tc.st.NextPTS)
		})
	}
}
