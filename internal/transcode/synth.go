package transcode

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/timebase"
)

const (
	toneHz        = 110.0
	toneAmplitude = 10000.0
)

var microsecond = timebase.New(1, 1_000_000)

// exhausted reports whether the next frame of st would start at or after d.
// The cursor never moves back, so once true it stays true.
func exhausted(st *OutputStream, d time.Duration) bool {
	return timebase.Compare(st.NextPTS, st.TimeBase(), d.Microseconds(), microsecond) >= 0
}

// AudioSynth generates a tone that starts at 110 Hz and rises by 110 Hz
// every second, as interleaved signed 16-bit samples.
type AudioSynth struct {
	duration  time.Duration
	format    media.AudioFormat
	nbSamples int

	t, tincr, tincr2 float64
	buf              []byte
	done             bool
}

// NewAudioSynth returns a synthesizer producing nbSamples per frame.
func NewAudioSynth(duration time.Duration, sampleRate, channels, nbSamples int) *AudioSynth {
	tincr := 2 * math.Pi * toneHz / float64(sampleRate)
	return &AudioSynth{
		duration:  duration,
		format:    media.AudioFormat{SampleFormat: media.SampleFormatS16, SampleRate: sampleRate, Channels: channels},
		nbSamples: nbSamples,
		tincr:     tincr,
		tincr2:    tincr / float64(sampleRate),
		buf:       make([]byte, nbSamples*channels*2),
	}
}

// Format is the raw format the synthesizer writes.
func (a *AudioSynth) Format() media.AudioFormat {
	return a.format
}

// FrameSamples is the number of samples per frame.
func (a *AudioSynth) FrameSamples() int {
	return a.nbSamples
}

func (a *AudioSynth) fill() {
	i := 0
	for j := 0; j < a.nbSamples; j++ {
		v := uint16(int16(math.Sin(a.t) * toneAmplitude))
		for c := 0; c < a.format.Channels; c++ {
			binary.LittleEndian.PutUint16(a.buf[i:], v)
			i += 2
		}
		a.t += a.tincr
		a.tincr += a.tincr2
	}
}

// Next implements Synthesizer.
func (a *AudioSynth) Next(st *OutputStream) (media.Frame, error) {
	if a.done || exhausted(st, a.duration) {
		a.done = true
		return nil, nil
	}
	a.fill()

	if st.Resampler == nil {
		if err := st.Frame.MakeWritable(); err != nil {
			return nil, media.WrapError(media.BufferWritabilityError, err, "making audio frame writable")
		}
		if err := st.Frame.SetBytes(a.buf); err != nil {
			return nil, media.WrapError(media.BufferWritabilityError, err, "filling audio frame")
		}
	} else if err := a.convert(st); err != nil {
		return nil, err
	}

	rate := timebase.New(1, a.format.SampleRate)
	st.Frame.SetPTS(timebase.Rescale(st.SamplesCount, rate, st.TimeBase()))
	st.SamplesCount += int64(a.nbSamples)
	st.NextPTS += int64(a.nbSamples)
	return st.Frame, nil
}

// convert resamples the synthesized buffer into the encoder's format. The
// sample rate never changes, so the resampler must neither buffer nor drop
// samples.
func (a *AudioSynth) convert(st *OutputStream) error {
	if st.TmpFrame == nil {
		return media.WrapError(media.ResampleError, errors.New("no source frame"), "resampling audio")
	}
	st.TmpFrame.SetPTS(st.NextPTS)
	if err := st.TmpFrame.SetBytes(a.buf); err != nil {
		return media.WrapError(media.BufferWritabilityError, err, "filling audio source frame")
	}

	want := st.Resampler.Delay(a.format.SampleRate) + int64(a.nbSamples)
	if want != int64(a.nbSamples) {
		return media.WrapError(media.ResampleError, nil,
			"resampler would output %d samples for %d input samples", want, a.nbSamples)
	}
	if err := st.Frame.MakeWritable(); err != nil {
		return media.WrapError(media.BufferWritabilityError, err, "making audio frame writable")
	}
	got, err := st.Resampler.Convert(st.TmpFrame, st.Frame)
	if err != nil {
		return media.WrapError(media.ResampleError, err, "converting audio frame")
	}
	if int64(got) != want {
		return media.WrapError(media.ResampleError, nil, "resampler produced %d samples, expected %d", got, want)
	}
	return nil
}

// VideoSynth generates a moving gradient in planar YUV 4:2:0.
type VideoSynth struct {
	duration time.Duration
	format   media.VideoFormat
	codecs   media.CodecEngine
	buf      []byte
	done     bool
}

// NewVideoSynth returns a synthesizer for width x height pictures. codecs is
// used to create a scaler on first use when the encoder wants another pixel
// format.
func NewVideoSynth(duration time.Duration, width, height int, codecs media.CodecEngine) *VideoSynth {
	cw, ch := (width+1)/2, (height+1)/2
	return &VideoSynth{
		duration: duration,
		format:   media.VideoFormat{PixelFormat: media.PixelFormatYUV420P, Width: width, Height: height},
		codecs:   codecs,
		buf:      make([]byte, width*height+2*cw*ch),
	}
}

// Format is the raw format the synthesizer writes.
func (v *VideoSynth) Format() media.VideoFormat {
	return v.format
}

func (v *VideoSynth) fill(i int) {
	w, h := v.format.Width, v.format.Height
	cw, ch := (w+1)/2, (h+1)/2
	y := v.buf[:w*h]
	cb := v.buf[w*h : w*h+cw*ch]
	cr := v.buf[w*h+cw*ch:]

	for row := 0; row < h; row++ {
		for x := 0; x < w; x++ {
			y[row*w+x] = byte(x + row + i*3)
		}
	}
	for row := 0; row < ch; row++ {
		for x := 0; x < cw; x++ {
			cb[row*cw+x] = byte(128 + row + i*2)
			cr[row*cw+x] = byte(64 + x + i*5)
		}
	}
}

// Next implements Synthesizer.
func (v *VideoSynth) Next(st *OutputStream) (media.Frame, error) {
	if v.done || exhausted(st, v.duration) {
		v.done = true
		return nil, nil
	}
	if err := st.Frame.MakeWritable(); err != nil {
		return nil, media.WrapError(media.BufferWritabilityError, err, "making video frame writable")
	}
	v.fill(int(st.NextPTS))

	target := st.Encoder.VideoFormat()
	if target.PixelFormat == v.format.PixelFormat {
		if err := st.Frame.SetBytes(v.buf); err != nil {
			return nil, media.WrapError(media.BufferWritabilityError, err, "filling video frame")
		}
	} else {
		if st.TmpFrame == nil {
			return nil, media.WrapError(media.ScaleError, errors.New("no source frame"), "scaling video")
		}
		if st.Scaler == nil {
			sc, err := v.codecs.NewScaler(v.format, target)
			if err != nil {
				return nil, media.WrapError(media.ScaleError, err, "creating %s to %s scaler", v.format.PixelFormat, target.PixelFormat)
			}
			st.Scaler = sc
		}
		if err := st.TmpFrame.SetBytes(v.buf); err != nil {
			return nil, media.WrapError(media.BufferWritabilityError, err, "filling video source frame")
		}
		if err := st.Scaler.Scale(st.TmpFrame, st.Frame); err != nil {
			return nil, media.WrapError(media.ScaleError, err, "scaling video frame")
		}
	}

	st.Frame.SetPTS(st.NextPTS)
	st.NextPTS++
	return st.Frame, nil
}
