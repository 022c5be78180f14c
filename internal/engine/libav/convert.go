package libav

import (
	"github.com/asticode/go-astiav"
	"github.com/pkg/errors"

	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/timebase"
)

func toRational(r timebase.Rational) astiav.Rational {
	return astiav.NewRational(r.Num, r.Den)
}

func fromRational(r astiav.Rational) timebase.Rational {
	return timebase.New(r.Num(), r.Den())
}

func fromMediaType(t astiav.MediaType) media.MediaType {
	switch t {
	case astiav.MediaTypeVideo:
		return media.MediaTypeVideo
	case astiav.MediaTypeAudio:
		return media.MediaTypeAudio
	case astiav.MediaTypeData:
		return media.MediaTypeData
	case astiav.MediaTypeSubtitle:
		return media.MediaTypeSubtitle
	case astiav.MediaTypeAttachment:
		return media.MediaTypeAttachment
	}
	return media.MediaTypeUnknown
}

var sampleFormats = map[media.SampleFormat]astiav.SampleFormat{
	media.SampleFormatU8:   astiav.SampleFormatU8,
	media.SampleFormatS16:  astiav.SampleFormatS16,
	media.SampleFormatS16P: astiav.SampleFormatS16P,
	media.SampleFormatS32:  astiav.SampleFormatS32,
	media.SampleFormatS32P: astiav.SampleFormatS32P,
	media.SampleFormatFLT:  astiav.SampleFormatFlt,
	media.SampleFormatFLTP: astiav.SampleFormatFltp,
	media.SampleFormatDBL:  astiav.SampleFormatDbl,
	media.SampleFormatDBLP: astiav.SampleFormatDblp,
}

func toSampleFormat(f media.SampleFormat) astiav.SampleFormat {
	if sf, ok := sampleFormats[f]; ok {
		return sf
	}
	return astiav.SampleFormatNone
}

func fromSampleFormat(f astiav.SampleFormat) media.SampleFormat {
	for k, v := range sampleFormats {
		if v == f {
			return k
		}
	}
	return media.SampleFormat(f.String())
}

func toPixelFormat(f media.PixelFormat) astiav.PixelFormat {
	return astiav.FindPixelFormatByName(string(f))
}

func fromPixelFormat(f astiav.PixelFormat) media.PixelFormat {
	return media.PixelFormat(f.String())
}

// channelLayouts holds the native layout used for each channel count.
var channelLayouts = map[int]astiav.ChannelLayout{
	1: astiav.ChannelLayoutMono,
	2: astiav.ChannelLayoutStereo,
	3: astiav.ChannelLayout2Point1,
	4: astiav.ChannelLayoutQuad,
	5: astiav.ChannelLayout5Point0,
	6: astiav.ChannelLayout5Point1,
	7: astiav.ChannelLayout6Point1,
	8: astiav.ChannelLayout7Point1,
}

func channelLayout(channels int) (astiav.ChannelLayout, error) {
	l, ok := channelLayouts[channels]
	if !ok {
		return astiav.ChannelLayout{}, errors.Errorf("no channel layout for %d channels", channels)
	}
	return l, nil
}
