package media

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// MediaType is the content kind of a stream.
type MediaType int

const (
	MediaTypeUnknown MediaType = iota
	MediaTypeVideo
	MediaTypeAudio
	MediaTypeData
	MediaTypeSubtitle
	MediaTypeAttachment
)

var mediaTypeNames = map[MediaType]string{
	MediaTypeUnknown:    "unknown",
	MediaTypeVideo:      "video",
	MediaTypeAudio:      "audio",
	MediaTypeData:       "data",
	MediaTypeSubtitle:   "subtitle",
	MediaTypeAttachment: "attachment",
}

func (t MediaType) String() string {
	if name, ok := mediaTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseMediaType accepts the names printed by String.
func ParseMediaType(s string) (MediaType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for t, n := range mediaTypeNames {
		if n == name {
			return t, nil
		}
	}
	return MediaTypeUnknown, errors.Errorf("unknown media type %q", s)
}

// KindSet is a set of content kinds.
type KindSet map[MediaType]struct{}

// NewKindSet builds a set from kinds.
func NewKindSet(kinds ...MediaType) KindSet {
	set := make(KindSet, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return set
}

// ParseKinds parses names such as "audio", "video", "subtitle".
// Comma separated entries are split as well.
func ParseKinds(names []string) (KindSet, error) {
	set := KindSet{}
	for _, name := range names {
		for _, part := range strings.Split(name, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			k, err := ParseMediaType(part)
			if err != nil {
				return nil, err
			}
			set[k] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil, errors.New("no media kinds given")
	}
	return set, nil
}

// Has reports whether k is in the set.
func (s KindSet) Has(k MediaType) bool {
	_, ok := s[k]
	return ok
}

func (s KindSet) String() string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k.String())
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// SampleFormat and PixelFormat use the engine's canonical names.
type SampleFormat string

type PixelFormat string

const (
	SampleFormatS16  SampleFormat = "s16"
	SampleFormatS16P SampleFormat = "s16p"
	SampleFormatFLT  SampleFormat = "flt"
	SampleFormatFLTP SampleFormat = "fltp"
	SampleFormatS32  SampleFormat = "s32"
	SampleFormatS32P SampleFormat = "s32p"
	SampleFormatU8   SampleFormat = "u8"
	SampleFormatDBL  SampleFormat = "dbl"
	SampleFormatDBLP SampleFormat = "dblp"

	PixelFormatYUV420P  PixelFormat = "yuv420p"
	PixelFormatYUVJ420P PixelFormat = "yuvj420p"
	PixelFormatYUV422P  PixelFormat = "yuv422p"
	PixelFormatYUV444P  PixelFormat = "yuv444p"
	PixelFormatNV12     PixelFormat = "nv12"
	PixelFormatRGB24    PixelFormat = "rgb24"
	PixelFormatRGBA     PixelFormat = "rgba"
	PixelFormatGray8    PixelFormat = "gray"
)

// AudioFormat describes raw audio buffers.
type AudioFormat struct {
	SampleFormat SampleFormat
	SampleRate   int
	Channels     int
}

// VideoFormat describes raw picture buffers.
type VideoFormat struct {
	PixelFormat PixelFormat
	Width       int
	Height      int
}
