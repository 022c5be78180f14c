package transcode

import (
	"strings"

	"github.com/pkg/errors"
)

// NoCodec disables a stream when used as a codec name.
const NoCodec = "none"

type codecPair struct {
	video, audio string
}

// defaultCodecs are the encoders picked for each output format when none is
// configured. An empty name means the format carries no such stream.
var defaultCodecs = map[string]codecPair{
	"mpeg":     {"mpeg1video", "mp2"},
	"mpegts":   {"mpeg2video", "mp2"},
	"dvd":      {"mpeg2video", "mp2"},
	"vob":      {"mpeg2video", "mp2"},
	"mp4":      {"mpeg4", "aac"},
	"mov":      {"mpeg4", "aac"},
	"matroska": {"mpeg4", "ac3"},
	"webm":     {"libvpx", "libopus"},
	"avi":      {"mpeg4", "ac3"},
	"flv":      {"flv", "adpcm_swf"},
	"ogg":      {"libtheora", "flac"},
	"wav":      {"", "pcm_s16le"},
	"mp3":      {"", "libmp3lame"},
}

// ErrNoDefaultCodec is returned when a format has no default encoders and
// none were configured.
var ErrNoDefaultCodec = errors.New("no default codec for output format")

// selectCodecs resolves the video and audio encoder names for format.
// Configured names win over the table; NoCodec disables the stream.
func selectCodecs(format, video, audio string) (string, string, error) {
	pair, known := defaultCodecs[primaryFormatName(format)]
	if (video == "" || audio == "") && !known {
		return "", "", errors.Wrapf(ErrNoDefaultCodec,
			"%q: set transcode.video.codec and transcode.audio.codec", format)
	}
	if video == "" {
		video = pair.video
	}
	if audio == "" {
		audio = pair.audio
	}
	if video == NoCodec {
		video = ""
	}
	if audio == NoCodec {
		audio = ""
	}
	return video, audio, nil
}

// primaryFormatName returns the first name of a comma separated format list
// such as "mov,mp4,m4a,3gp,3g2,mj2".
func primaryFormatName(format string) string {
	name, _, _ := strings.Cut(format, ",")
	return strings.ToLower(strings.TrimSpace(name))
}

// codecOptions are the per-codec settings applied when an encoder is opened.
func codecOptions(codec string) map[string]string {
	switch codec {
	case "mpeg2video":
		// B-frames, for testing.
		return map[string]string{"bf": "2"}
	case "mpeg1video":
		// Avoids macroblocks in which some coefficients overflow.
		return map[string]string{"mbd": "2"}
	}
	return nil
}
