package transcode

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectCodecs(t *testing.T) {
	tests := []struct {
		format       string
		video, audio string
		wantVideo    string
		wantAudio    string
	}{
		{format: "mpeg", wantVideo: "mpeg1video", wantAudio: "mp2"},
		{format: "mov,mp4,m4a,3gp,3g2,mj2", wantVideo: "mpeg4", wantAudio: "aac"},
		{format: "WebM", wantVideo: "libvpx", wantAudio: "libopus"},
		{format: "wav", wantAudio: "pcm_s16le"},
		{format: "mp4", video: "libx264", wantVideo: "libx264", wantAudio: "aac"},
		{format: "mpegts", audio: NoCodec, wantVideo: "mpeg2video"},
		{format: "nut", video: "ffv1", audio: "flac", wantVideo: "ffv1", wantAudio: "flac"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			video, audio, err := selectCodecs(tt.format, tt.video, tt.audio)
			require.NoError(t, err)
			assert.Equal(t, tt.wantVideo, video)
			assert.Equal(t, tt.wantAudio, audio)
		})
	}

	_, _, err := selectCodecs("nut", "ffv1", "")
	assert.True(t, errors.Is(err, ErrNoDefaultCodec))
}

func TestCodecOptions(t *testing.T) {
	assert.Equal(t, map[string]string{"bf": "2"}, codecOptions("mpeg2video"))
	assert.Equal(t, map[string]string{"mbd": "2"}, codecOptions("mpeg1video"))
	assert.Nil(t, codecOptions("libx264"))
}
