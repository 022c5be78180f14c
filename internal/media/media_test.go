package media

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKinds(t *testing.T) {
	set, err := ParseKinds([]string{"audio,video", " Subtitle "})
	require.NoError(t, err)
	assert.True(t, set.Has(MediaTypeAudio))
	assert.True(t, set.Has(MediaTypeVideo))
	assert.True(t, set.Has(MediaTypeSubtitle))
	assert.False(t, set.Has(MediaTypeData))
	assert.Equal(t, "audio,subtitle,video", set.String())

	_, err = ParseKinds([]string{"audio", "smell"})
	assert.Error(t, err)

	_, err = ParseKinds([]string{""})
	assert.Error(t, err)
}

func TestMediaTypeString(t *testing.T) {
	assert.Equal(t, "video", MediaTypeVideo.String())
	assert.Equal(t, "unknown", MediaType(42).String())
}

func TestErrorKinds(t *testing.T) {
	cause := io.ErrShortWrite
	err := WrapError(PacketWriteError, cause, "writing packet for stream #%d", 1)
	wrapped := errors.Wrap(err, "remux")

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, PacketWriteError, kind)
	assert.True(t, IsKind(wrapped, PacketWriteError))
	assert.False(t, IsKind(wrapped, OpenError))
	assert.True(t, errors.Is(wrapped, io.ErrShortWrite))
	assert.Equal(t, "remux: packet write error: writing packet for stream #1: short write", wrapped.Error())

	_, ok = KindOf(cause)
	assert.False(t, ok)

	bare := WrapError(StreamAllocationError, nil, "allocating stream")
	assert.Equal(t, "stream allocation error: allocating stream", bare.Error())
}
