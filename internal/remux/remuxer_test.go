package remux

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/media/mediatest"
	"github.com/babelcloud/gbox/packages/avtool/internal/timebase"
)

func sampleInput() *mediatest.Input {
	return &mediatest.Input{
		Format: "mov,mp4,m4a,3gp,3g2,mj2",
		StreamList: []*mediatest.Stream{
			mediatest.NewStream(0, media.MediaTypeVideo, "h264", timebase.New(1, 12800)),
			mediatest.NewStream(1, media.MediaTypeSubtitle, "mov_text", timebase.New(1, 1000)),
		},
		Packets: []mediatest.Packet{
			{Index: 0, Pts: 0, Dts: -512, Key: true},
			{Index: 1, Pts: 0, Dts: 0},
			{Index: 0, Pts: 1024, Dts: 0},
			{Index: 0, Pts: 512, Dts: 512},
		},
	}
}

func TestRemux(t *testing.T) {
	in := sampleInput()
	eng := &mediatest.Engine{Inputs: map[string]*mediatest.Input{"in.mp4": in}}

	res, err := Remux(context.Background(), eng, "in.mp4", "out.mkv",
		WithKinds(media.NewKindSet(media.MediaTypeAudio, media.MediaTypeVideo)),
		WithSession("test-session"))
	require.NoError(t, err)

	require.Len(t, eng.Outputs, 1)
	out := eng.Outputs[0]
	assert.Equal(t, []string{"new_stream", "open", "header", "packet", "packet", "packet", "trailer", "close"}, out.Calls)
	assert.Equal(t, "out.mkv", out.Target)
	assert.True(t, in.Closed)
	assert.True(t, eng.Allocated[0].Freed)

	for _, p := range out.Packets {
		assert.Equal(t, 0, p.Index)
	}
	assert.Equal(t, []Entry{{Input: 0, Output: 0}}, res.Mapping.Entries())
	assert.Equal(t, "test-session", res.Session)
	assert.Equal(t, 1, res.Stats.Dropped)
	assert.Len(t, res.Inputs, 2)
	assert.Len(t, res.Outputs, 1)
	assert.Equal(t, "h264", res.Outputs[0].Codec.Codec)
}

func TestRemuxReleasesOnFailure(t *testing.T) {
	t.Run("missing input", func(t *testing.T) {
		eng := &mediatest.Engine{}
		_, err := Remux(context.Background(), eng, "missing.mp4", "out.mkv")
		require.Error(t, err)
		assert.True(t, media.IsKind(err, media.OpenError))
		assert.Empty(t, eng.Outputs)
	})

	t.Run("unknown output format", func(t *testing.T) {
		in := sampleInput()
		eng := &mediatest.Engine{Inputs: map[string]*mediatest.Input{"in.mp4": in}}
		_, err := Remux(context.Background(), eng, "in.mp4", "out.xyz", WithFormat("bad"))
		require.Error(t, err)
		assert.True(t, media.IsKind(err, media.OpenError))
		assert.True(t, in.Closed)
	})

	t.Run("write failure", func(t *testing.T) {
		in := sampleInput()
		eng := &mediatest.Engine{
			Inputs: map[string]*mediatest.Input{"in.mp4": in},
			NewOutput: func(url, format string) (*mediatest.Output, error) {
				return &mediatest.Output{WriteErr: io.ErrClosedPipe}, nil
			},
		}
		_, err := Remux(context.Background(), eng, "in.mp4", "out.mkv")
		require.Error(t, err)
		assert.True(t, media.IsKind(err, media.PacketWriteError))
		assert.True(t, in.Closed)
		assert.True(t, eng.Outputs[0].Closed)
		assert.NotContains(t, eng.Outputs[0].Calls, "trailer")
	})
}
