package remux

import (
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/media/mediatest"
	"github.com/babelcloud/gbox/packages/avtool/internal/timebase"
)

func streamsOf(kinds ...media.MediaType) []media.Stream {
	out := make([]media.Stream, len(kinds))
	for i, k := range kinds {
		out[i] = mediatest.NewStream(i, k, "codec-"+k.String(), timebase.New(1, 90000))
	}
	return out
}

func TestBuildMappingVideoAndSubtitle(t *testing.T) {
	inputs := streamsOf(media.MediaTypeVideo, media.MediaTypeSubtitle)
	out := &mediatest.Output{}

	m, err := BuildMapping(inputs, out, media.NewKindSet(media.MediaTypeAudio, media.MediaTypeVideo), nil)
	require.NoError(t, err)

	assert.Equal(t, []Entry{{Input: 0, Output: 0}}, m.Entries())
	_, ok := m.Output(1)
	assert.False(t, ok)
	require.Len(t, out.StreamList, 1)
	assert.Equal(t, "codec-video", out.StreamList[0].Params.CodecInfo.Codec)
}

func TestBuildMappingCompaction(t *testing.T) {
	inputs := streamsOf(
		media.MediaTypeData,
		media.MediaTypeVideo,
		media.MediaTypeAttachment,
		media.MediaTypeAudio,
		media.MediaTypeSubtitle,
		media.MediaTypeAudio,
	)
	out := &mediatest.Output{}

	m, err := BuildMapping(inputs, out, DefaultKinds, nil)
	require.NoError(t, err)

	assert.Equal(t, []Entry{
		{Input: 1, Output: 0},
		{Input: 3, Output: 1},
		{Input: 4, Output: 2},
		{Input: 5, Output: 3},
	}, m.Entries())

	in, ok := m.Input(2)
	require.True(t, ok)
	assert.Equal(t, 4, in)
	assert.Equal(t, 4, m.Len())

	_, ok = m.Output(-1)
	assert.False(t, ok)
	_, ok = m.Output(6)
	assert.False(t, ok)
}

func TestBuildMappingResetsCodecTag(t *testing.T) {
	inputs := streamsOf(media.MediaTypeVideo)
	require.NotZero(t, inputs[0].CodecParameters().CodecTag())

	out := &mediatest.Output{}
	_, err := BuildMapping(inputs, out, DefaultKinds, nil)
	require.NoError(t, err)
	assert.Zero(t, out.StreamList[0].Params.Tag)
	assert.NotZero(t, inputs[0].CodecParameters().CodecTag())
}

// Random kind lists must always map injectively onto 0..k-1 in order.
func TestBuildMappingProperties(t *testing.T) {
	kinds := []media.MediaType{
		media.MediaTypeVideo, media.MediaTypeAudio, media.MediaTypeSubtitle,
		media.MediaTypeData, media.MediaTypeAttachment, media.MediaTypeUnknown,
	}
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		n := rng.Intn(12)
		list := make([]media.MediaType, n)
		for i := range list {
			list[i] = kinds[rng.Intn(len(kinds))]
		}
		relevant := media.NewKindSet(kinds[rng.Intn(3)], kinds[rng.Intn(len(kinds))])

		out := &mediatest.Output{}
		m, err := BuildMapping(streamsOf(list...), out, relevant, nil)
		require.NoError(t, err)

		k := 0
		for i, kind := range list {
			o, ok := m.Output(i)
			if !relevant.Has(kind) {
				assert.False(t, ok)
				continue
			}
			require.True(t, ok)
			assert.Equal(t, k, o, "input %d", i)
			k++
		}
		assert.Equal(t, k, m.Len())
		assert.Len(t, out.StreamList, k)
	}
}

func TestBuildMappingFailures(t *testing.T) {
	t.Run("stream allocation", func(t *testing.T) {
		out := &mediatest.Output{MaxStreams: 1}
		_, err := BuildMapping(streamsOf(media.MediaTypeVideo, media.MediaTypeAudio), out, DefaultKinds, nil)
		require.Error(t, err)
		assert.True(t, media.IsKind(err, media.StreamAllocationError))
	})

	t.Run("parameter copy", func(t *testing.T) {
		inputs := streamsOf(media.MediaTypeVideo)
		inputs[0].(*mediatest.Stream).Params.CopyErr = io.ErrUnexpectedEOF
		_, err := BuildMapping(inputs, &mediatest.Output{}, DefaultKinds, nil)
		require.Error(t, err)
		assert.True(t, media.IsKind(err, media.ParameterCopyError))
	})
}

func TestPlanMatchesBuildMapping(t *testing.T) {
	inputs := streamsOf(media.MediaTypeAudio, media.MediaTypeData, media.MediaTypeVideo)
	m, err := BuildMapping(inputs, &mediatest.Output{}, DefaultKinds, nil)
	require.NoError(t, err)
	assert.Equal(t, m.Entries(), Plan(media.Describe(inputs), DefaultKinds))
}
