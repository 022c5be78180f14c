package native

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSPS = []byte{
		0x67, 0x42, 0xc0, 0x28, 0xd9, 0x00, 0x78, 0x02,
		0x27, 0xe5, 0x84, 0x00, 0x00, 0x03, 0x00, 0x04,
		0x00, 0x00, 0x03, 0x00, 0xf0, 0x3c, 0x60, 0xc9,
		0x20,
	}
	testPPS    = []byte{0x68, 0xce, 0x38, 0x80}
	testIDR    = []byte{0x65, 0x88, 0x84, 0x00, 0x10}
	testPFrame = []byte{0x41, 0x9a, 0x24, 0x8c, 0x09}
)

func annexB(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, 0, 0, 0, 1)
		out = append(out, n...)
	}
	return out
}

func TestToAVCC(t *testing.T) {
	out, err := toAVCC(annexB(testIDR, testPFrame))
	require.NoError(t, err)
	expected := append([]byte{0, 0, 0, 5}, testIDR...)
	expected = append(expected, 0, 0, 0, 5)
	expected = append(expected, testPFrame...)
	assert.Equal(t, expected, out)

	avcc := append([]byte{0, 0, 0, 5}, testIDR...)
	out, err = toAVCC(avcc)
	require.NoError(t, err)
	assert.Equal(t, avcc, out)
}

func TestParameterSets(t *testing.T) {
	tests := []struct {
		name  string
		extra []byte
		ok    bool
	}{
		{"avcC", avcDecoderConfig(testSPS, testPPS), true},
		{"annex-b", annexB(testSPS, testPPS), true},
		{"annex-b without pps", annexB(testSPS), false},
		{"truncated avcC", avcDecoderConfig(testSPS, testPPS)[:12], false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sps, pps, err := parameterSets(tt.extra)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testSPS, sps)
			assert.Equal(t, testPPS, pps)
		})
	}
}

func TestAVCDecoderConfigLayout(t *testing.T) {
	rec := avcDecoderConfig(testSPS, testPPS)
	assert.Equal(t, []byte{0x01, 0x42, 0xc0, 0x28, 0xff, 0xe1, 0x00, byte(len(testSPS))}, rec[:8])
	assert.Len(t, rec, 11+len(testSPS)+len(testPPS))
}

func TestStripADTS(t *testing.T) {
	raw := []byte{0x21, 0x10, 0x05}
	noCRC := append([]byte{0xff, 0xf1, 0x50, 0x80, 0x01, 0x7f, 0xfc}, raw...)
	withCRC := append([]byte{0xff, 0xf0, 0x50, 0x80, 0x01, 0x7f, 0xfc, 0x00, 0x00}, raw...)

	assert.Equal(t, raw, stripADTS(noCRC))
	assert.Equal(t, raw, stripADTS(withCRC))
	assert.Equal(t, raw, stripADTS(raw))
}
