package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	RenderTable(&buf, []TableColumn{
		{Header: "INDEX", Key: "index"},
		{Header: "KIND", Key: "kind"},
	}, []map[string]interface{}{
		{"index": 0, "kind": "\033[36mvideo\033[0m"},
		{"index": 12, "kind": "subtitle"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"INDEX KIND",
		"----- --------",
		"0     \033[36mvideo\033[0m",
		"12    subtitle",
	}, lines)
}

func TestRenderTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	RenderTable(&buf, []TableColumn{{Header: "A", Key: "a"}}, nil)
	assert.Equal(t, "No data to display\n", buf.String())
}

func TestSpinnerPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	sp := NewSpinner(&buf, false, "Encoding out.mpg...")
	sp.Update("ignored")
	sp.Success("Encoded out.mpg")

	sp = NewSpinner(&buf, false, "Remuxing")
	sp.Fail("Failed to remux")
	assert.Equal(t, "Encoding out.mpg...\n✓ Encoded out.mpg\nRemuxing\n✗ Failed to remux\n", buf.String())
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerTo(&buf, false)
	defer InitLogger(false)

	l := GetCompatLogger("ffmpeg")
	l.Infof("opened %s\n", "in.mp4")
	l.Debugf("hidden")
	assert.Contains(t, buf.String(), "opened in.mp4")
	assert.Contains(t, buf.String(), "component=ffmpeg")
	assert.NotContains(t, buf.String(), "hidden")
	assert.False(t, IsVerbose())

	buf.Reset()
	InitLoggerTo(&buf, true)
	assert.True(t, IsVerbose())
	GetCompatLogger("ffmpeg").Debugf("shown")
	assert.Contains(t, buf.String(), "shown")
}
