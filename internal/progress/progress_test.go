package progress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	tests := []struct {
		name            string
		requested       bool
		useColors       bool
		expectedNoColor bool
	}{
		{"requested with colors", true, true, false},
		{"requested without colors", true, false, true},
		{"not requested", false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(tt.requested, tt.useColors)
			// stderr is not a TTY under go test
			assert.False(t, cfg.Enabled)
			assert.Equal(t, tt.expectedNoColor, cfg.NoColor)
			assert.NotNil(t, cfg.Writer)
		})
	}
}

func TestNewDownloadBar_Disabled(t *testing.T) {
	assert.Nil(t, NewDownloadBar(Config{Enabled: false}, 100, "download"))
}

func TestNewDownloadBar_Enabled(t *testing.T) {
	var buf bytes.Buffer
	bar := NewDownloadBar(Config{Enabled: true, Writer: &buf, NoColor: true}, 1024, "download")
	require.NotNil(t, bar)

	var dst bytes.Buffer
	w := Tee(&dst, bar)
	_, err := w.Write([]byte(strings.Repeat("x", 1024)))
	require.NoError(t, err)
	Finish(bar)

	assert.Equal(t, 1024, dst.Len())
}

func TestTee_NilBar(t *testing.T) {
	var dst bytes.Buffer
	assert.Same(t, &dst, Tee(&dst, nil))
	Finish(nil)
}
