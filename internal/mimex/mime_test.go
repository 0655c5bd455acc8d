package mimex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtension(t *testing.T) {
	tests := []struct {
		mime string
		ext  string
	}{
		{"video/webm", "webm"},
		{"video/webm;codecs=vp9,opus", "webm"},
		{"video/mp4", "mp4"},
		{"video/quicktime", "mov"},
		{"video/x-matroska", "mkv"},
		{"application/json", "json"},
		{"application/x-unheard-of", "bin"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.ext, Extension(tc.mime), tc.mime)
	}
}

func TestDetect_EmptyFallsBackToDeclared(t *testing.T) {
	assert.Equal(t, "video/mp4", Detect(nil, "video/mp4"))
	assert.Equal(t, DefaultVideoMime, Detect(nil, ""))
}

func TestDetect_GenericPayloadKeepsDeclared(t *testing.T) {
	// A short opaque blob sniffs as octet-stream; the declared type wins.
	got := Detect([]byte{0x00, 0x01, 0x02, 0x03}, "video/webm")
	assert.Equal(t, "video/webm", got)
}
