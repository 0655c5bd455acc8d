// Package mimex maps between mime types, file extensions and sniffed
// payloads for the handful of video formats the diary records.
package mimex

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const DefaultVideoMime = "video/webm"

// Extension returns the canonical file extension (without dot) for a video
// mime type. Unknown types fall back to "bin" so a write never fails on an
// exotic recorder format.
func Extension(mimeType string) string {
	// Strip codec parameters, e.g. "video/webm;codecs=vp9".
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))

	switch mimeType {
	case "video/webm":
		return "webm"
	case "video/mp4":
		return "mp4"
	case "video/quicktime":
		return "mov"
	case "video/x-matroska":
		return "mkv"
	case "application/json":
		return "json"
	}

	if mt := mimetype.Lookup(mimeType); mt != nil && mt.Extension() != "" {
		return strings.TrimPrefix(mt.Extension(), ".")
	}
	return "bin"
}

// Detect sniffs the mime type of a payload, falling back to the declared
// type when detection yields only a generic result.
func Detect(data []byte, declared string) string {
	if len(data) == 0 {
		if declared != "" {
			return declared
		}
		return DefaultVideoMime
	}
	mt := mimetype.Detect(data)
	if mt.Is("application/octet-stream") && declared != "" {
		return declared
	}
	return mt.String()
}
