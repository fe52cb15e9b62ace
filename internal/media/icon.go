package media

import "strings"

// IconClass is a static fallback icon chosen by MIME class.
type IconClass string

const (
	IconImage   IconClass = "image-x-generic"
	IconAudio   IconClass = "audio-x-generic"
	IconVideo   IconClass = "video-x-generic"
	IconFolder  IconClass = "folder"
	IconUnknown IconClass = "unknown"
)

// IconForMIME chooses the static fallback icon for an item, used when a
// provider's own thumbnail endpoint returns NotFound and Thumbnailer
// generation also fails, per spec.md §4.7.
func IconForMIME(mimeType string, isDirectory bool) IconClass {
	if isDirectory {
		return IconFolder
	}
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return IconImage
	case strings.HasPrefix(mimeType, "audio/"):
		return IconAudio
	case strings.HasPrefix(mimeType, "video/"):
		return IconVideo
	default:
		return IconUnknown
	}
}
