// Package media provides media classification, size limits, and sandbox URL
// helpers shared by the file-reading and code-execution tools.
package media

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
)

// Size limits enforced before media content is returned to the model.
const (
	MaxImageBytes = 10 * 1024 * 1024  // 10MB
	MaxMediaBytes = 100 * 1024 * 1024 // 100MB for video/audio
)

// Kind represents the type of media.
type Kind string

const (
	KindImage   Kind = "image"
	KindVideo   Kind = "video"
	KindAudio   Kind = "audio"
	KindUnknown Kind = ""
)

var kindExtensions = map[Kind][]string{
	KindImage: {".png", ".jpg", ".jpeg", ".gif", ".webp"},
	KindVideo: {".mp4", ".webm", ".mov"},
	KindAudio: {".mp3", ".wav", ".ogg", ".m4a"},
}

var extensionKind = func() map[string]Kind {
	m := make(map[string]Kind)
	for kind, exts := range kindExtensions {
		for _, ext := range exts {
			m[ext] = kind
		}
	}
	return m
}()

var extensionMIME = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
}

// Classify returns the media kind for a file extension, or KindUnknown.
func Classify(ext string) Kind {
	return extensionKind[strings.ToLower(ext)]
}

// ClassifyPath returns the media kind for a file path.
func ClassifyPath(path string) Kind {
	return Classify(filepath.Ext(path))
}

// MIMEForExtension returns the MIME type for a media extension, falling back
// to application/octet-stream.
func MIMEForExtension(ext string) string {
	if mime, ok := extensionMIME[strings.ToLower(ext)]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsMediaExtension reports whether ext belongs to any media kind.
func IsMediaExtension(ext string) bool {
	return Classify(ext) != KindUnknown
}

// SandboxURL builds a sandbox:/// URL from a workspace-relative path. The
// path is normalized to forward slashes.
func SandboxURL(relPath string) string {
	return "sandbox:///" + filepath.ToSlash(relPath)
}

// FormatSandboxRef renders a markdown reference for a sandbox media file.
func FormatSandboxRef(relPath string, kind Kind) string {
	name := filepath.Base(relPath)
	url := SandboxURL(relPath)
	switch kind {
	case KindImage:
		return fmt.Sprintf("![%s](%s)", name, url)
	case KindVideo:
		return fmt.Sprintf("[Video: %s](%s)", name, url)
	default:
		return fmt.Sprintf("[Audio: %s](%s)", name, url)
	}
}

// DataURI encodes raw bytes as an inline data: URI for multimodal replay.
func DataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Ref is the structured media entry tools attach to their result data.
type Ref struct {
	Type Kind   `json:"type"`
	Name string `json:"name"`
	URL  string `json:"url"`
	MIME string `json:"mime,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// RefsToData converts refs to the generic map shape the result envelope
// carries in data["media"].
func RefsToData(refs []Ref) []map[string]any {
	out := make([]map[string]any, 0, len(refs))
	for _, r := range refs {
		entry := map[string]any{
			"type": string(r.Type),
			"name": r.Name,
			"url":  r.URL,
		}
		if r.MIME != "" {
			entry["mime"] = r.MIME
		}
		if r.Size > 0 {
			entry["size"] = r.Size
		}
		out = append(out, entry)
	}
	return out
}
