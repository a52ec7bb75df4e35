package magfile

import (
	"path"
	"strings"
)

// Kind is the classification of an archive entry.
type Kind int

const (
	KindIgnored Kind = iota
	KindAudio
	KindMarkdown
)

// audioMIME maps supported audio extensions to their MIME type.
var audioMIME = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".webm": "audio/webm",
}

// Classify decides whether an entry path is audio, Markdown, or ignored.
// The decision is by extension only, case-insensitive.
func Classify(p string) Kind {
	ext := strings.ToLower(path.Ext(p))
	if ext == ".md" {
		return KindMarkdown
	}
	if _, ok := audioMIME[ext]; ok {
		return KindAudio
	}
	return KindIgnored
}

// MIMEType returns the MIME type for an audio entry. Unknown extensions
// default to audio/mpeg.
func MIMEType(p string) string {
	if m, ok := audioMIME[strings.ToLower(path.Ext(p))]; ok {
		return m
	}
	return "audio/mpeg"
}
