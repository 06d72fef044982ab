package domain

import (
	"strings"

	"booking-sync/errors"

	"github.com/gabriel-vasile/mimetype"
)

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
	MediaFile  MediaKind = "file"
)

// Attachment is a single optional payload carried by a message.
// The URL points into the upload collaborator, which is out of scope here.
type Attachment struct {
	URL  string
	Kind MediaKind
}

// DetectMediaKind sniffs the content of a local file about to be sent
// and classifies it into the coarse buckets the UI understands.
func DetectMediaKind(path string) (MediaKind, error) {
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return "", errors.ErrUnknownMediaKind
	}
	return kindFromMime(mime.String()), nil
}

func kindFromMime(mime string) MediaKind {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return MediaImage
	case strings.HasPrefix(mime, "video/"):
		return MediaVideo
	case strings.HasPrefix(mime, "audio/"):
		return MediaAudio
	default:
		return MediaFile
	}
}
