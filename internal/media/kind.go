// Package media provides media classification and annotation-driven
// processing for still images and videos.
package media

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrUnsupportedType is returned when a filename's extension maps to
// neither a supported image nor a supported video format.
var ErrUnsupportedType = errors.New("media: unsupported file type")

// Kind is the processing kind derived from a filename's extension.
type Kind string

const (
	// KindImage marks a still image processed in a single annotation pass.
	KindImage Kind = "image"
	// KindVideo marks a video processed frame by frame.
	KindVideo Kind = "video"
)

var (
	imageExts = map[string]struct{}{
		".jpg": {}, ".jpeg": {}, ".png": {}, ".bmp": {},
	}
	videoExts = map[string]struct{}{
		".mp4": {}, ".avi": {}, ".mov": {}, ".mkv": {},
	}
)

// Classify maps a filename to its processing kind by case-insensitive
// extension match. It is pure: no file is opened.
func Classify(filename string) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := imageExts[ext]; ok {
		return KindImage, nil
	}
	if _, ok := videoExts[ext]; ok {
		return KindVideo, nil
	}
	return "", ErrUnsupportedType
}
