// Package detect provides the object-detection boundary: a client for the
// external model server and an annotator that renders detections onto
// frames. The model itself is an opaque collaborator; everything here
// treats it as frame in, detections out.
package detect

import (
	"context"
	"image"
)

// Detection is a single detected object in frame coordinates.
type Detection struct {
	// X, Y is the top-left corner of the bounding box.
	X int `json:"x"`
	Y int `json:"y"`
	// Width and Height are the box dimensions in pixels.
	Width  int `json:"width"`
	Height int `json:"height"`
	// Class is the detected object class label.
	Class string `json:"class"`
	// Confidence is the model's confidence score (0-1).
	Confidence float32 `json:"confidence"`
}

// Detector runs object detection on a single decoded frame.
type Detector interface {
	Detect(ctx context.Context, frame image.Image) ([]Detection, error)
}
