package media

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Annotator overlays detected-object markers onto a decoded frame.
// Implementations are treated as opaque collaborators with unspecified
// latency; the model behind them is out of this package's scope.
type Annotator interface {
	Annotate(ctx context.Context, frame image.Image) (image.Image, error)
}

// AnnotateImage runs a still image through the annotator and writes the
// result to dst. The output format follows dst's extension.
// Returns ErrSourceUnreadable when src cannot be opened or decoded.
func AnnotateImage(ctx context.Context, annotator Annotator, src, dst string) error {
	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, src, err)
	}

	annotated, err := annotator.Annotate(ctx, img)
	if err != nil {
		return fmt.Errorf("annotate image: %w", err)
	}

	if err := imaging.Save(annotated, dst); err != nil {
		return fmt.Errorf("save annotated image: %w", err)
	}
	return nil
}
