package detect

import (
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// palette holds the box colors cycled per object class.
var palette = []color.NRGBA{
	{R: 230, G: 57, B: 70, A: 255},
	{R: 42, G: 157, B: 143, A: 255},
	{R: 233, G: 196, B: 106, A: 255},
	{R: 69, G: 123, B: 157, A: 255},
	{R: 244, G: 162, B: 97, A: 255},
	{R: 144, G: 190, B: 109, A: 255},
}

const boxThickness = 2

// BoxAnnotator draws detection boxes and class labels onto frames.
// It satisfies the media.Annotator contract.
type BoxAnnotator struct {
	detector Detector
}

// NewBoxAnnotator creates an annotator backed by the given detector.
func NewBoxAnnotator(detector Detector) *BoxAnnotator {
	return &BoxAnnotator{detector: detector}
}

// Annotate runs detection on the frame and returns a copy with bounding
// boxes and labels rendered on top. The frame dimensions are preserved.
func (a *BoxAnnotator) Annotate(ctx context.Context, frame image.Image) (image.Image, error) {
	detections, err := a.detector.Detect(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("run detector: %w", err)
	}

	out := imaging.Clone(frame)
	for _, det := range detections {
		c := classColor(det.Class)
		drawBox(out, det, c)
		drawLabel(out, det, c)
	}
	return out, nil
}

// classColor picks a stable palette color for a class label.
func classColor(class string) color.NRGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(class))
	return palette[h.Sum32()%uint32(len(palette))]
}

// drawBox renders the rectangle outline of one detection.
func drawBox(img *image.NRGBA, det Detection, c color.NRGBA) {
	x0, y0 := det.X, det.Y
	x1, y1 := det.X+det.Width, det.Y+det.Height

	for t := 0; t < boxThickness; t++ {
		for x := x0; x <= x1; x++ {
			setClamped(img, x, y0+t, c)
			setClamped(img, x, y1-t, c)
		}
		for y := y0; y <= y1; y++ {
			setClamped(img, x0+t, y, c)
			setClamped(img, x1-t, y, c)
		}
	}
}

// drawLabel renders "class confidence" above the box, inside it when the
// box touches the top edge.
func drawLabel(img *image.NRGBA, det Detection, c color.NRGBA) {
	label := fmt.Sprintf("%s %.2f", det.Class, det.Confidence)

	y := det.Y - 4
	if y-basicfont.Face7x13.Ascent < 0 {
		y = det.Y + basicfont.Face7x13.Height + 2
	}

	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(det.X, y),
	}
	d.DrawString(label)
}

// setClamped sets a pixel if it falls inside the image bounds.
func setClamped(img *image.NRGBA, x, y int, c color.NRGBA) {
	if image.Pt(x, y).In(img.Rect) {
		img.SetNRGBA(x, y, c)
	}
}
