package detect

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
)

// stubDetector returns a fixed set of detections.
type stubDetector struct {
	detections []Detection
	err        error
}

func (s *stubDetector) Detect(_ context.Context, _ image.Image) ([]Detection, error) {
	return s.detections, s.err
}

func TestBoxAnnotator_PreservesDimensions(t *testing.T) {
	a := NewBoxAnnotator(&stubDetector{detections: []Detection{
		{X: 10, Y: 10, Width: 20, Height: 15, Class: "dog", Confidence: 0.8},
	}})

	frame := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	out, err := a.Annotate(context.Background(), frame)
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	if out.Bounds().Dx() != 64 || out.Bounds().Dy() != 48 {
		t.Errorf("Annotate() bounds = %v, want 64x48", out.Bounds())
	}
}

func TestBoxAnnotator_DrawsBox(t *testing.T) {
	a := NewBoxAnnotator(&stubDetector{detections: []Detection{
		{X: 8, Y: 8, Width: 16, Height: 16, Class: "cat", Confidence: 0.9},
	}})

	frame := image.NewNRGBA(image.Rect(0, 0, 64, 64)) // all black, alpha 0

	out, err := a.Annotate(context.Background(), frame)
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}

	want := classColor("cat")
	// Corners of the box outline must carry the class color.
	for _, p := range []image.Point{{8, 8}, {24, 8}, {8, 24}, {24, 24}} {
		r, g, b, _ := out.At(p.X, p.Y).RGBA()
		if uint8(r>>8) != want.R || uint8(g>>8) != want.G || uint8(b>>8) != want.B {
			t.Errorf("pixel %v = %v, want %v", p, out.At(p.X, p.Y), want)
		}
	}

	// A pixel inside the box, clear of the outline and the label rows,
	// must be untouched.
	if got := out.At(16, 11); got != (color.NRGBA{}) {
		t.Errorf("interior pixel = %v, want untouched", got)
	}
}

func TestBoxAnnotator_EmptyDetections(t *testing.T) {
	a := NewBoxAnnotator(&stubDetector{})

	frame := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	out, err := a.Annotate(context.Background(), frame)
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if out.At(x, y) != (color.NRGBA{}) {
				t.Fatalf("pixel (%d,%d) modified with no detections", x, y)
			}
		}
	}
}

func TestBoxAnnotator_BoxOutsideFrame(t *testing.T) {
	a := NewBoxAnnotator(&stubDetector{detections: []Detection{
		{X: -10, Y: -10, Width: 200, Height: 200, Class: "truck", Confidence: 0.5},
	}})

	frame := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	if _, err := a.Annotate(context.Background(), frame); err != nil {
		t.Fatalf("Annotate() with out-of-frame box error = %v", err)
	}
}

func TestBoxAnnotator_DetectorFault(t *testing.T) {
	detErr := errors.New("connection refused")
	a := NewBoxAnnotator(&stubDetector{err: detErr})

	_, err := a.Annotate(context.Background(), image.NewNRGBA(image.Rect(0, 0, 8, 8)))
	if !errors.Is(err, detErr) {
		t.Errorf("Annotate() error = %v, want wrapped detector error", err)
	}
}

func TestClassColor_Stable(t *testing.T) {
	if classColor("person") != classColor("person") {
		t.Error("classColor not stable for same class")
	}
}
