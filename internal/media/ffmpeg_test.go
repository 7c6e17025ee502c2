package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// skipIfNoFFmpeg skips the test if ffmpeg or ffprobe is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH, skipping test")
	}
}

// createTestVideo creates a synthetic test video using ffmpeg's lavfi source.
func createTestVideo(t *testing.T, path string, width, height, fps, frames int) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("testsrc=size=%dx%d:rate=%d", width, height, fps),
		"-frames:v", strconv.Itoa(frames),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-pix_fmt", "yuv420p",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test video: %v\noutput: %s", err, output)
	}
}

// countFrames counts decoded frames in a video using ffprobe.
func countFrames(t *testing.T, path string) int {
	t.Helper()

	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-count_frames",
		"-show_entries", "stream=nb_read_frames",
		"-of", "csv=p=0",
		path,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("ffprobe count frames: %v\noutput: %s", err, out)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		t.Fatalf("parse frame count %q: %v", out, err)
	}
	return n
}

// taggingAnnotator marks each frame with its index and records call order.
type taggingAnnotator struct {
	calls  int
	failAt int // fail on this call (1-based), 0 means never
}

func (a *taggingAnnotator) Annotate(_ context.Context, frame image.Image) (image.Image, error) {
	a.calls++
	if a.failAt > 0 && a.calls >= a.failAt {
		return nil, errors.New("model exploded")
	}
	tagged := image.NewNRGBA(frame.Bounds())
	copyImage(tagged, frame)
	// Tag a corner block with a value derived from the frame index.
	for y := 0; y < 8 && y < tagged.Rect.Dy(); y++ {
		for x := 0; x < 8 && x < tagged.Rect.Dx(); x++ {
			tagged.Set(x, y, color.NRGBA{R: uint8(a.calls * 20), A: 0xff})
		}
	}
	return tagged, nil
}

func copyImage(dst *image.NRGBA, src image.Image) {
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, y, src.At(x, y))
		}
	}
}

func TestMetaFPS(t *testing.T) {
	tests := []struct {
		rate string
		want float64
	}{
		{"30/1", 30},
		{"30000/1001", 29.97002997002997},
		{"25", 25},
		{"0/0", 0},
		{"garbage", 0},
	}
	for _, tt := range tests {
		m := Meta{FrameRate: tt.rate}
		if got := m.FPS(); got != tt.want {
			t.Errorf("Meta{%q}.FPS() = %v, want %v", tt.rate, got, tt.want)
		}
	}
}

func TestNewEngine_Defaults(t *testing.T) {
	e := NewEngine("", "")
	if e.ffmpegPath != "ffmpeg" || e.ffprobePath != "ffprobe" {
		t.Errorf("NewEngine defaults = %q, %q", e.ffmpegPath, e.ffprobePath)
	}
}

func TestProbe(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "in.mp4")
	createTestVideo(t, src, 320, 240, 25, 5)

	e := NewEngine("", "")
	meta, err := e.Probe(context.Background(), src)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if meta.Width != 320 || meta.Height != 240 {
		t.Errorf("Probe() size = %dx%d, want 320x240", meta.Width, meta.Height)
	}
	if meta.FPS() != 25 {
		t.Errorf("Probe() fps = %v, want 25", meta.FPS())
	}
}

func TestProbe_SourceUnreadable(t *testing.T) {
	skipIfNoFFmpeg(t)

	e := NewEngine("", "")
	_, err := e.Probe(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	if !errors.Is(err, ErrSourceUnreadable) {
		t.Errorf("Probe() error = %v, want ErrSourceUnreadable", err)
	}
}

func TestTranscode_PreservesStream(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "in.mp4")
	dst := filepath.Join(tmpDir, "result_in.mp4")
	createTestVideo(t, src, 640, 480, 30, 10)

	e := NewEngine("", "")
	annotator := &taggingAnnotator{}

	frames, err := e.Transcode(context.Background(), annotator, src, dst)
	if err != nil {
		t.Fatalf("Transcode() error = %v", err)
	}
	if frames != 10 {
		t.Errorf("Transcode() frames = %d, want 10", frames)
	}
	if annotator.calls != 10 {
		t.Errorf("annotator called %d times, want 10", annotator.calls)
	}

	meta, err := e.Probe(context.Background(), dst)
	if err != nil {
		t.Fatalf("Probe(output) error = %v", err)
	}
	if meta.Width != 640 || meta.Height != 480 {
		t.Errorf("output size = %dx%d, want 640x480", meta.Width, meta.Height)
	}
	if meta.FPS() != 30 {
		t.Errorf("output fps = %v, want 30", meta.FPS())
	}
	if n := countFrames(t, dst); n != 10 {
		t.Errorf("output frame count = %d, want 10", n)
	}
}

func TestTranscode_AnnotatorFault_RemovesPartialOutput(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "in.mp4")
	dst := filepath.Join(tmpDir, "result_in.mp4")
	createTestVideo(t, src, 64, 64, 10, 6)

	e := NewEngine("", "")
	annotator := &taggingAnnotator{failAt: 3}

	_, err := e.Transcode(context.Background(), annotator, src, dst)
	if err == nil {
		t.Fatal("Transcode() expected error, got nil")
	}
	if _, statErr := os.Stat(dst); !os.IsNotExist(statErr) {
		t.Errorf("partial output %s still exists after fault", dst)
	}
}

func TestTranscode_SourceUnreadable(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "not-a-video.mp4")
	if err := os.WriteFile(src, []byte("plain text"), 0600); err != nil {
		t.Fatal(err)
	}

	e := NewEngine("", "")
	_, err := e.Transcode(context.Background(), &taggingAnnotator{}, src, filepath.Join(tmpDir, "out.mp4"))
	if !errors.Is(err, ErrSourceUnreadable) {
		t.Errorf("Transcode() error = %v, want ErrSourceUnreadable", err)
	}
}

func TestImageToRGB_SizeMismatch(t *testing.T) {
	buf := make([]byte, 4*4*3)
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	err := imageToRGB(img, buf, 4, 4)
	if !errors.Is(err, ErrFrameSizeChanged) {
		t.Errorf("imageToRGB error = %v, want ErrFrameSizeChanged", err)
	}
}

func TestRGBRoundTrip(t *testing.T) {
	const w, h = 3, 2
	in := make([]byte, w*h*3)
	for i := range in {
		in[i] = byte(i * 7)
	}

	img := rgbToImage(in, w, h)
	out := make([]byte, w*h*3)
	if err := imageToRGB(img, out, w, h); err != nil {
		t.Fatalf("imageToRGB error = %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Errorf("round trip mismatch: %v != %v", out, in)
	}
}
