package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// Static errors for video operations.
var (
	// ErrSourceUnreadable is returned when an input file cannot be opened
	// or probed.
	ErrSourceUnreadable = errors.New("media: source unreadable")
	// ErrFrameSizeChanged is returned when an annotator returns a frame
	// with different dimensions than its input.
	ErrFrameSizeChanged = errors.New("media: annotator changed frame dimensions")
)

// Meta describes a video stream as reported by ffprobe.
type Meta struct {
	Width  int
	Height int
	// FrameRate is the stream's rational frame rate, e.g. "30/1".
	FrameRate string
}

// FPS returns the frame rate as a float, or 0 if it cannot be parsed.
func (m Meta) FPS() float64 {
	num, den, ok := strings.Cut(m.FrameRate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// Engine runs video decode and encode through the ffmpeg CLI.
type Engine struct {
	ffmpegPath  string
	ffprobePath string
}

// NewEngine creates a video engine. Empty paths default to "ffmpeg" and
// "ffprobe" resolved via PATH.
func NewEngine(ffmpegPath, ffprobePath string) *Engine {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Engine{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Probe reads width, height and frame rate from the first video stream.
// Returns ErrSourceUnreadable if ffprobe cannot read the file.
func (e *Engine) Probe(ctx context.Context, path string) (Meta, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate",
		"-of", "csv=p=0",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Meta{}, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return Meta{}, fmt.Errorf("%w: %s: %v, stderr: %s", ErrSourceUnreadable, path, err, stderr.String())
	}

	parts := strings.Split(strings.TrimSpace(stdout.String()), ",")
	if len(parts) < 3 {
		return Meta{}, fmt.Errorf("%w: %s: unexpected ffprobe output %q", ErrSourceUnreadable, path, stdout.String())
	}

	width, err := strconv.Atoi(parts[0])
	if err != nil {
		return Meta{}, fmt.Errorf("parse width: %w", err)
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil {
		return Meta{}, fmt.Errorf("parse height: %w", err)
	}

	meta := Meta{Width: width, Height: height, FrameRate: parts[2]}
	if meta.Width <= 0 || meta.Height <= 0 || meta.FPS() <= 0 {
		return Meta{}, fmt.Errorf("%w: %s: invalid stream metadata %+v", ErrSourceUnreadable, path, meta)
	}
	return meta, nil
}

// Transcode reads src frame by frame, passes every frame through the
// annotator in source order, and writes the annotated stream to dst with
// the source's resolution and frame rate, encoded as H.264.
//
// On any failure the partially written dst is removed so an incomplete
// result is never served. Returns the number of frames written.
func (e *Engine) Transcode(ctx context.Context, annotator Annotator, src, dst string) (int, error) {
	meta, err := e.Probe(ctx, src)
	if err != nil {
		return 0, err
	}

	frames, err := e.transcode(ctx, annotator, src, dst, meta)
	if err != nil {
		_ = os.Remove(dst)
		return 0, err
	}
	return frames, nil
}

func (e *Engine) transcode(ctx context.Context, annotator Annotator, src, dst string, meta Meta) (int, error) {
	// Decoder emits raw RGB frames on stdout; encoder consumes the same
	// layout on stdin. Frame order is preserved because a single goroutine
	// moves frames between the two pipes.
	// #nosec G204 - ffmpegPath is set by the application, not user input
	decode := exec.CommandContext(ctx, e.ffmpegPath,
		"-v", "error",
		"-i", src,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)
	// #nosec G204
	encode := exec.CommandContext(ctx, e.ffmpegPath,
		"-y",
		"-v", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", meta.Width, meta.Height),
		"-r", meta.FrameRate,
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		dst,
	)

	var decodeErr, encodeErr bytes.Buffer
	decode.Stderr = &decodeErr
	encode.Stderr = &encodeErr

	frameSrc, err := decode.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("decoder stdout pipe: %w", err)
	}
	frameSink, err := encode.StdinPipe()
	if err != nil {
		return 0, fmt.Errorf("encoder stdin pipe: %w", err)
	}

	if err := decode.Start(); err != nil {
		return 0, fmt.Errorf("%w: %s: start decoder: %v", ErrSourceUnreadable, src, err)
	}
	if err := encode.Start(); err != nil {
		_ = decode.Process.Kill()
		_ = decode.Wait()
		return 0, fmt.Errorf("start encoder: %w", err)
	}

	frames, loopErr := annotateStream(ctx, annotator, frameSrc, frameSink, meta)

	_ = frameSink.Close()
	if loopErr != nil {
		_ = decode.Process.Kill()
		_ = encode.Process.Kill()
		_ = decode.Wait()
		_ = encode.Wait()
		return 0, loopErr
	}

	if err := decode.Wait(); err != nil {
		_ = encode.Process.Kill()
		_ = encode.Wait()
		return 0, fmt.Errorf("%w: %s: decoder: %v, stderr: %s", ErrSourceUnreadable, src, err, decodeErr.String())
	}
	if err := encode.Wait(); err != nil {
		return 0, fmt.Errorf("encoder: %w, stderr: %s", err, encodeErr.String())
	}
	return frames, nil
}

// annotateStream moves frames from the decoder to the encoder one at a
// time, annotating each in source order.
func annotateStream(ctx context.Context, annotator Annotator, r io.Reader, w io.Writer, meta Meta) (int, error) {
	frameLen := meta.Width * meta.Height * 3
	buf := make([]byte, frameLen)
	out := make([]byte, frameLen)

	frames := 0
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil // source exhausted, normal termination
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return frames, fmt.Errorf("truncated frame %d", frames)
			}
			return frames, fmt.Errorf("read frame %d: %w", frames, err)
		}

		annotated, err := annotator.Annotate(ctx, rgbToImage(buf, meta.Width, meta.Height))
		if err != nil {
			return frames, fmt.Errorf("annotate frame %d: %w", frames, err)
		}
		if err := imageToRGB(annotated, out, meta.Width, meta.Height); err != nil {
			return frames, fmt.Errorf("frame %d: %w", frames, err)
		}
		if _, err := w.Write(out); err != nil {
			return frames, fmt.Errorf("write frame %d: %w", frames, err)
		}
		frames++
	}
}

// rgbToImage wraps a packed rgb24 buffer in an NRGBA image.
func rgbToImage(buf []byte, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		img.Pix[i*4+0] = buf[i*3+0]
		img.Pix[i*4+1] = buf[i*3+1]
		img.Pix[i*4+2] = buf[i*3+2]
		img.Pix[i*4+3] = 0xff
	}
	return img
}

// imageToRGB packs an annotated frame back into an rgb24 buffer.
func imageToRGB(img image.Image, buf []byte, width, height int) error {
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrFrameSizeChanged, b.Dx(), b.Dy(), width, height)
	}

	// Clone normalizes any image.Image into NRGBA with a zero origin.
	nrgba := imaging.Clone(img)
	for i := 0; i < width*height; i++ {
		buf[i*3+0] = nrgba.Pix[i*4+0]
		buf[i*3+1] = nrgba.Pix[i*4+1]
		buf[i*3+2] = nrgba.Pix[i*4+2]
	}
	return nil
}
