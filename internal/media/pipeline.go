package media

import "context"

// Pipeline binds one annotator to both processing paths so callers do not
// care whether a job is an image or a video.
type Pipeline struct {
	engine    *Engine
	annotator Annotator
}

// NewPipeline creates a pipeline from a video engine and an annotator.
func NewPipeline(engine *Engine, annotator Annotator) *Pipeline {
	return &Pipeline{engine: engine, annotator: annotator}
}

// AnnotateImage processes a still image from src to dst.
func (p *Pipeline) AnnotateImage(ctx context.Context, src, dst string) error {
	return AnnotateImage(ctx, p.annotator, src, dst)
}

// AnnotateVideo processes a video frame by frame from src to dst and
// returns the number of frames written.
func (p *Pipeline) AnnotateVideo(ctx context.Context, src, dst string) (int, error) {
	return p.engine.Transcode(ctx, p.annotator, src, dst)
}
