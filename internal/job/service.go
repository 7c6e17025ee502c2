package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/mvaldes-dev/detection-api/internal/media"
	"github.com/mvaldes-dev/detection-api/internal/notify"
	"github.com/mvaldes-dev/detection-api/internal/sanitize"
	"github.com/mvaldes-dev/detection-api/internal/storage"
)

// ErrQueueFull is returned when a dispatch would exceed the bounded worker
// queue.
var ErrQueueFull = errors.New("job: worker queue is full")

// OutputPrefix is prepended to the sanitized input filename to form the
// deterministic output filename. A client that knows its upload's name can
// compute the result name without waiting for a notification.
const OutputPrefix = "result_"

// Processor runs the annotation path appropriate for a job's media kind.
// media.Pipeline is the production implementation.
type Processor interface {
	AnnotateImage(ctx context.Context, src, dst string) error
	AnnotateVideo(ctx context.Context, src, dst string) (frames int, err error)
}

// Service accepts uploads, persists them, and runs detection jobs on a
// fixed pool of workers. Jobs run to completion once accepted; there is no
// client-side cancellation of an in-flight job.
type Service struct {
	repo      Repository
	uploads   *storage.FileStore
	results   *storage.FileStore
	processor Processor
	hub       *notify.Hub
	publisher storage.Publisher
	logger    *slog.Logger

	baseURL string
	workers int
	queue   chan string

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// ServiceOption is a function that configures a Service.
type ServiceOption func(*Service)

// WithWorkers sets the number of pool workers.
func WithWorkers(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithQueueSize sets the capacity of the dispatch queue. Dispatch rejects
// uploads with ErrQueueFull once the queue is at capacity.
func WithQueueSize(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.queue = make(chan string, n)
		}
	}
}

// WithPublisher mirrors completed results through the given publisher; the
// published URL replaces the local download locator in notifications.
func WithPublisher(p storage.Publisher) ServiceOption {
	return func(s *Service) {
		s.publisher = p
	}
}

// NewService creates a dispatcher service. baseURL is the externally
// reachable server address used to build result locators.
func NewService(repo Repository, uploads, results *storage.FileStore, processor Processor, hub *notify.Hub, baseURL string, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:      repo,
		uploads:   uploads,
		results:   results,
		processor: processor,
		hub:       hub,
		logger:    logger,
		baseURL:   baseURL,
		workers:   4,
		queue:     make(chan string, 32),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the worker pool. ctx bounds the lifetime of background
// processing; it should outlive individual HTTP requests.
func (s *Service) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		for i := 0; i < s.workers; i++ {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				for id := range s.queue {
					s.process(ctx, id)
				}
			}()
		}
	})
}

// Stop closes the queue and waits for in-flight and queued jobs to drain.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.queue)
	})
	s.wg.Wait()
}

// Dispatch accepts an upload: the filename is sanitized, the payload is
// persisted under uploads/, the media kind is classified, and a job is
// queued for background processing. Dispatch never blocks on processing;
// it returns as soon as the job is queued.
//
// Error kinds surfaced to the caller: sanitize.ErrInvalidName,
// media.ErrUnsupportedType, ErrQueueFull.
func (s *Service) Dispatch(ctx context.Context, filename string, data io.Reader) (*Job, error) {
	name, err := sanitize.Name(filename)
	if err != nil {
		return nil, err
	}

	// Persist first, classify second, mirroring the upload contract:
	// an unsupported extension still leaves the raw upload on disk.
	inputPath, err := s.uploads.Save(ctx, name, data)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	kind, err := media.Classify(name)
	if err != nil {
		return nil, err
	}

	outputName := OutputPrefix + name
	outputPath, err := s.results.Path(outputName)
	if err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}

	j := New(kind, name, inputPath, outputName, outputPath)
	if err := s.repo.Save(ctx, j); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}

	select {
	case s.queue <- j.ID:
	default:
		_ = s.repo.Delete(ctx, j.ID)
		jobsRejected.Inc()
		return nil, ErrQueueFull
	}

	jobsAccepted.WithLabelValues(string(kind)).Inc()
	s.logger.Info("job queued",
		slog.String("job_id", j.ID),
		slog.String("kind", string(kind)),
		slog.String("input", name),
		slog.String("output", outputName),
	)
	return j, nil
}

// Get retrieves a job by ID.
func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// process runs one job to completion. Faults are logged and recorded on
// the job; they never reach an HTTP response, and no notification is
// published for a failed job.
func (s *Service) process(ctx context.Context, id string) {
	j, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.logger.Error("queued job vanished",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := j.Start(); err != nil {
		s.logger.Error("job start rejected",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
		return
	}
	_ = s.repo.Save(ctx, j)

	s.logger.Info("processing job",
		slog.String("job_id", j.ID),
		slog.String("kind", string(j.Kind)),
	)

	if err := s.run(ctx, j); err != nil {
		s.fail(ctx, j, err)
		return
	}

	url := s.baseURL + "/download/" + j.OutputName
	if s.publisher != nil {
		published, err := s.publishResult(ctx, j)
		if err != nil {
			// The local result is intact; keep the local locator.
			s.logger.Warn("publish result failed",
				slog.String("job_id", j.ID),
				slog.String("error", err.Error()),
			)
		} else {
			url = published
		}
	}

	if err := j.Succeed(url); err != nil {
		s.logger.Error("job success transition rejected",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	_ = s.repo.Save(ctx, j)
	jobsSucceeded.WithLabelValues(string(j.Kind)).Inc()

	s.logger.Info("job completed",
		slog.String("job_id", j.ID),
		slog.String("url", url),
	)

	s.hub.Publish(notify.Event{
		JobID:    j.ID,
		Filename: j.OutputName,
		URL:      url,
	})
}

// run executes the media path for the job's kind.
func (s *Service) run(ctx context.Context, j *Job) error {
	switch j.Kind {
	case media.KindImage:
		return s.processor.AnnotateImage(ctx, j.InputPath, j.OutputPath)
	case media.KindVideo:
		frames, err := s.processor.AnnotateVideo(ctx, j.InputPath, j.OutputPath)
		if err != nil {
			return err
		}
		s.logger.Debug("video transcoded",
			slog.String("job_id", j.ID),
			slog.Int("frames", frames),
		)
		return nil
	default:
		return fmt.Errorf("unknown media kind %q", j.Kind)
	}
}

// fail marks the job failed and makes sure no partial output survives.
func (s *Service) fail(ctx context.Context, j *Job, cause error) {
	s.logger.Error("background processing failed",
		slog.String("job_id", j.ID),
		slog.String("kind", string(j.Kind)),
		slog.String("error", cause.Error()),
	)

	if err := s.results.Remove(ctx, j.OutputName); err != nil {
		s.logger.Warn("remove partial output failed",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := j.Fail(cause.Error()); err == nil {
		_ = s.repo.Save(ctx, j)
	}
	jobsFailed.WithLabelValues(string(j.Kind)).Inc()
}

// publishResult uploads the completed output through the publisher.
func (s *Service) publishResult(ctx context.Context, j *Job) (string, error) {
	rc, err := s.results.Open(ctx, j.OutputName)
	if err != nil {
		return "", fmt.Errorf("open result: %w", err)
	}
	defer func() { _ = rc.Close() }()

	url, err := s.publisher.Publish(ctx, j.OutputName, rc)
	if err != nil {
		return "", err
	}
	return url, nil
}
