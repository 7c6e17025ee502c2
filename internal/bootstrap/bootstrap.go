// Package bootstrap provides dependency initialization for the detection API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/mvaldes-dev/detection-api/internal/config"
	"github.com/mvaldes-dev/detection-api/internal/detect"
	"github.com/mvaldes-dev/detection-api/internal/job"
	"github.com/mvaldes-dev/detection-api/internal/media"
	"github.com/mvaldes-dev/detection-api/internal/notify"
	"github.com/mvaldes-dev/detection-api/internal/server"
	"github.com/mvaldes-dev/detection-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Service  *job.Service
	Hub      *notify.Hub
	Handlers *server.Handlers
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	uploads, err := storage.NewFileStore(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("create upload store: %w", err)
	}
	results, err := storage.NewFileStore(cfg.ResultDir)
	if err != nil {
		return nil, fmt.Errorf("create result store: %w", err)
	}

	detector, err := detect.NewHTTPDetector(cfg.DetectorURL, detect.WithMaxRetries(cfg.DetectorRetries))
	if err != nil {
		return nil, fmt.Errorf("create detector client: %w", err)
	}
	annotator := detect.NewBoxAnnotator(detector)

	engine := media.NewEngine(cfg.FFmpegPath, cfg.FFprobePath)
	pipeline := media.NewPipeline(engine, annotator)

	repo := job.NewMemoryRepository()
	hub := notify.NewHub(logger)

	opts := []job.ServiceOption{
		job.WithWorkers(cfg.Workers),
		job.WithQueueSize(cfg.QueueSize),
	}
	if publisher, perr := initPublisher(cfg, logger); perr != nil {
		return nil, perr
	} else if publisher != nil {
		opts = append(opts, job.WithPublisher(publisher))
	}

	svc := job.NewService(repo, uploads, results, pipeline, hub, cfg.PublicBaseURL, logger, opts...)

	return &Dependencies{
		Service:  svc,
		Hub:      hub,
		Handlers: server.NewHandlers(svc, hub, results, logger),
	}, nil
}

// initPublisher creates the optional S3 result publisher.
func initPublisher(cfg *config.Config, logger *slog.Logger) (storage.Publisher, error) {
	if !cfg.S3Enabled() {
		return nil, nil
	}

	publisher, err := storage.NewS3Publisher(storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 publisher: %w", err)
	}
	logger.Info("S3 result publication configured",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
	)
	return publisher, nil
}
