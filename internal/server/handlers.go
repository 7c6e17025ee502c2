package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/mvaldes-dev/detection-api/internal/job"
	"github.com/mvaldes-dev/detection-api/internal/media"
	"github.com/mvaldes-dev/detection-api/internal/notify"
	"github.com/mvaldes-dev/detection-api/internal/sanitize"
	"github.com/mvaldes-dev/detection-api/internal/storage"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service *job.Service
	hub     *notify.Hub
	results *storage.FileStore
	logger  *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.Service, hub *notify.Hub, results *storage.FileStore, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service: service,
		hub:     hub,
		results: results,
		logger:  logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Index handles GET / requests with the embedded upload page.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, indexHTML)
}

// Upload handles POST /upload requests with a multipart "file" field.
// The upload is persisted and queued for background annotation; the
// response returns before any detection work happens.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required", "MISSING_FILE")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "uploaded file has no name", "MISSING_FILENAME")
		return
	}

	created, err := h.service.Dispatch(r.Context(), header.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, sanitize.ErrInvalidName):
			writeError(w, http.StatusBadRequest, "filename contains no usable characters", "INVALID_FILENAME")
		case errors.Is(err, media.ErrUnsupportedType):
			writeError(w, http.StatusBadRequest, "unsupported file type", "UNSUPPORTED_TYPE")
		case errors.Is(err, job.ErrQueueFull):
			writeError(w, http.StatusServiceUnavailable, "processing queue is full, retry later", "QUEUE_FULL")
		default:
			h.logger.Error("failed to accept upload",
				slog.String("filename", header.Filename),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to accept upload", "UPLOAD_FAILED")
		}
		return
	}

	h.logger.Info("upload accepted",
		slog.String("job_id", created.ID),
		slog.String("filename", created.InputName),
		slog.String("kind", string(created.Kind)),
	)

	writeJSON(w, http.StatusOK, UploadResponse{
		Message: "Processing started",
		JobID:   created.ID,
	})
}

// Download handles GET /download/{filename} requests, serving an
// annotated result as an attachment.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	h.serveResult(w, r, true)
}

// ServeResult handles GET /results/{filename} requests, serving an
// annotated result inline for browser display.
func (h *Handlers) ServeResult(w http.ResponseWriter, r *http.Request) {
	h.serveResult(w, r, false)
}

func (h *Handlers) serveResult(w http.ResponseWriter, r *http.Request, attachment bool) {
	name := r.PathValue("filename")
	if name == "" {
		writeError(w, http.StatusBadRequest, "filename is required", "MISSING_FILENAME")
		return
	}

	rc, err := h.results.Open(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrUnsafeName) {
			writeError(w, http.StatusNotFound, "File not found", "RESULT_NOT_FOUND")
			return
		}
		h.logger.Error("failed to open result",
			slog.String("filename", name),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read result", "RESULT_READ_FAILED")
		return
	}
	defer rc.Close()

	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	if attachment {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("result transfer interrupted",
			slog.String("filename", name),
			slog.String("error", err.Error()),
		)
	}
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	found, err := h.service.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, JobResponse{
		ID:         found.ID,
		Status:     string(found.Status),
		Kind:       string(found.Kind),
		InputName:  found.InputName,
		OutputName: found.OutputName,
		ResultURL:  found.ResultURL,
		Error:      found.Error,
	})
}

// Events handles GET /events requests with a Server-Sent Events stream
// of job completion notifications. Each event carries the job ID, the
// result filename and the URL where it can be fetched.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported", "STREAMING_UNSUPPORTED")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := h.hub.Subscribe()
	defer h.hub.Unsubscribe(events)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("failed to encode event", slog.String("error", err.Error()))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: processing_complete\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
