// Package server provides the HTTP server for the detection API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// UploadResponse is the HTTP response after accepting an upload.
type UploadResponse struct {
	// Message is a human-readable confirmation.
	Message string `json:"message"`
	// JobID is the identifier of the background job tracking the upload.
	JobID string `json:"job_id"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Kind is the media kind, "image" or "video".
	Kind string `json:"kind"`
	// InputName is the sanitized name of the uploaded file.
	InputName string `json:"input_name"`
	// OutputName is the name of the annotated result file.
	OutputName string `json:"output_name"`
	// ResultURL is where the annotated result can be fetched (if succeeded).
	ResultURL string `json:"result_url,omitempty"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
