package detect

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
)

// Static errors for detector client operations.
var (
	// ErrBaseURLRequired is returned when the detector base URL is not provided.
	ErrBaseURLRequired = errors.New("detect: base URL is required")
	// ErrServerError is returned when the model server returns a 5xx status code.
	ErrServerError = errors.New("detect: server error")
	// ErrRateLimited is returned when the model server returns a 429 status code.
	ErrRateLimited = errors.New("detect: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("detect: request failed")
)

// HTTPDetector is an HTTP implementation of Detector. It posts frames as
// base64-encoded PNG to the model server's /detect endpoint.
type HTTPDetector struct {
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPDetector.
type ClientOption func(*HTTPDetector)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(d *HTTPDetector) {
		d.httpClient = c
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(d *HTTPDetector) {
		d.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hd *HTTPDetector) {
		hd.baseBackoff = d
	}
}

// NewHTTPDetector creates a client for the external detection model server.
// The base URL must be provided.
func NewHTTPDetector(baseURL string, opts ...ClientOption) (*HTTPDetector, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}

	d := &HTTPDetector{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// detectRequest is the wire format of a detection request.
type detectRequest struct {
	ImageBase64 string `json:"image_base64"`
}

// detectResponse is the wire format of a detection response.
type detectResponse struct {
	Detections []Detection `json:"detections"`
	Error      string      `json:"error,omitempty"`
}

// Detect encodes the frame as PNG and submits it to the model server.
func (d *HTTPDetector) Detect(ctx context.Context, frame image.Image) ([]Detection, error) {
	var png bytes.Buffer
	if err := imaging.Encode(&png, frame, imaging.PNG); err != nil {
		return nil, fmt.Errorf("detect: encode frame: %w", err)
	}

	body, err := json.Marshal(detectRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(png.Bytes()),
	})
	if err != nil {
		return nil, fmt.Errorf("detect: marshal request: %w", err)
	}

	var resp detectResponse
	if err := d.doRequestWithRetry(ctx, d.baseURL+"/detect", body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, resp.Error)
	}
	return resp.Detections, nil
}

// doRequestWithRetry performs an HTTP POST with exponential backoff retry.
func (d *HTTPDetector) doRequestWithRetry(ctx context.Context, url string, body []byte, result any) error {
	var lastErr error
	backoff := d.baseBackoff

	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("detect: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := d.doRequest(ctx, url, body, result)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("detect: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (d *HTTPDetector) doRequest(ctx context.Context, url string, body []byte, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("detect: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("detect: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("detect: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("detect: unmarshal response: %w", err)
		}
	}
	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
