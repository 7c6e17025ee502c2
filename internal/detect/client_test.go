package detect

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testFrame() image.Image {
	return image.NewNRGBA(image.Rect(0, 0, 16, 16))
}

func TestNewHTTPDetector_MissingBaseURL(t *testing.T) {
	_, err := NewHTTPDetector("")
	if !errors.Is(err, ErrBaseURLRequired) {
		t.Errorf("NewHTTPDetector(\"\") error = %v, want ErrBaseURLRequired", err)
	}
}

func TestDetect_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %q", r.Method)
		}

		var req detectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if _, err := base64.StdEncoding.DecodeString(req.ImageBase64); err != nil {
			t.Errorf("image_base64 is not valid base64: %v", err)
		}

		_ = json.NewEncoder(w).Encode(detectResponse{
			Detections: []Detection{
				{X: 2, Y: 3, Width: 5, Height: 6, Class: "person", Confidence: 0.91},
			},
		})
	}))
	defer srv.Close()

	d, err := NewHTTPDetector(srv.URL)
	if err != nil {
		t.Fatalf("NewHTTPDetector() error = %v", err)
	}

	detections, err := d.Detect(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(detections) != 1 {
		t.Fatalf("Detect() returned %d detections, want 1", len(detections))
	}
	if detections[0].Class != "person" || detections[0].Confidence != 0.91 {
		t.Errorf("unexpected detection: %+v", detections[0])
	}
}

func TestDetect_ModelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(detectResponse{Error: "model not loaded"})
	}))
	defer srv.Close()

	d, _ := NewHTTPDetector(srv.URL)
	_, err := d.Detect(context.Background(), testFrame())
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("Detect() error = %v, want ErrRequestFailed", err)
	}
}

func TestDetect_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(detectResponse{})
	}))
	defer srv.Close()

	d, _ := NewHTTPDetector(srv.URL,
		WithMaxRetries(3),
		WithBaseBackoff(time.Millisecond),
	)

	if _, err := d.Detect(context.Background(), testFrame()); err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("server called %d times, want 3", calls.Load())
	}
}

func TestDetect_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	d, _ := NewHTTPDetector(srv.URL, WithBaseBackoff(time.Millisecond))

	_, err := d.Detect(context.Background(), testFrame())
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("Detect() error = %v, want ErrRequestFailed", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server called %d times, want 1", calls.Load())
	}
}

func TestDetect_MaxRetriesExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d, _ := NewHTTPDetector(srv.URL,
		WithMaxRetries(1),
		WithBaseBackoff(time.Millisecond),
	)

	_, err := d.Detect(context.Background(), testFrame())
	if !errors.Is(err, ErrServerError) {
		t.Errorf("Detect() error = %v, want ErrServerError", err)
	}
}
