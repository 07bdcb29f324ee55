// Package stream writes bounded slices of flat files as HTTP responses:
// whole-file, partial content, HEAD sizing and paced chunked transfer.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"songstream/internal/byterange"
	"songstream/internal/metrics"
)

var (
	ErrNotFound  = errors.New("file not found")
	ErrShortRead = errors.New("short read")
)

const (
	ContentTypeAudio   = "audio/mpeg"
	ContentTypeSegment = "video/mp2t"

	defaultWindow = 32 * 1024
)

// Source is a file opened for byte serving.
type Source struct {
	f    *os.File
	size uint64
}

// Open opens path and records its size. A missing file yields ErrNotFound.
func Open(path string) (*Source, error) {
	f, err := os.Open(path) //nolint:gosec // path built from the media layout
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}
	return &Source{f: f, size: uint64(info.Size())}, nil
}

func (s *Source) Size() uint64 { return s.size }

func (s *Source) Close() error { return s.f.Close() }

// Headers carries the per-endpoint response details.
type Headers struct {
	ContentType  string
	CacheControl string
	// Endpoint labels the bytes-served metric.
	Endpoint string
}

// Engine serves file ranges. Window and Delay only affect WriteChunked.
type Engine struct {
	Window int
	Delay  time.Duration
}

func NewEngine(window int, delay time.Duration) *Engine {
	if window <= 0 {
		window = defaultWindow
	}
	if delay < 0 {
		delay = 0
	}
	return &Engine{Window: window, Delay: delay}
}

// WriteRange writes rng of src. The status is 206 with Content-Range when the
// client asked for the range, 200 otherwise. Exactly rng.Length() bytes are
// copied starting at rng.Start; running out of file first yields ErrShortRead
// after the headers have gone out, so the connection is not reusable.
func (e *Engine) WriteRange(w http.ResponseWriter, src *Source, rng byterange.Range, h Headers) error {
	contentLength := rng.Length()

	header := w.Header()
	header.Set("Content-Type", h.ContentType)
	header.Set("Content-Length", strconv.FormatUint(contentLength, 10))
	header.Set("Accept-Ranges", "bytes")
	if h.CacheControl != "" {
		header.Set("Cache-Control", h.CacheControl)
	}
	status := http.StatusOK
	if rng.Partial {
		header.Set("Content-Range", rng.ContentRange())
		status = http.StatusPartialContent
	}
	w.WriteHeader(status)

	if contentLength == 0 {
		return nil
	}
	section := io.NewSectionReader(src.f, int64(rng.Start), int64(contentLength))
	n, err := io.CopyN(w, section, int64(contentLength))
	metrics.BytesServed.WithLabelValues(h.Endpoint).Add(float64(n))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: wrote %d of %d bytes", ErrShortRead, n, contentLength)
		}
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// WriteHead writes only the sizing headers.
func (e *Engine) WriteHead(w http.ResponseWriter, size uint64, contentType string) {
	header := w.Header()
	header.Set("Content-Length", strconv.FormatUint(size, 10))
	header.Set("Accept-Ranges", "bytes")
	header.Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
}

// WriteChunked streams the whole of src without advertising a length. Each
// window is flushed on its own, which net/http frames as one chunk of the
// chunked transfer coding; the terminating zero-length chunk is written when
// the handler returns. Consecutive windows are paced at one per Delay.
func (e *Engine) WriteChunked(ctx context.Context, w http.ResponseWriter, src *Source, h Headers) error {
	header := w.Header()
	header.Del("Content-Length")
	header.Set("Content-Type", h.ContentType)
	if h.CacheControl != "" {
		header.Set("Cache-Control", h.CacheControl)
	}
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	limiter := e.pacer()
	reader := io.NewSectionReader(src.f, 0, int64(src.size))
	buf := make([]byte, e.Window)
	counter := metrics.BytesServed.WithLabelValues(h.Endpoint)

	for {
		n, readErr := io.ReadFull(reader, buf)
		if n > 0 {
			if err := limiter.Wait(ctx); err != nil {
				return fmt.Errorf("pace: %w", err)
			}
			if _, err := w.Write(buf[:n]); err != nil {
				return fmt.Errorf("write chunk: %w", err)
			}
			counter.Add(float64(n))
			if flusher != nil {
				flusher.Flush()
			}
		}
		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF):
			return nil
		default:
			return fmt.Errorf("read chunk: %w", readErr)
		}
	}
}

func (e *Engine) pacer() *rate.Limiter {
	if e.Delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(e.Delay), 1)
}
