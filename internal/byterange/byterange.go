// Package byterange turns a Range request header into a validated, inclusive
// byte interval against a known resource size.
package byterange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMissingRange  = errors.New("range header required")
	ErrInvalidStart  = errors.New("invalid range start")
	ErrUnsatisfiable = errors.New("range not satisfiable")
)

// Range is an inclusive byte interval [Start, End] of a resource of Total bytes.
// Partial is false when the interval was chosen by the server rather than
// asked for by the client; such responses go out as 200 instead of 206.
type Range struct {
	Start   uint64
	End     uint64
	Total   uint64
	Partial bool
}

// Length is the number of bytes covered by the range.
func (r Range) Length() uint64 {
	if r.Total == 0 {
		return 0
	}
	return r.End - r.Start + 1
}

// ContentRange formats the Content-Range header value.
func (r Range) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, r.Total)
}

// Policy decides how a header is resolved for one endpoint.
type Policy struct {
	// ChunkSize bounds an open-ended request (bytes=N-).
	ChunkSize uint64
	// RequireHeader rejects requests that carry no Range header at all.
	RequireHeader bool
}

// Strict rejects requests without a Range header.
func Strict(chunkSize uint64) Policy {
	return Policy{ChunkSize: chunkSize, RequireHeader: true}
}

// Permissive serves the whole file when no Range header is present.
func Permissive(chunkSize uint64) Policy {
	return Policy{ChunkSize: chunkSize}
}

// Resolve parses header (the raw Range value, possibly empty) for a resource
// of size bytes.
func (p Policy) Resolve(header string, size uint64) (Range, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		if p.RequireHeader {
			return Range{}, ErrMissingRange
		}
		if size == 0 {
			return Range{Total: 0}, nil
		}
		return Range{Start: 0, End: size - 1, Total: size}, nil
	}

	_, rangeSet, found := strings.Cut(header, "=")
	if !found {
		if p.RequireHeader {
			return Range{}, ErrMissingRange
		}
		// No unit separator: hand out the first chunk so the client learns
		// that ranges are supported.
		if size == 0 {
			return Range{}, ErrUnsatisfiable
		}
		return Range{Start: 0, End: p.chunkEnd(0, size), Total: size}, nil
	}

	startStr, endStr, _ := strings.Cut(strings.TrimSpace(rangeSet), "-")
	start, err := strconv.ParseUint(strings.TrimSpace(startStr), 10, 64)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidStart, startStr)
	}

	var end uint64
	if parsed, err := strconv.ParseUint(strings.TrimSpace(endStr), 10, 64); err == nil {
		end = parsed
	} else {
		if size == 0 || start >= size {
			return Range{}, ErrUnsatisfiable
		}
		end = p.chunkEnd(start, size)
	}

	r, err := Bounds(start, end, size)
	if err != nil {
		return Range{}, err
	}
	r.Partial = true
	return r, nil
}

// Bounds validates an explicit interval against size.
func Bounds(start, end, size uint64) (Range, error) {
	if start >= size || end >= size || start > end {
		return Range{}, ErrUnsatisfiable
	}
	return Range{Start: start, End: end, Total: size}, nil
}

func (p Policy) chunkEnd(start, size uint64) uint64 {
	chunk := p.ChunkSize
	if chunk == 0 {
		chunk = 1
	}
	end := start + chunk - 1
	if end < start || end > size-1 {
		return size - 1
	}
	return end
}
