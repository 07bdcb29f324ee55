package hls

import (
	"fmt"
	"math"
	"net/url"

	"github.com/grafov/m3u8"
)

// Synthetic derives a playlist from the size of a single audio file under a
// constant bitrate assumption. Each segment is a byte range of the source
// file, served back through the segment endpoint.
type Synthetic struct {
	BitrateBPS     int
	SegmentSeconds int
	TargetDuration int
}

// Segment is one synthetic slice of the source file. End is inclusive.
type Segment struct {
	Start    uint64
	End      uint64
	Duration float64
}

func (s Synthetic) bytesPerSecond() uint64 {
	return uint64(s.BitrateBPS / 8)
}

// SegmentSize is the byte length of every segment but the last.
func (s Synthetic) SegmentSize() uint64 {
	return uint64(math.Floor(float64(s.bytesPerSecond()) * float64(s.SegmentSeconds)))
}

// Plan splits a file of size bytes into ceil(size/SegmentSize) segments.
func (s Synthetic) Plan(size uint64) []Segment {
	segSize := s.SegmentSize()
	if size == 0 || segSize == 0 {
		return nil
	}
	count := (size + segSize - 1) / segSize
	bps := float64(s.bytesPerSecond())
	full := float64(s.SegmentSeconds)

	out := make([]Segment, 0, count)
	for i := uint64(0); i < count; i++ {
		start := i * segSize
		end := min(start+segSize-1, size-1)
		duration := full
		if i == count-1 {
			duration = math.Min(full, float64(size-start)/bps)
		}
		out = append(out, Segment{Start: start, End: end, Duration: duration})
	}
	return out
}

// Playlist encodes the VOD media playlist for song.
func (s Synthetic) Playlist(song string, size uint64) ([]byte, error) {
	segments := s.Plan(size)
	capacity := uint(len(segments))
	if capacity == 0 {
		capacity = 1
	}
	playlist, err := m3u8.NewMediaPlaylist(0, capacity)
	if err != nil {
		return nil, fmt.Errorf("new playlist: %w", err)
	}
	playlist.SetVersion(3)
	for _, seg := range segments {
		if err := playlist.Append(SegmentURL(song, seg), seg.Duration, ""); err != nil {
			return nil, fmt.Errorf("append segment %d-%d: %w", seg.Start, seg.End, err)
		}
	}
	playlist.TargetDuration = float64(s.TargetDuration)
	playlist.MediaType = m3u8.VOD
	playlist.Close()
	return playlist.Encode().Bytes(), nil
}

// SegmentURL is the segment endpoint address of one synthetic segment.
func SegmentURL(song string, seg Segment) string {
	return fmt.Sprintf("/segment?song=%s&start=%d&end=%d", url.QueryEscape(song), seg.Start, seg.End)
}
