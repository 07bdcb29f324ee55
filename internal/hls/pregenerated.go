package hls

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/grafov/m3u8"

	"songstream/internal/file"
)

var ErrNotFound = errors.New("hls resource not found")

// Pregenerated serves manifests and segments that ffmpeg wrote to disk.
type Pregenerated struct {
	Layout file.Layout
}

// Playlist reads the manifest for song and points its segment lines at the
// segment endpoint.
func (p Pregenerated) Playlist(song string) ([]byte, error) {
	raw, err := readFile(p.Layout.ManifestPath(song))
	if err != nil {
		return nil, err
	}
	return []byte(Rewrite(string(raw), song)), nil
}

// Segment returns the named segment file of song verbatim.
func (p Pregenerated) Segment(song, name string) ([]byte, error) {
	return readFile(p.Layout.SegmentPath(song, name))
}

// Rewrite replaces every line ending in the segment suffix with a
// /segment?song=&file= address. All other lines are copied unchanged. Every
// output line ends in "\n".
func Rewrite(manifest, song string) string {
	var out strings.Builder
	out.Grow(len(manifest))
	escapedSong := url.QueryEscape(song)

	scanner := bufio.NewScanner(strings.NewReader(manifest))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasSuffix(line, file.SegmentSuffix) {
			out.WriteString("/segment?song=")
			out.WriteString(escapedSong)
			out.WriteString("&file=")
			out.WriteString(url.QueryEscape(strings.TrimSpace(line)))
		} else {
			out.WriteString(line)
		}
		out.WriteByte('\n')
	}
	return out.String()
}

// Inspect decodes a media manifest and returns its segment count.
func Inspect(r io.Reader) (int, error) {
	playlist, listType, err := m3u8.DecodeFrom(r, true)
	if err != nil {
		return 0, fmt.Errorf("decode manifest: %w", err)
	}
	if listType != m3u8.MEDIA {
		return 0, errors.New("not a media playlist")
	}
	media, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok {
		return 0, errors.New("not a media playlist")
	}
	return int(media.Count()), nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path built from the media layout
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
