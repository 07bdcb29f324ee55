package hls

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grafov/m3u8"

	"songstream/internal/file"
)

func defaultSynthetic() Synthetic {
	return Synthetic{BitrateBPS: 128000, SegmentSeconds: 10, TargetDuration: 11}
}

func TestSyntheticPlanCountsAndBounds(t *testing.T) {
	s := defaultSynthetic()
	segSize := s.SegmentSize()
	if segSize != 160000 {
		t.Fatalf("segment size=%d want 160000", segSize)
	}

	sizes := []uint64{1, segSize - 1, segSize, segSize + 1, 5*segSize + 12345, 10 * segSize}
	for _, size := range sizes {
		plan := s.Plan(size)
		want := int((size + segSize - 1) / segSize)
		if len(plan) != want {
			t.Fatalf("size %d: %d segments, want %d", size, len(plan), want)
		}
		var next uint64
		for i, seg := range plan {
			if seg.Start != next {
				t.Fatalf("size %d: segment %d starts at %d, want %d", size, i, seg.Start, next)
			}
			if seg.End < seg.Start || seg.End >= size {
				t.Fatalf("size %d: segment %d has bad end %d", size, i, seg.End)
			}
			if seg.Duration > 10.0 || seg.Duration <= 0 {
				t.Fatalf("size %d: segment %d duration %f", size, i, seg.Duration)
			}
			next = seg.End + 1
		}
		if next != size {
			t.Fatalf("size %d: segments cover %d bytes", size, next)
		}
	}
}

func TestSyntheticLastSegmentDuration(t *testing.T) {
	s := defaultSynthetic()
	plan := s.Plan(s.SegmentSize() + 8000)
	if len(plan) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(plan))
	}
	if plan[0].Duration != 10 {
		t.Fatalf("first duration=%f", plan[0].Duration)
	}
	// 8000 bytes at 16000 B/s
	if plan[1].Duration != 0.5 {
		t.Fatalf("last duration=%f want 0.5", plan[1].Duration)
	}
}

func TestSyntheticPlanEmpty(t *testing.T) {
	if plan := defaultSynthetic().Plan(0); len(plan) != 0 {
		t.Fatalf("expected no segments, got %d", len(plan))
	}
}

func TestSyntheticPlaylistDecodes(t *testing.T) {
	s := defaultSynthetic()
	size := 3*s.SegmentSize() + 100
	body, err := s.Playlist("My Song & Friends", size)
	if err != nil {
		t.Fatalf("playlist: %v", err)
	}
	text := string(body)
	for _, want := range []string{"#EXTM3U", "#EXT-X-TARGETDURATION:11", "#EXT-X-ENDLIST", "#EXTINF:"} {
		if !strings.Contains(text, want) {
			t.Fatalf("playlist missing %q:\n%s", want, text)
		}
	}
	if !strings.Contains(text, "/segment?song=My+Song+%26+Friends&start=0&end=159999") {
		t.Fatalf("first segment url not found:\n%s", text)
	}

	pl, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), true)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if listType != m3u8.MEDIA {
		t.Fatalf("expected media playlist")
	}
	media := pl.(*m3u8.MediaPlaylist)
	if media.Count() != 4 {
		t.Fatalf("decoded %d segments, want 4", media.Count())
	}
	last := media.Segments[media.Count()-1]
	if last.Duration > 10.0 {
		t.Fatalf("last duration %f exceeds 10", last.Duration)
	}
}

func TestRewriteOnlyTouchesSegmentLines(t *testing.T) {
	manifest := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-VERSION:3",
		"#EXT-X-TARGETDURATION:10",
		"#EXT-X-MEDIA-SEQUENCE:0",
		"#EXT-X-PLAYLIST-TYPE:VOD",
		"#EXTINF:10.000000,",
		"Song A_000.ts",
		"#EXTINF:4.123000,",
		"Song A_001.ts",
		"#EXT-X-ENDLIST",
		"",
	}, "\n")

	got := Rewrite(manifest, "Song A")
	in := strings.Split(strings.TrimSuffix(manifest, "\n"), "\n")
	out := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if len(in) != len(out) {
		t.Fatalf("line count changed: %d -> %d", len(in), len(out))
	}
	for i := range in {
		if strings.HasSuffix(in[i], ".ts") {
			if !strings.HasPrefix(out[i], "/segment?song=Song+A&file=") {
				t.Fatalf("line %d not rewritten: %q", i, out[i])
			}
			continue
		}
		if in[i] != out[i] {
			t.Fatalf("line %d changed: %q -> %q", i, in[i], out[i])
		}
	}
	if !strings.Contains(got, "/segment?song=Song+A&file=Song+A_001.ts\n") {
		t.Fatalf("unexpected rewrite:\n%s", got)
	}
	if n, err := Inspect(strings.NewReader(got)); err != nil || n != 2 {
		t.Fatalf("rewritten manifest: n=%d err=%v", n, err)
	}
}

func TestPregeneratedPlaylistAndSegment(t *testing.T) {
	root := t.TempDir()
	layout := file.NewLayout(filepath.Join(root, "mp3"), filepath.Join(root, "hls"))
	if err := os.MkdirAll(layout.SegmentDir("t"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(layout.ManifestPath("t"), []byte("#EXTM3U\n#EXTINF:1.0,\nt_000.ts\n#EXT-X-ENDLIST\n"), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	segment := []byte{0x47, 0x01, 0x02, 0x03}
	if err := os.WriteFile(layout.SegmentPath("t", "t_000.ts"), segment, 0o600); err != nil {
		t.Fatalf("write segment: %v", err)
	}

	p := Pregenerated{Layout: layout}
	body, err := p.Playlist("t")
	if err != nil {
		t.Fatalf("playlist: %v", err)
	}
	if !strings.Contains(string(body), "/segment?song=t&file=t_000.ts") {
		t.Fatalf("manifest not rewritten: %s", body)
	}

	got, err := p.Segment("t", "t_000.ts")
	if err != nil || !bytes.Equal(got, segment) {
		t.Fatalf("segment: %v %v", got, err)
	}

	if _, err := p.Playlist("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := p.Segment("t", "t_999.ts"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
