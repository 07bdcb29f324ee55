package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultKeepsChunkSizesApart(t *testing.T) {
	cfg := Default()
	if cfg.Port == 0 || cfg.MP3Dir == "" || cfg.HLSDir == "" {
		t.Fatalf("default config invalid: %+v", cfg)
	}
	if cfg.Stream.StrictChunkBytes != 64*1024 {
		t.Fatalf("strict chunk = %d, want 65536", cfg.Stream.StrictChunkBytes)
	}
	if cfg.Stream.DefaultChunkBytes != 1024*1024 {
		t.Fatalf("default chunk = %d, want 1048576", cfg.Stream.DefaultChunkBytes)
	}
	if cfg.Stream.ChunkedWindowBytes != 32*1024 {
		t.Fatalf("chunked window = %d, want 32768", cfg.Stream.ChunkedWindowBytes)
	}
	if err := validate(cfg); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("not_exists.yml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.Port != defaultPort {
		t.Fatalf("expected default port, got %d", cfg.Port)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestLoadReadsAndNormalizes(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "cfg.yml")
	content := []byte(`port: 9090
log_level: " DEBUG "
mp3_dir: audio
hls_dir: ""
stream:
  strict_chunk_bytes: 1024
  default_chunk_bytes: 4096
  chunked_window_bytes: 512
  chunk_delay: 250ms
hls:
  bitrate_bps: 64000
  segment_seconds: 6
  target_duration: 7
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9090 || cfg.MP3Dir != "audio" || cfg.HLSDir != defaultHLSDir {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level not normalized: %q", cfg.LogLevel)
	}
	if cfg.Stream.StrictChunkBytes != 1024 || cfg.Stream.DefaultChunkBytes != 4096 {
		t.Fatalf("unexpected stream cfg: %+v", cfg.Stream)
	}
	if cfg.Stream.ChunkDelay != 250*time.Millisecond {
		t.Fatalf("chunk delay = %s", cfg.Stream.ChunkDelay)
	}
	if cfg.HLS.BitrateBPS != 64000 || cfg.HLS.SegmentSeconds != 6 || cfg.HLS.TargetDuration != 7 {
		t.Fatalf("unexpected hls cfg: %+v", cfg.HLS)
	}
	// unset keys keep their defaults
	if cfg.YtDlpPath != defaultYtDlpPath || cfg.FFmpegPath != defaultFFmpegPath {
		t.Fatalf("tool paths lost defaults: %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"zero window":      "stream:\n  chunked_window_bytes: 0\n",
		"zero strict":      "stream:\n  strict_chunk_bytes: 0\n",
		"negative delay":   "stream:\n  chunk_delay: -1s\n",
		"tiny bitrate":     "hls:\n  bitrate_bps: 1\n",
		"short target":     "hls:\n  segment_seconds: 10\n  target_duration: 5\n",
		"no segment split": "hls:\n  segment_seconds: 0\n",
	}
	for name, body := range cases {
		path := filepath.Join(t.TempDir(), "cfg.yml")
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
