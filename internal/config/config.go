package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort         = 3001
	defaultLogLevel     = "info"
	defaultMP3Dir       = "mp3"
	defaultHLSDir       = "hls"
	defaultDatabasePath = "data/tracks.db"
	defaultYtDlpPath    = "yt-dlp"
	defaultFFmpegPath   = "ffmpeg"

	defaultStrictChunkBytes   = 64 * 1024
	defaultStreamChunkBytes   = 1024 * 1024
	defaultChunkedWindowBytes = 32 * 1024
	defaultChunkDelay         = 10 * time.Millisecond

	defaultBitrateBPS     = 128000
	defaultSegmentSeconds = 10
	defaultTargetDuration = 11
)

// Config describes runtime configuration for the service.
type Config struct {
	Port         int    `yaml:"port"`
	LogLevel     string `yaml:"log_level"`
	MP3Dir       string `yaml:"mp3_dir"`
	HLSDir       string `yaml:"hls_dir"`
	DatabasePath string `yaml:"database_path"`
	YtDlpPath    string `yaml:"ytdlp_path"`
	FFmpegPath   string `yaml:"ffmpeg_path"`
	Stream       Stream `yaml:"stream"`
	HLS          HLS    `yaml:"hls"`
}

// Stream holds the byte-serving knobs. The strict and default chunk sizes
// belong to different endpoints and are kept apart on purpose.
type Stream struct {
	StrictChunkBytes   uint64        `yaml:"strict_chunk_bytes"`
	DefaultChunkBytes  uint64        `yaml:"default_chunk_bytes"`
	ChunkedWindowBytes int           `yaml:"chunked_window_bytes"`
	ChunkDelay         time.Duration `yaml:"chunk_delay"`
}

// HLS holds the constant-bitrate assumptions used by the synthetic playlist.
type HLS struct {
	BitrateBPS     int `yaml:"bitrate_bps"`
	SegmentSeconds int `yaml:"segment_seconds"`
	TargetDuration int `yaml:"target_duration"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Port:         defaultPort,
		LogLevel:     defaultLogLevel,
		MP3Dir:       defaultMP3Dir,
		HLSDir:       defaultHLSDir,
		DatabasePath: defaultDatabasePath,
		YtDlpPath:    defaultYtDlpPath,
		FFmpegPath:   defaultFFmpegPath,
		Stream: Stream{
			StrictChunkBytes:   defaultStrictChunkBytes,
			DefaultChunkBytes:  defaultStreamChunkBytes,
			ChunkedWindowBytes: defaultChunkedWindowBytes,
			ChunkDelay:         defaultChunkDelay,
		},
		HLS: HLS{
			BitrateBPS:     defaultBitrateBPS,
			SegmentSeconds: defaultSegmentSeconds,
			TargetDuration: defaultTargetDuration,
		},
	}
}

// Load reads YAML config from the provided path. If the file does not exist
// or is empty, defaults are returned with no error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by deployment
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(fileData, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	normalize(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func normalize(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if strings.TrimSpace(cfg.MP3Dir) == "" {
		cfg.MP3Dir = defaultMP3Dir
	}
	if strings.TrimSpace(cfg.HLSDir) == "" {
		cfg.HLSDir = defaultHLSDir
	}
	if strings.TrimSpace(cfg.DatabasePath) == "" {
		cfg.DatabasePath = defaultDatabasePath
	}
	if cfg.YtDlpPath == "" {
		cfg.YtDlpPath = defaultYtDlpPath
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = defaultFFmpegPath
	}
}

func validate(cfg Config) error {
	if cfg.Stream.StrictChunkBytes == 0 {
		return errors.New("invalid stream.strict_chunk_bytes: must be > 0")
	}
	if cfg.Stream.DefaultChunkBytes == 0 {
		return errors.New("invalid stream.default_chunk_bytes: must be > 0")
	}
	if cfg.Stream.ChunkedWindowBytes < 1 {
		return fmt.Errorf("invalid stream.chunked_window_bytes: %d (must be >= 1)", cfg.Stream.ChunkedWindowBytes)
	}
	if cfg.Stream.ChunkDelay < 0 {
		return fmt.Errorf("invalid stream.chunk_delay: %s (must be >= 0)", cfg.Stream.ChunkDelay)
	}
	if cfg.HLS.BitrateBPS < 8 {
		return fmt.Errorf("invalid hls.bitrate_bps: %d (must be >= 8)", cfg.HLS.BitrateBPS)
	}
	if cfg.HLS.SegmentSeconds < 1 {
		return fmt.Errorf("invalid hls.segment_seconds: %d (must be >= 1)", cfg.HLS.SegmentSeconds)
	}
	if cfg.HLS.TargetDuration < cfg.HLS.SegmentSeconds {
		return fmt.Errorf("invalid hls.target_duration: %d (must be >= segment_seconds)", cfg.HLS.TargetDuration)
	}
	return nil
}
