package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const appDirPerm os.FileMode = 0o750

// SegmentPattern is the ffmpeg output pattern for numbered segments.
const SegmentPattern = "%03d"

// SegmentSuffix marks manifest lines that reference segment files.
const SegmentSuffix = ".ts"

// EnsureDir creates the directory if it does not exist.
func EnsureDir(dirPath string) error {
	if dirPath == "" {
		return errors.New("empty dir path")
	}
	if err := os.MkdirAll(dirPath, appDirPerm); err != nil { //nolint:gosec // app-owned data dir
		return fmt.Errorf("ensure dir: %w", err)
	}
	return nil
}

// CreateDir creates exactly one directory and fails if it already exists.
func CreateDir(dirPath string) error {
	if dirPath == "" {
		return errors.New("empty dir path")
	}
	if err := os.Mkdir(dirPath, appDirPerm); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	return nil
}

// Layout resolves the on-disk locations shared by the streaming, HLS and
// transcode components:
//
//	{mp3}/{title}.mp3
//	{hls}/{title}/{title}.m3u8
//	{hls}/{title}/{title}_NNN.ts
type Layout struct {
	MP3Dir string
	HLSDir string
}

func NewLayout(mp3Dir, hlsDir string) Layout {
	if mp3Dir == "" {
		mp3Dir = "mp3"
	}
	if hlsDir == "" {
		hlsDir = "hls"
	}
	return Layout{MP3Dir: mp3Dir, HLSDir: hlsDir}
}

func (l Layout) AudioPath(title string) string {
	return filepath.Join(l.MP3Dir, title+".mp3")
}

// AudioTemplate is the yt-dlp output template that lands on AudioPath.
func (l Layout) AudioTemplate() string {
	return filepath.Join(l.MP3Dir, "%(title)s.%(ext)s")
}

func (l Layout) SegmentDir(title string) string {
	return filepath.Join(l.HLSDir, title)
}

func (l Layout) ManifestPath(title string) string {
	return filepath.Join(l.SegmentDir(title), title+".m3u8")
}

// SegmentFilePattern is the ffmpeg -hls_segment_filename argument.
func (l Layout) SegmentFilePattern(title string) string {
	return filepath.Join(l.SegmentDir(title), title+"_"+SegmentPattern+SegmentSuffix)
}

func (l Layout) SegmentPath(title, segment string) string {
	return filepath.Join(l.SegmentDir(title), segment)
}
