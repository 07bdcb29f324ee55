package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	fileutil "songstream/internal/file"
	"songstream/internal/hls"
	"songstream/internal/metrics"
	"songstream/internal/process"
	"songstream/internal/task"
	"songstream/internal/track"
)

// Log markers appended when a job stops.
const (
	MarkerAudioDirFailed   = "create audio dir failed"
	MarkerExtractFailed    = "yt-dlp failed"
	MarkerMetadataFailed   = "metadata lookup failed"
	MarkerSegmentDirFailed = "create segment dir failed"
	MarkerSegmentFailed    = "ffmpeg failed"
	MarkerStoreFailed      = "store track failed"
)

const metadataSeparator = "|||"

var ErrInvalidRequest = errors.New("invalid download request")

// Request is the body of a download submission.
type Request struct {
	Title      string  `json:"title"`
	YoutubeURL string  `json:"youtube_url"`
	Start      *uint32 `json:"start,omitempty"`
	End        *uint32 `json:"end,omitempty"`
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.YoutubeURL) == "" {
		return fmt.Errorf("%w: youtube_url is required", ErrInvalidRequest)
	}
	return nil
}

// Repository receives the metadata of every completed job.
type Repository interface {
	InsertTrack(ctx context.Context, t track.Track) (int64, error)
}

type Options struct {
	YtDlpPath  string
	FFmpegPath string
	Layout     fileutil.Layout
	// Now stamps persisted tracks; defaults to time.Now.
	Now func() time.Time
}

// Orchestrator runs download jobs: audio extraction, metadata lookup and HLS
// segmentation, each step gated on the previous one. Jobs are detached from
// the request that started them and are neither cancelled nor awaited on
// shutdown.
type Orchestrator struct {
	tasks     *task.Manager
	runner    process.Runner
	repo      Repository
	opts      Options
	workersWG sync.WaitGroup
	inFlight  atomic.Int64
}

func New(tasks *task.Manager, runner process.Runner, repo Repository, opts Options) *Orchestrator {
	if opts.YtDlpPath == "" {
		opts.YtDlpPath = "yt-dlp"
	}
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{tasks: tasks, runner: runner, repo: repo, opts: opts}
}

// Enqueue registers a task for req, starts the job in the background and
// returns the task id without waiting for any step.
func (o *Orchestrator) Enqueue(req Request) string {
	created := o.tasks.Create(req.Title)

	o.workersWG.Add(1)
	o.inFlight.Add(1)
	metrics.JobsInFlight.Inc()
	go func() {
		defer o.workersWG.Done()
		defer func() {
			o.inFlight.Add(-1)
			metrics.JobsInFlight.Dec()
		}()
		// no deadline: a hung tool keeps the job in downloading
		o.run(context.Background(), created.TaskID, req)
	}()
	return created.TaskID
}

// InFlight reports how many jobs have not reached a terminal state.
func (o *Orchestrator) InFlight() int {
	return int(o.inFlight.Load())
}

// WaitAll blocks until all in-flight jobs finish or the context is done.
// Returns true if all jobs finished, false if timed out.
func (o *Orchestrator) WaitAll(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		o.workersWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// Fetch extracts the audio of req synchronously. Nothing is recorded in the
// task store.
func (o *Orchestrator) Fetch(ctx context.Context, req Request) error {
	if err := fileutil.EnsureDir(o.opts.Layout.MP3Dir); err != nil {
		return err
	}
	args := o.extractArgs(req)
	logger := log.With().Str("url", req.YoutubeURL).Logger()
	logger.Info().Str("cmd", process.Describe(o.opts.YtDlpPath, args)).Msg("fetching audio")
	err := o.runner.Stream(ctx, o.opts.YtDlpPath, args, func(line string) {
		logger.Debug().Str("line", line).Msg("yt-dlp")
	})
	if err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, taskID string, req Request) {
	logger := log.With().Str("task_id", taskID).Logger()
	appendLine := func(line string) {
		if err := o.tasks.AppendLog(taskID, line); err != nil {
			logger.Warn().Err(err).Msg("append log failed")
		}
	}

	if err := fileutil.EnsureDir(o.opts.Layout.MP3Dir); err != nil {
		o.fail(logger, taskID, MarkerAudioDirFailed, err)
		return
	}

	extractArgs := o.extractArgs(req)
	logger.Info().Str("cmd", process.Describe(o.opts.YtDlpPath, extractArgs)).Msg("extracting audio")
	if err := o.runner.Stream(ctx, o.opts.YtDlpPath, extractArgs, appendLine); err != nil {
		o.fail(logger, taskID, MarkerExtractFailed, err)
		return
	}

	meta, err := o.lookupMetadata(ctx, req.YoutubeURL)
	if err != nil {
		o.fail(logger, taskID, MarkerMetadataFailed, err)
		return
	}
	logger = logger.With().Str("title", meta.Title).Logger()

	if err := fileutil.EnsureDir(o.opts.Layout.HLSDir); err != nil {
		o.fail(logger, taskID, MarkerSegmentDirFailed, err)
		return
	}
	if err := fileutil.CreateDir(o.opts.Layout.SegmentDir(meta.Title)); err != nil {
		o.fail(logger, taskID, MarkerSegmentDirFailed, err)
		return
	}

	segmentArgs := o.segmentArgs(meta.Title)
	logger.Info().Str("cmd", process.Describe(o.opts.FFmpegPath, segmentArgs)).Msg("segmenting audio")
	if err := o.runner.Stream(ctx, o.opts.FFmpegPath, segmentArgs, appendLine); err != nil {
		o.fail(logger, taskID, MarkerSegmentFailed, err)
		return
	}
	o.logSegmentCount(logger, meta.Title)

	trackID, err := o.repo.InsertTrack(ctx, track.Track{
		Title:     meta.Title,
		Duration:  meta.Duration,
		CreatedAt: o.opts.Now(),
	})
	if err != nil {
		o.fail(logger, taskID, MarkerStoreFailed, err)
		return
	}
	logger.Info().Int64("track_id", trackID).Str("duration", meta.Duration).Msg("track stored")

	if err := o.tasks.Complete(taskID); err != nil {
		logger.Warn().Err(err).Msg("complete task failed")
	}
	metrics.JobsTotal.WithLabelValues(metrics.ResultDone).Inc()
}

func (o *Orchestrator) fail(logger zerolog.Logger, taskID, marker string, cause error) {
	logger.Error().Err(cause).Str("step", marker).Msg("job failed")
	if err := o.tasks.Fail(taskID, marker); err != nil {
		logger.Warn().Err(err).Msg("mark failed")
	}
	metrics.JobsTotal.WithLabelValues(metrics.ResultFailed).Inc()
}

func (o *Orchestrator) extractArgs(req Request) []string {
	args := []string{
		"--extract-audio",
		"--audio-format", "mp3",
		"-o", o.opts.Layout.AudioTemplate(),
	}
	var cut []string
	if req.Start != nil {
		cut = append(cut, fmt.Sprintf("-ss %d", *req.Start))
	}
	if req.End != nil {
		cut = append(cut, fmt.Sprintf("-to %d", *req.End))
	}
	if len(cut) > 0 {
		args = append(args, "--postprocessor-args", strings.Join(cut, " "))
	}
	return append(args, req.YoutubeURL)
}

func (o *Orchestrator) segmentArgs(title string) []string {
	layout := o.opts.Layout
	return []string{
		"-i", layout.AudioPath(title),
		"-c:a", "aac",
		"-b:a", "128k",
		"-ac", "2",
		"-ar", "44100",
		"-f", "hls",
		"-hls_time", "10",
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", layout.SegmentFilePattern(title),
		layout.ManifestPath(title),
	}
}

// Metadata is what the source reports about itself.
type Metadata struct {
	Title    string
	Duration string
}

func (o *Orchestrator) lookupMetadata(ctx context.Context, sourceURL string) (Metadata, error) {
	out, err := o.runner.Output(ctx, o.opts.YtDlpPath, []string{
		"--print", "%(title)s" + metadataSeparator + "%(duration_string)s",
		sourceURL,
	})
	if err != nil {
		return Metadata{}, fmt.Errorf("lookup metadata: %w", err)
	}
	return ParseMetadata(string(out))
}

// ParseMetadata splits a "title|||duration" line.
func ParseMetadata(line string) (Metadata, error) {
	title, duration, found := strings.Cut(strings.TrimSpace(line), metadataSeparator)
	if !found {
		return Metadata{}, fmt.Errorf("metadata %q: missing separator", line)
	}
	meta := Metadata{Title: strings.TrimSpace(title), Duration: strings.TrimSpace(duration)}
	if meta.Title == "" {
		return Metadata{}, fmt.Errorf("metadata %q: empty title", line)
	}
	return meta, nil
}

func (o *Orchestrator) logSegmentCount(logger zerolog.Logger, title string) {
	manifest, err := os.Open(o.opts.Layout.ManifestPath(title))
	if err != nil {
		logger.Warn().Err(err).Msg("manifest not readable after segmentation")
		return
	}
	defer manifest.Close()
	count, err := hls.Inspect(manifest)
	if err != nil {
		logger.Warn().Err(err).Msg("manifest not decodable after segmentation")
		return
	}
	logger.Info().Int("segments", count).Msg("segmentation finished")
}
