package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"songstream/internal/api"
	"songstream/internal/config"
	fileutil "songstream/internal/file"
	"songstream/internal/hls"
	"songstream/internal/process"
	"songstream/internal/search"
	"songstream/internal/stream"
	"songstream/internal/task"
	"songstream/internal/track"
	"songstream/internal/transcode"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load("config.yml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}

	layout := fileutil.NewLayout(cfg.MP3Dir, cfg.HLSDir)
	for _, dir := range []string{layout.MP3Dir, layout.HLSDir} {
		if err := fileutil.EnsureDir(dir); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("ensure media dir")
		}
	}

	repo, err := track.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("open track repository")
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Warn().Err(err).Msg("close track repository")
		}
	}()

	taskManager := task.NewManager()
	orchestrator := buildOrchestrator(cfg, layout, taskManager, repo)

	router := setupRouter()
	wireAPI(router, cfg, layout, taskManager, orchestrator, repo)

	const (
		readHeaderTimeout = 5 * time.Second
		shutdownTimeout   = 10 * time.Second
	)

	srv := newHTTPServer(cfg.Port, router, readHeaderTimeout)

	go func() {
		log.Info().Int("port", cfg.Port).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdownSignal()

	gracefulShutdown(srv, orchestrator, shutdownTimeout)
}

func setupRouter() *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(api.ZerologLogger())
	r.Use(api.CORS())
	return r
}

func buildOrchestrator(cfg config.Config, layout fileutil.Layout, tm *task.Manager, repo *track.Repository) *transcode.Orchestrator {
	return transcode.New(tm, process.Exec{}, repo, transcode.Options{
		YtDlpPath:  cfg.YtDlpPath,
		FFmpegPath: cfg.FFmpegPath,
		Layout:     layout,
	})
}

func wireAPI(router *gin.Engine, cfg config.Config, layout fileutil.Layout, tm *task.Manager, jobs *transcode.Orchestrator, repo *track.Repository) {
	apiHandler := api.NewAPI(api.Options{
		Tasks:    tm,
		Jobs:     jobs,
		Tracks:   repo,
		Searcher: search.NewService(process.Exec{}, cfg.YtDlpPath),
		Engine:   stream.NewEngine(cfg.Stream.ChunkedWindowBytes, cfg.Stream.ChunkDelay),
		Layout:   layout,
		Synthetic: hls.Synthetic{
			BitrateBPS:     cfg.HLS.BitrateBPS,
			SegmentSeconds: cfg.HLS.SegmentSeconds,
			TargetDuration: cfg.HLS.TargetDuration,
		},
		StrictChunk:  cfg.Stream.StrictChunkBytes,
		DefaultChunk: cfg.Stream.DefaultChunkBytes,
	})
	apiHandler.RegisterRoutes(router)
}

func newHTTPServer(port int, handler http.Handler, readHeaderTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func waitForShutdownSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")
}

// gracefulShutdown drains HTTP connections only. Background jobs are left
// running and die with the process.
func gracefulShutdown(srv *http.Server, jobs *transcode.Orchestrator, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown warning")
	}

	if n := jobs.InFlight(); n > 0 {
		log.Warn().Int("jobs", n).Msg("abandoning unfinished background jobs")
	}
	log.Info().Msg("server exited cleanly")
}
