package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"songstream/internal/byterange"
	"songstream/internal/file"
	"songstream/internal/hls"
	"songstream/internal/search"
	"songstream/internal/stream"
	"songstream/internal/task"
	"songstream/internal/track"
	"songstream/internal/transcode"
)

// Jobs starts download work. *transcode.Orchestrator satisfies it.
type Jobs interface {
	Enqueue(req transcode.Request) string
	Fetch(ctx context.Context, req transcode.Request) error
}

type TrackLister interface {
	ListTracks(ctx context.Context) ([]track.Track, error)
}

type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Result, error)
}

// Options wires the API to its collaborators.
type Options struct {
	Tasks     *task.Manager
	Jobs      Jobs
	Tracks    TrackLister
	Searcher  Searcher
	Engine    *stream.Engine
	Layout    file.Layout
	Synthetic hls.Synthetic
	// StrictChunk bounds open-ended ranges on /audio, DefaultChunk on /stream.
	StrictChunk  uint64
	DefaultChunk uint64
}

type API struct {
	tasks      *task.Manager
	jobs       Jobs
	tracks     TrackLister
	searcher   Searcher
	engine     *stream.Engine
	layout     file.Layout
	synthetic  hls.Synthetic
	pregen     hls.Pregenerated
	strict     byterange.Policy
	permissive byterange.Policy
}

func NewAPI(opts Options) *API {
	engine := opts.Engine
	if engine == nil {
		engine = stream.NewEngine(0, 0)
	}
	return &API{
		tasks:      opts.Tasks,
		jobs:       opts.Jobs,
		tracks:     opts.Tracks,
		searcher:   opts.Searcher,
		engine:     engine,
		layout:     opts.Layout,
		synthetic:  opts.Synthetic,
		pregen:     hls.Pregenerated{Layout: opts.Layout},
		strict:     byterange.Strict(opts.StrictChunk),
		permissive: byterange.Permissive(opts.DefaultChunk),
	}
}

// RegisterRoutes registers API routes on the provided gin engine
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.HEAD("/stream", a.HeadStream)
	router.GET("/stream", a.serveRange(a.permissive, "stream"))
	router.POST("/stream", a.FetchSong)
	router.GET("/stream/chunked", a.StreamChunked)
	router.GET("/audio", a.serveRange(a.strict, "audio"))

	router.GET("/search", a.Search)

	router.GET("/playlist", a.Playlist)
	router.GET("/playlist/synthetic", a.SyntheticPlaylist)
	router.GET("/segment", a.Segment)

	router.POST("/download", a.Download)
	router.GET("/task-status", a.TaskStatus)
	router.GET("/track", a.ListTracks)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "404 Not Found")
	})
}
