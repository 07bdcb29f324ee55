package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"songstream/internal/search"
	"songstream/internal/transcode"
)

type downloadResponse struct {
	TaskID string `json:"task_id"`
}

// Download accepts a job and returns its task id before any work starts
func (a *API) Download(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}
	taskID := a.jobs.Enqueue(req)
	log.Info().Str("task_id", taskID).Str("url", req.YoutubeURL).Msg("download accepted")
	c.JSON(http.StatusOK, downloadResponse{TaskID: taskID})
}

// FetchSong downloads the audio before answering
func (a *API) FetchSong(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}
	if err := a.jobs.Fetch(c.Request.Context(), req); err != nil {
		log.Error().Err(err).Str("url", req.YoutubeURL).Msg("fetch song failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "download failed"})
		return
	}
	c.String(http.StatusOK, "Succeed add to server")
}

// TaskStatus returns one task when task_id is given, otherwise all of them
func (a *API) TaskStatus(c *gin.Context) {
	id, ok := c.GetQuery("task_id")
	if !ok {
		c.JSON(http.StatusOK, a.tasks.List())
		return
	}
	if found, exists := a.tasks.Get(id); exists {
		c.JSON(http.StatusOK, found)
		return
	}
	log.Warn().Str("task_id", id).Msg("task not found on status")
	c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
}

// ListTracks returns every stored track
func (a *API) ListTracks(c *gin.Context) {
	tracks, err := a.tracks.ListTracks(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("list tracks failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tracks"})
		return
	}
	c.JSON(http.StatusOK, tracks)
}

func (a *API) Search(c *gin.Context) {
	query, ok := requireQuery(c, "title")
	if !ok {
		return
	}
	results, err := a.searcher.Search(c.Request.Context(), query)
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error().Err(err).Str("query", query).Msg("search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, results)
}

func bindRequest(c *gin.Context) (transcode.Request, bool) {
	var req transcode.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return req, false
	}
	if err := req.Validate(); err != nil {
		log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return req, false
	}
	return req, true
}
