package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"songstream/internal/byterange"
	"songstream/internal/hls"
	"songstream/internal/stream"
)

const (
	contentTypePlaylist = "application/vnd.apple.mpegurl"

	cacheSegment      = "public, max-age=86400"
	cachePregenerated = "public, max-age=300"
	cacheSynthetic    = "no-cache"
)

// Playlist serves the manifest written by the segmenter, pointed at /segment
func (a *API) Playlist(c *gin.Context) {
	song, ok := requireQuery(c, "song")
	if !ok {
		return
	}
	body, err := a.pregen.Playlist(song)
	if err != nil {
		a.hlsError(c, err, song, "playlist")
		return
	}
	c.Header("Cache-Control", cachePregenerated)
	c.Data(http.StatusOK, contentTypePlaylist, body)
}

// SyntheticPlaylist serves a manifest computed from the mp3 size alone
func (a *API) SyntheticPlaylist(c *gin.Context) {
	src, song, ok := a.openSong(c)
	if !ok {
		return
	}
	size := src.Size()
	_ = src.Close()

	body, err := a.synthetic.Playlist(song, size)
	if err != nil {
		log.Error().Err(err).Str("song", song).Msg("encode synthetic playlist")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build playlist"})
		return
	}
	c.Header("Cache-Control", cacheSynthetic)
	c.Data(http.StatusOK, contentTypePlaylist, body)
}

// Segment serves a pre-generated segment file when file= is given, otherwise
// the synthetic byte interval start..end of the mp3.
func (a *API) Segment(c *gin.Context) {
	if name, ok := c.GetQuery("file"); ok {
		a.pregeneratedSegment(c, name)
		return
	}

	start, errStart := strconv.ParseUint(c.Query("start"), 10, 64)
	end, errEnd := strconv.ParseUint(c.Query("end"), 10, 64)
	if _, ok := requireQuery(c, "song"); !ok {
		return
	}
	if errStart != nil || errEnd != nil {
		log.Warn().Str("start", c.Query("start")).Str("end", c.Query("end")).Msg("invalid segment bounds")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start or end"})
		return
	}

	src, song, ok := a.openSong(c)
	if !ok {
		return
	}
	defer src.Close()

	rng, err := byterange.Bounds(start, end, src.Size())
	if err != nil {
		log.Warn().Err(err).Str("song", song).Uint64("start", start).Uint64("end", end).Msg("segment out of range")
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	err = a.engine.WriteRange(c.Writer, src, rng, stream.Headers{
		ContentType:  stream.ContentTypeSegment,
		CacheControl: cacheSegment,
		Endpoint:     "segment",
	})
	if err != nil {
		log.Warn().Err(err).Str("song", song).Msg("segment delivery aborted")
	}
}

func (a *API) pregeneratedSegment(c *gin.Context, name string) {
	song, ok := requireQuery(c, "song")
	if !ok {
		return
	}
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	body, err := a.pregen.Segment(song, name)
	if err != nil {
		a.hlsError(c, err, song, "segment")
		return
	}
	c.Header("Cache-Control", cacheSegment)
	c.Data(http.StatusOK, stream.ContentTypeSegment, body)
}

func (a *API) hlsError(c *gin.Context, err error, song, what string) {
	if errors.Is(err, hls.ErrNotFound) {
		log.Warn().Str("song", song).Msg(what + " not found")
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
		return
	}
	log.Error().Err(err).Str("song", song).Msg("read " + what)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read " + what})
}
