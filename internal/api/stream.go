package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"songstream/internal/byterange"
	"songstream/internal/stream"
)

// openSong resolves the song query parameter to an open audio source. On
// failure the response has already been written.
func (a *API) openSong(c *gin.Context) (*stream.Source, string, bool) {
	song, ok := requireQuery(c, "song")
	if !ok {
		return nil, "", false
	}
	src, err := stream.Open(a.layout.AudioPath(song))
	if err != nil {
		if errors.Is(err, stream.ErrNotFound) {
			log.Warn().Str("song", song).Msg("song not found")
			c.JSON(http.StatusNotFound, gin.H{"error": "song not found"})
			return nil, "", false
		}
		log.Error().Err(err).Str("song", song).Msg("open song failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open song"})
		return nil, "", false
	}
	return src, song, true
}

// serveRange answers a GET with the part of the song selected by the Range
// header under policy.
func (a *API) serveRange(policy byterange.Policy, endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		src, song, ok := a.openSong(c)
		if !ok {
			return
		}
		defer src.Close()

		header := c.GetHeader("Range")
		rng, err := policy.Resolve(header, src.Size())
		if err != nil {
			log.Warn().Err(err).Str("song", song).Str("range", header).Msg("rejecting range")
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}

		err = a.engine.WriteRange(c.Writer, src, rng, stream.Headers{
			ContentType: stream.ContentTypeAudio,
			Endpoint:    endpoint,
		})
		if err != nil {
			// headers are out; the connection is all that is left to drop
			log.Warn().Err(err).Str("song", song).Str("endpoint", endpoint).Msg("range delivery aborted")
		}
	}
}

// HeadStream reports the song size without a body
func (a *API) HeadStream(c *gin.Context) {
	src, _, ok := a.openSong(c)
	if !ok {
		return
	}
	defer src.Close()
	a.engine.WriteHead(c.Writer, src.Size(), stream.ContentTypeAudio)
}

// StreamChunked sends the whole song with chunked transfer coding
func (a *API) StreamChunked(c *gin.Context) {
	src, song, ok := a.openSong(c)
	if !ok {
		return
	}
	defer src.Close()

	err := a.engine.WriteChunked(c.Request.Context(), c.Writer, src, stream.Headers{
		ContentType: stream.ContentTypeAudio,
		Endpoint:    "chunked",
	})
	if err != nil {
		log.Warn().Err(err).Str("song", song).Msg("chunked delivery stopped")
	}
}

func requireQuery(c *gin.Context, name string) (string, bool) {
	value := c.Query(name)
	if value == "" {
		log.Warn().Str("param", name).Str("path", c.Request.URL.Path).Msg("missing query parameter")
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + name})
		return "", false
	}
	return value, true
}
