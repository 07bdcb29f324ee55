// Package search proxies free-text queries to yt-dlp.
package search

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"songstream/internal/process"
)

const defaultLimit = 10

var ErrEmptyQuery = errors.New("empty search query")

type Thumbnail struct {
	URL    string  `json:"url"`
	Width  *uint32 `json:"width"`
	Height *uint32 `json:"height"`
}

// Result is the subset of the yt-dlp info dict returned to clients.
type Result struct {
	Title                string      `json:"title"`
	FullTitle            string      `json:"fulltitle"`
	ViewCount            *uint64     `json:"view_count"`
	Duration             *float64    `json:"duration"`
	DurationString       *string     `json:"duration_string"`
	UploadDate           *string     `json:"upload_date"`
	Channel              *string     `json:"channel"`
	ChannelFollowerCount *uint64     `json:"channel_follower_count"`
	LikeCount            *uint64     `json:"like_count"`
	ChannelIsVerified    *bool       `json:"channel_is_verified"`
	Thumbnails           []Thumbnail `json:"thumbnails"`
	Thumbnail            string      `json:"thumbnail"`
	WebpageURL           string      `json:"webpage_url"`
}

type Service struct {
	runner    process.Runner
	ytDlpPath string
	limit     int
}

func NewService(runner process.Runner, ytDlpPath string) *Service {
	return &Service{runner: runner, ytDlpPath: ytDlpPath, limit: defaultLimit}
}

// Search runs a yt-dlp search and decodes one result per output line.
// Lines that are not valid results are skipped.
func (s *Service) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	args := []string{fmt.Sprintf("ytsearch%d:%q", s.limit, query), "--dump-json"}
	out, err := s.runner.Output(ctx, s.ytDlpPath, args)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp search: %w", err)
	}
	return decode(out), nil
}

func decode(out []byte) []Result {
	results := []Result{}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 256*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var r Result
		if err := json.Unmarshal(line, &r); err != nil {
			log.Debug().Err(err).Msg("skipping undecodable search line")
			continue
		}
		if r.Title == "" || r.WebpageURL == "" {
			continue
		}
		results = append(results, r)
	}
	return results
}
