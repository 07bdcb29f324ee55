package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	out  []byte
	err  error
	args []string
}

func (f *fakeRunner) Stream(context.Context, string, []string, func(string)) error {
	return errors.New("not used")
}

func (f *fakeRunner) Output(_ context.Context, _ string, args []string) ([]byte, error) {
	f.args = args
	return f.out, f.err
}

func TestSearchDecodesLines(t *testing.T) {
	runner := &fakeRunner{out: []byte(`{"title":"A","fulltitle":"A full","view_count":12,"duration":61,"thumbnail":"http://t/a.jpg","webpage_url":"https://y/a","thumbnails":[{"url":"http://t/a1.jpg","width":120}]}
not json
{"title":"","webpage_url":"https://y/missing-title"}

{"title":"B","fulltitle":"B","thumbnail":"","webpage_url":"https://y/b","channel_is_verified":true}
`)}
	svc := NewService(runner, "yt-dlp")

	results, err := svc.Search(context.Background(), "  lofi beats ")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "A", results[0].Title)
	require.NotNil(t, results[0].ViewCount)
	require.Equal(t, uint64(12), *results[0].ViewCount)
	require.Len(t, results[0].Thumbnails, 1)
	require.Nil(t, results[0].Thumbnails[0].Height)
	require.Equal(t, "B", results[1].Title)
	require.True(t, *results[1].ChannelIsVerified)

	require.Equal(t, []string{`ytsearch10:"lofi beats"`, "--dump-json"}, runner.args)
}

func TestSearchEmptyQuery(t *testing.T) {
	_, err := NewService(&fakeRunner{}, "yt-dlp").Search(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearchRunnerFailure(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewService(&fakeRunner{err: boom}, "yt-dlp").Search(context.Background(), "x")
	require.ErrorIs(t, err, boom)
}

func TestSearchNoResultsIsEmptyArray(t *testing.T) {
	results, err := NewService(&fakeRunner{}, "yt-dlp").Search(context.Background(), "x")
	require.NoError(t, err)
	require.NotNil(t, results)
	require.Empty(t, results)
}
