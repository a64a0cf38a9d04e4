package staging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/tubebench/internal/domain"
	"github.com/timmy/tubebench/internal/source"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestAdapter(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "UCstaged")
	writeFile(t, filepath.Join(dir, ProfileFileName), `{"title":"Staged","video_count":3,"total_views":300}`)
	writeFile(t, filepath.Join(dir, VideosFileName(domain.VideoSortPopular)),
		`{"id":"a","title":"A","view_count":10,"length_text":"4:00","type":"video"}

not json
{"id":"b","title":"B","view_count":20,"length_text":"0:40","type":"shorts"}
`)
	writeFile(t, filepath.Join(dir, DailyStatsFileName),
		`{"date":"2024-01-02T00:00:00Z","views":200}
{"date":"2024-01-01T00:00:00Z","views":100,"videos_posted":1,"had_upload":true}
`)
	writeFile(t, filepath.Join(dir, TranscriptsFileName), `{"video_id":"a","text":"hello"}`)
	require.NoError(t, os.MkdirAll(filepath.Join(base, "UCempty"), 0755))

	a := NewAdapter(base)
	ctx := context.Background()

	p, err := a.ChannelProfile(ctx, "UCstaged")
	require.NoError(t, err)
	assert.Equal(t, "UCstaged", p.ChannelID)
	assert.Equal(t, int64(3), p.VideoCount)

	videos, err := a.ListVideos(ctx, "UCstaged", domain.VideoSortPopular)
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.True(t, videos[1].IsShort())

	videos, err = a.ListVideos(ctx, "UCstaged", domain.VideoSortRecent)
	require.NoError(t, err)
	assert.Empty(t, videos)

	report, err := a.FetchDailyStats(ctx, "UCstaged")
	require.NoError(t, err)
	require.Len(t, report.Days, 2)
	assert.Equal(t, int64(100), report.Days[0].Views)
	assert.Equal(t, int64(300), report.Totals.Views)
	assert.Equal(t, int64(1), report.Totals.UploadDays)

	_, err = a.FetchDailyStats(ctx, "UCempty")
	assert.True(t, errors.Is(err, source.ErrNoData))

	text, err := a.Transcript(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	_, err = a.Transcript(ctx, "zzz")
	assert.Error(t, err)

	channels, err := ListChannels(base)
	require.NoError(t, err)
	assert.Equal(t, []string{"UCempty", "UCstaged"}, channels)
}
