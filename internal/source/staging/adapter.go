package staging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/timmy/tubebench/internal/domain"
	"github.com/timmy/tubebench/internal/source"
)

const (
	// ProfileFileName holds the channel profile as a single JSON object.
	ProfileFileName = "profile.json"
	// DailyStatsFileName holds one domain.DailyStat per line.
	DailyStatsFileName = "daily_stats.jsonl"
	// TranscriptsFileName holds one {"video_id","text"} object per line.
	TranscriptsFileName = "transcripts.jsonl"
)

// VideosFileName returns the JSONL file holding a listing in the given order.
func VideosFileName(sort domain.VideoSort) string {
	return "videos_" + string(sort) + ".jsonl"
}

type transcriptLine struct {
	VideoID string `json:"video_id"`
	Text    string `json:"text"`
}

// Adapter serves captured collaborator responses from a staging directory,
// one sub-directory per channel. It lets the pipeline run offline.
type Adapter struct {
	basePath string
}

// NewAdapter creates a new staging adapter.
// Parameters:
//   - basePath: base path to the staging directory.
//
// Returns:
//   - *Adapter: initialized staging adapter.
func NewAdapter(basePath string) *Adapter {
	return &Adapter{basePath: basePath}
}

// FetchDailyStats reads the channel's captured daily statistics.
// A missing or empty file is ErrNoData, mirroring an unindexed channel.
func (a *Adapter) FetchDailyStats(ctx context.Context, channelID string) (*source.MetricsReport, error) {
	var days []domain.DailyStat
	err := a.readLines(channelID, DailyStatsFileName, func(line []byte) error {
		var d domain.DailyStat
		if err := json.Unmarshal(line, &d); err != nil {
			return nil // skip malformed lines
		}
		days = append(days, d)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, source.ErrNoData
		}
		return nil, err
	}
	if len(days) == 0 {
		return nil, source.ErrNoData
	}
	return source.NewMetricsReport(days), nil
}

// ListVideos reads the captured listing for the requested order.
func (a *Adapter) ListVideos(ctx context.Context, channelID string, order domain.VideoSort) ([]domain.ListedVideo, error) {
	var videos []domain.ListedVideo
	err := a.readLines(channelID, VideosFileName(order), func(line []byte) error {
		var v domain.ListedVideo
		if err := json.Unmarshal(line, &v); err != nil {
			return nil
		}
		videos = append(videos, v)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.ListedVideo{}, nil
		}
		return nil, err
	}
	return videos, nil
}

// ChannelProfile reads the captured profile.
func (a *Adapter) ChannelProfile(ctx context.Context, channelID string) (*domain.ChannelProfile, error) {
	data, err := os.ReadFile(filepath.Join(a.basePath, channelID, ProfileFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	var p domain.ChannelProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if p.ChannelID == "" {
		p.ChannelID = channelID
	}
	return &p, nil
}

// Transcript looks the video up in every channel's transcripts file.
func (a *Adapter) Transcript(ctx context.Context, videoID string) (string, error) {
	channels, err := ListChannels(a.basePath)
	if err != nil {
		return "", err
	}
	for _, ch := range channels {
		var text string
		err := a.readLines(ch, TranscriptsFileName, func(line []byte) error {
			var t transcriptLine
			if json.Unmarshal(line, &t) == nil && t.VideoID == videoID {
				text = t.Text
			}
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return "", err
		}
		if text != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("no transcript staged for %s", videoID)
}

// readLines calls fn for every non-blank line of a channel's JSONL file.
func (a *Adapter) readLines(channelID, name string, fn func([]byte) error) error {
	file, err := os.Open(filepath.Join(a.basePath, channelID, name))
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := fn([]byte(line)); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading %s: %w", name, err)
	}
	return nil
}

// ListChannels lists channel IDs that have a staging directory.
func ListChannels(basePath string) ([]string, error) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var channels []string
	for _, entry := range entries {
		if entry.IsDir() {
			channels = append(channels, entry.Name())
		}
	}
	sort.Strings(channels)
	return channels, nil
}
