package socialblade

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/tubebench/internal/logger"
	"github.com/timmy/tubebench/internal/source"
	"github.com/timmy/tubebench/internal/storage"
)

// ErrNoData is returned when the site does not index the channel.
var ErrNoData = source.ErrNoData

// Config holds collector settings.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Collector scrapes the third-party statistics page of a channel.
type Collector struct {
	client  *resty.Client
	archive *storage.PageArchive
	now     func() time.Time
}

// archiveSource names this collector's pages in the archive.
const archiveSource = "socialblade"

// NewCollector creates a Collector. A nil archive disables raw page archiving and
// the same-day fallback.
func NewCollector(cfg Config, archive *storage.PageArchive) *Collector {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://socialblade.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "text/html")
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &Collector{client: client, archive: archive, now: time.Now}
}

// FetchDailyStats downloads and parses the channel's daily statistics.
// A 404 or an unindexed channel yields ErrNoData. When the request fails for any
// other reason, a page archived earlier the same day is parsed instead.
func (c *Collector) FetchDailyStats(ctx context.Context, channelID string) (*source.MetricsReport, error) {
	body, err := c.fetchPage(ctx, channelID)
	if errors.Is(err, ErrNoData) {
		return nil, err
	}
	if err != nil {
		archived, ok := c.archivedPage(ctx, channelID)
		if !ok {
			return nil, err
		}
		logger.FromContext(ctx).WithError(err).Warn("Statistics page unavailable, using today's archived copy")
		body = archived
	} else {
		c.archivePage(ctx, channelID, body)
	}

	days, err := ParseDailyStats(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return source.NewMetricsReport(days), nil
}

func (c *Collector) fetchPage(ctx context.Context, channelID string) ([]byte, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get("/youtube/channel/" + url.PathEscape(channelID))
	if err != nil {
		return nil, fmt.Errorf("request statistics page: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, ErrNoData
	case resp.StatusCode() < 200 || resp.StatusCode() >= 300:
		return nil, fmt.Errorf("statistics page returned HTTP %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

// archivePage stores the raw page for later re-parsing. Failures are logged only.
func (c *Collector) archivePage(ctx context.Context, channelID string, body []byte) {
	if c.archive == nil || len(body) == 0 {
		return
	}
	key, stored, err := c.archive.Save(ctx, archiveSource, channelID, c.now(), body)
	log := logger.FromContext(ctx).WithField("key", key)
	switch {
	case err != nil:
		log.WithError(err).Warn("Failed to archive statistics page")
	case stored:
		log.Debug("Archived statistics page")
	}
}

func (c *Collector) archivedPage(ctx context.Context, channelID string) ([]byte, bool) {
	if c.archive == nil || ctx.Err() != nil {
		return nil, false
	}
	page, err := c.archive.Load(ctx, archiveSource, channelID, c.now())
	if err != nil {
		if !errors.Is(err, storage.ErrObjectNotFound) {
			logger.FromContext(ctx).WithError(err).Warn("Failed to read archived statistics page")
		}
		return nil, false
	}
	return page, true
}
