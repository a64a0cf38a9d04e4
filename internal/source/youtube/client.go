package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/tubebench/internal/domain"
	"github.com/timmy/tubebench/internal/source"
)

// Config holds settings for the RapidAPI-style YouTube data API.
type Config struct {
	BaseURL  string
	APIKey   string
	APIHost  string
	Timeout  time.Duration
	MaxItems int
}

// Client lists channel videos, profiles and transcripts.
type Client struct {
	client   *resty.Client
	maxItems int
}

// NewClient creates a new YouTube data client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = 50
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("X-RapidAPI-Key", cfg.APIKey)
	}
	if cfg.APIHost != "" {
		client.SetHeader("X-RapidAPI-Host", cfg.APIHost)
	}

	return &Client{client: client, maxItems: maxItems}
}

// count accepts both JSON numbers and display strings such as "1,234" or "1.2M views".
type count int64

func (c *count) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = 0
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		v, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return ferr
			}
			v = int64(f)
		}
		*c = count(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, _ := source.ParseCount(s)
	*c = count(v)
	return nil
}

type videoItem struct {
	Type              string `json:"type"`
	VideoID           string `json:"videoId"`
	Title             string `json:"title"`
	ViewCount         count  `json:"viewCount"`
	LengthText        string `json:"lengthText"`
	PublishedTimeText string `json:"publishedTimeText"`
	PublishDate       string `json:"publishDate"`
}

type videosResponse struct {
	Data         []videoItem `json:"data"`
	Continuation string      `json:"continuation"`
	Message      string      `json:"message"`
}

type aboutResponse struct {
	ChannelID       string   `json:"channelId"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Keywords        []string `json:"keywords"`
	SubscriberCount count    `json:"subscriberCount"`
	ViewCount       count    `json:"viewCount"`
	VideosCount     count    `json:"videosCount"`
	Message         string   `json:"message"`
}

type transcriptResponse struct {
	Transcript []struct {
		Text string `json:"text"`
	} `json:"transcript"`
	Message string `json:"message"`
}

// ListVideos returns up to MaxItems videos of the channel in the requested order.
func (c *Client) ListVideos(ctx context.Context, channelID string, sort domain.VideoSort) ([]domain.ListedVideo, error) {
	sortBy := "newest"
	if sort == domain.VideoSortPopular {
		sortBy = "popular"
	}

	var videos []domain.ListedVideo
	token := ""
	for len(videos) < c.maxItems {
		var resp videosResponse
		req := c.client.R().
			SetContext(ctx).
			SetQueryParam("id", channelID).
			SetQueryParam("sort_by", sortBy).
			SetResult(&resp)
		if token != "" {
			req.SetQueryParam("token", token)
		}
		httpResp, err := req.Get("/channel/videos")
		if err := checkResponse("list videos", httpResp, err, resp.Message); err != nil {
			return nil, err
		}

		for _, item := range resp.Data {
			if item.VideoID == "" || (item.Type != "" && item.Type != "video" && item.Type != "shorts") {
				continue
			}
			videos = append(videos, toListedVideo(item))
			if len(videos) >= c.maxItems {
				break
			}
		}
		if resp.Continuation == "" || len(resp.Data) == 0 {
			break
		}
		token = resp.Continuation
	}
	return videos, nil
}

// ChannelProfile returns descriptive metadata for the channel.
func (c *Client) ChannelProfile(ctx context.Context, channelID string) (*domain.ChannelProfile, error) {
	var resp aboutResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("id", channelID).
		SetResult(&resp).
		Get("/channel/about")
	if err := checkResponse("channel profile", httpResp, err, resp.Message); err != nil {
		return nil, err
	}

	id := resp.ChannelID
	if id == "" {
		id = channelID
	}
	return &domain.ChannelProfile{
		ChannelID:       id,
		Title:           resp.Title,
		Description:     resp.Description,
		Keywords:        resp.Keywords,
		SubscriberCount: int64(resp.SubscriberCount),
		TotalViews:      int64(resp.ViewCount),
		VideoCount:      int64(resp.VideosCount),
	}, nil
}

// Transcript returns the joined transcript text of a video.
func (c *Client) Transcript(ctx context.Context, videoID string) (string, error) {
	var resp transcriptResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("id", videoID).
		SetResult(&resp).
		Get("/get_transcript")
	if err := checkResponse("transcript", httpResp, err, resp.Message); err != nil {
		return "", err
	}

	parts := make([]string, 0, len(resp.Transcript))
	for _, seg := range resp.Transcript {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

func checkResponse(op string, resp *resty.Response, err error, message string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		if message != "" {
			return fmt.Errorf("%s: HTTP %d: %s", op, resp.StatusCode(), message)
		}
		return fmt.Errorf("%s: HTTP %d: %s", op, resp.StatusCode(), string(resp.Body()))
	}
	return nil
}

func toListedVideo(item videoItem) domain.ListedVideo {
	v := domain.ListedVideo{
		ID:            item.VideoID,
		Title:         item.Title,
		ViewCount:     int64(item.ViewCount),
		LengthText:    item.LengthText,
		Type:          item.Type,
		PublishedText: item.PublishedTimeText,
	}
	if v.Type == "" {
		v.Type = "video"
	}
	if item.PublishDate != "" {
		if t, err := time.Parse("2006-01-02", item.PublishDate); err == nil {
			v.PublishDate = &t
		} else if t, err := time.Parse(time.RFC3339, item.PublishDate); err == nil {
			v.PublishDate = &t
		}
	}
	return v
}
