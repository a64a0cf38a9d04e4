package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/tubebench/internal/repository"
)

const defaultOutlierMin = 5.0

// ChannelHandler serves the enrichment results of a channel.
type ChannelHandler struct {
	channels  *repository.ChannelRepository
	baselines *repository.BaselineRepository
	videos    *repository.VideoRepository
}

// NewChannelHandler creates a new channel handler.
func NewChannelHandler(
	channels *repository.ChannelRepository,
	baselines *repository.BaselineRepository,
	videos *repository.VideoRepository,
) *ChannelHandler {
	return &ChannelHandler{
		channels:  channels,
		baselines: baselines,
		videos:    videos,
	}
}

// GetChannel handles GET /api/v1/channels/:id.
func (h *ChannelHandler) GetChannel(c *gin.Context) {
	ch, err := h.channels.GetByChannelID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get channel: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, ch)
}

// GetBaseline handles GET /api/v1/channels/:id/baseline.
func (h *ChannelHandler) GetBaseline(c *gin.Context) {
	stats, err := h.baselines.GetByChannelID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Baseline not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get baseline: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListOutliers handles GET /api/v1/channels/:id/outliers?min=5&limit=50.
func (h *ChannelHandler) ListOutliers(c *gin.Context) {
	channelID := c.Param("id")

	minScore := defaultOutlierMin
	if raw := c.Query("min"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'min' must be a non-negative number"})
			return
		}
		minScore = v
	}
	limit := queryInt(c, "limit", 50, 1, 500)

	videos, err := h.videos.ListOutliers(c.Request.Context(), channelID, minScore, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list outliers: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"channel_id": channelID,
		"min":        minScore,
		"count":      len(videos),
		"videos":     videos,
	})
}
