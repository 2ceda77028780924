package streammodule

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marcelveldt/music-assistant/internal/events"
	"github.com/marcelveldt/music-assistant/internal/media"
)

// RegisterRoutes exposes the stream transport and loudness write-back.
func (m *Module) RegisterRoutes(router *gin.Engine) {
	router.GET("/stream/:player_id/:queue_item_id", m.handleStream)
	router.GET("/preview", m.handlePreview)
	router.POST("/api/streams/loudness", m.handleStoreLoudness)
}

func (m *Module) handleStream(c *gin.Context) {
	playerID := c.Param("player_id")
	queueItemID := c.Param("queue_item_id")

	queue, err := m.players.Manager().Queue(playerID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	item, ok := queue.ItemByID(queueItemID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown queue item"})
		return
	}
	details := item.StreamDetails
	if details == nil || (!details.Expires.IsZero() && time.Now().After(details.Expires)) {
		details, err = m.ResolveStreamDetails(c.Request.Context(), playerID, item)
		if err != nil {
			m.logger.Error("stream resolution failed", "queue_item", queueItemID, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		queue.SetItemStreamDetails(queueItemID, details)
	}

	// warm the next transition while this one plays
	defer func() { go m.prefetchNext(playerID) }()

	m.serveDetails(c, details)
}

// handlePreview streams an item directly by uri, outside any queue.
func (m *Module) handlePreview(c *gin.Context) {
	uri := c.Query("uri")
	if uri == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing uri"})
		return
	}
	item, err := m.music.GetItemByURI(c.Request.Context(), uri)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	queueItem := &media.QueueItem{QueueItemID: "preview", URI: uri}
	switch it := item.(type) {
	case *media.Track:
		queueItem.MediaItem = it
	case *media.Radio:
		queueItem.Radio = it
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "uri is not streamable"})
		return
	}
	details, err := m.ResolveStreamDetails(c.Request.Context(), "preview", queueItem)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	m.serveDetails(c, details)
}

func (m *Module) serveDetails(c *gin.Context, details *media.StreamDetails) {
	switch details.StreamType {
	case media.StreamTypeFile:
		c.Header("Content-Type", audioMimeType(details.Format.ContentType))
		c.File(details.Path)
		details.SecondsStreamed = float64(details.Duration)
	case media.StreamTypeHTTP, media.StreamTypeHLS:
		if details.Direct {
			c.Redirect(http.StatusFound, details.Path)
			return
		}
		m.proxyStream(c, details)
	default:
		c.JSON(http.StatusNotImplemented, gin.H{"error": "unsupported stream type " + string(details.StreamType)})
	}
}

// proxyStream relays a remote audio url to the player, tracking how much
// was actually delivered.
func (m *Module) proxyStream(c *gin.Context, details *media.StreamDetails) {
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, details.Path, nil)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream returned " + resp.Status})
		return
	}
	c.Header("Content-Type", audioMimeType(details.Format.ContentType))
	if resp.ContentLength > 0 {
		c.Header("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	written, err := io.Copy(c.Writer, resp.Body)
	if err != nil && !errors.Is(err, io.EOF) {
		m.logger.Debug("stream relay ended early", "item", details.ItemID, "error", err)
	}
	if byteRate := details.Format.BitRate * 1000 / 8; byteRate > 0 {
		details.SecondsStreamed = float64(written) / float64(byteRate)
	}
	m.bus.Publish(events.QueueUpdated, details.QueueID, details)
}

func (m *Module) handleStoreLoudness(c *gin.Context) {
	var req struct {
		Provider string  `json:"provider" binding:"required"`
		ItemID   string  `json:"item_id" binding:"required"`
		Loudness float64 `json:"loudness_lufs"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := m.StoreLoudness(req.Provider, req.ItemID, req.Loudness); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func audioMimeType(ct media.ContentType) string {
	switch ct {
	case media.ContentTypeMP3:
		return "audio/mpeg"
	case media.ContentTypeFLAC:
		return "audio/flac"
	case media.ContentTypeOGG:
		return "audio/ogg"
	case media.ContentTypeAAC, media.ContentTypeM4A:
		return "audio/mp4"
	case media.ContentTypeWAV:
		return "audio/wav"
	case media.ContentTypeAIFF:
		return "audio/aiff"
	default:
		return "application/octet-stream"
	}
}
