package playermodule

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/marcelveldt/music-assistant/internal/media"
)

// RegisterRoutes exposes the player and queue API.
func (m *Module) RegisterRoutes(router *gin.Engine) {
	players := router.Group("/api/players")
	players.GET("", m.handleListPlayers)
	players.GET("/:player_id", m.handleGetPlayer)
	players.POST("/:player_id/command", m.handleCommand)

	queues := router.Group("/api/queues")
	queues.GET("/:player_id", m.handleGetQueue)
	queues.GET("/:player_id/items", m.handleQueueItems)
	queues.POST("/:player_id/play_media", m.handlePlayMedia)
	queues.PUT("/:player_id/settings", m.handleQueueSettings)
	queues.DELETE("/:player_id/items", m.handleClearQueue)
}

func playerError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, media.ErrPlayerUnavailable), errors.Is(err, media.ErrMediaNotFound):
		status = http.StatusNotFound
	case errors.Is(err, media.ErrQueueEmpty), errors.Is(err, media.ErrInvalidData):
		status = http.StatusBadRequest
	case errors.Is(err, media.ErrUnsupported):
		status = http.StatusNotImplemented
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (m *Module) handleListPlayers(c *gin.Context) {
	c.JSON(http.StatusOK, m.manager.Players())
}

func (m *Module) handleGetPlayer(c *gin.Context) {
	player, err := m.manager.Player(c.Param("player_id"))
	if err != nil {
		playerError(c, err)
		return
	}
	c.JSON(http.StatusOK, player)
}

func (m *Module) handleCommand(c *gin.Context) {
	playerID := c.Param("player_id")
	var req struct {
		Command  string `json:"command" binding:"required"`
		Volume   *int   `json:"volume,omitempty"`
		Muted    *bool  `json:"muted,omitempty"`
		Powered  *bool  `json:"powered,omitempty"`
		Position *int   `json:"position,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		playerError(c, media.ErrInvalidData)
		return
	}
	ctx := c.Request.Context()
	queue, queueErr := m.manager.Queue(playerID)

	var err error
	switch req.Command {
	case "play":
		if queueErr != nil {
			err = queueErr
		} else {
			err = queue.Resume(ctx)
		}
	case "pause":
		if queueErr != nil {
			err = queueErr
		} else {
			err = queue.Pause(ctx)
		}
	case "stop":
		if queueErr != nil {
			err = queueErr
		} else {
			err = queue.Stop(ctx)
		}
	case "next":
		if queueErr != nil {
			err = queueErr
		} else {
			err = queue.Next(ctx)
		}
	case "previous":
		if queueErr != nil {
			err = queueErr
		} else {
			err = queue.Previous(ctx)
		}
	case "power":
		if req.Powered == nil {
			err = media.ErrInvalidData
		} else {
			err = m.manager.Power(ctx, playerID, *req.Powered)
		}
	case "volume_set":
		if req.Volume == nil {
			err = media.ErrInvalidData
		} else {
			err = m.manager.SetVolume(ctx, playerID, *req.Volume)
		}
	case "volume_up":
		err = m.manager.VolumeUp(ctx, playerID)
	case "volume_down":
		err = m.manager.VolumeDown(ctx, playerID)
	case "mute":
		if req.Muted == nil {
			err = media.ErrInvalidData
		} else {
			err = m.manager.SetMute(ctx, playerID, *req.Muted)
		}
	case "seek":
		if req.Position == nil {
			err = media.ErrInvalidData
		} else {
			err = m.manager.Seek(ctx, playerID, *req.Position)
		}
	default:
		err = media.ErrInvalidData
	}
	if err != nil {
		playerError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (m *Module) handleGetQueue(c *gin.Context) {
	queue, err := m.manager.Queue(c.Param("player_id"))
	if err != nil {
		playerError(c, err)
		return
	}
	c.JSON(http.StatusOK, queue.Snapshot())
}

func (m *Module) handleQueueItems(c *gin.Context) {
	queue, err := m.manager.Queue(c.Param("player_id"))
	if err != nil {
		playerError(c, err)
		return
	}
	items := queue.Items()
	if limitStr := c.Query("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit < len(items) {
			items = items[:limit]
		}
	}
	c.JSON(http.StatusOK, items)
}

func (m *Module) handlePlayMedia(c *gin.Context) {
	queue, err := m.manager.Queue(c.Param("player_id"))
	if err != nil {
		playerError(c, err)
		return
	}
	var req struct {
		URIs   []string          `json:"uris" binding:"required"`
		Option media.QueueOption `json:"option"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		playerError(c, media.ErrInvalidData)
		return
	}
	if err := queue.PlayMedia(c.Request.Context(), req.URIs, req.Option); err != nil {
		playerError(c, err)
		return
	}
	c.JSON(http.StatusOK, queue.Snapshot())
}

func (m *Module) handleQueueSettings(c *gin.Context) {
	queue, err := m.manager.Queue(c.Param("player_id"))
	if err != nil {
		playerError(c, err)
		return
	}
	var req struct {
		Shuffle   *bool             `json:"shuffle_enabled,omitempty"`
		Repeat    *media.RepeatMode `json:"repeat_mode,omitempty"`
		Crossfade *bool             `json:"crossfade_enabled,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		playerError(c, media.ErrInvalidData)
		return
	}
	if req.Shuffle != nil {
		queue.SetShuffle(*req.Shuffle)
	}
	if req.Repeat != nil {
		queue.SetRepeat(*req.Repeat)
	}
	if req.Crossfade != nil {
		queue.SetCrossfade(*req.Crossfade)
	}
	c.JSON(http.StatusOK, queue.Snapshot())
}

func (m *Module) handleClearQueue(c *gin.Context) {
	queue, err := m.manager.Queue(c.Param("player_id"))
	if err != nil {
		playerError(c, err)
		return
	}
	queue.Clear()
	c.Status(http.StatusNoContent)
}
