package syncmodule

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/marcelveldt/music-assistant/internal/media"
)

// RegisterRoutes exposes the sync API.
func (m *Module) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/sync")
	api.GET("/tasks", m.handleTasks)
	api.POST("", m.handleTrigger)
}

func (m *Module) handleTasks(c *gin.Context) {
	c.JSON(http.StatusOK, m.Running())
}

func (m *Module) handleTrigger(c *gin.Context) {
	var req struct {
		Provider   string   `json:"provider"`
		MediaTypes []string `json:"media_types"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	var mediaTypes []media.MediaType
	for _, raw := range req.MediaTypes {
		mediaTypes = append(mediaTypes, media.MediaType(strings.TrimSpace(raw)))
	}
	// detach from the request context: the job outlives the response
	if req.Provider == "" {
		go m.SyncAll(context.Background())
		c.JSON(http.StatusAccepted, gin.H{"status": "sync scheduled"})
		return
	}
	go func() {
		if err := m.SyncInstance(context.Background(), req.Provider, mediaTypes); err != nil {
			m.logger.Warn("manual sync failed", "provider", req.Provider, "error", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "sync scheduled", "provider": req.Provider})
}
