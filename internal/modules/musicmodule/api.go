package musicmodule

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/marcelveldt/music-assistant/internal/media"
)

// RegisterRoutes exposes the music library API.
func (m *Module) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/music")

	api.GET("/search", m.handleSearch)
	api.GET("/item", m.handleGetItemByURI)

	api.GET("/artists", listHandler(m.Artists.base))
	api.GET("/artists/:item_id", getHandler(m.Artists.base))
	api.GET("/artists/:item_id/albums", m.handleArtistAlbums)
	api.GET("/artists/:item_id/tracks", m.handleArtistTopTracks)
	api.DELETE("/artists/:item_id", m.handleArtistDelete)

	api.GET("/albums", listHandler(m.Albums.base))
	api.GET("/albums/:item_id", getHandler(m.Albums.base))
	api.GET("/albums/:item_id/tracks", m.handleAlbumTracks)
	api.GET("/albums/:item_id/versions", m.handleAlbumVersions)
	api.DELETE("/albums/:item_id", deleteHandler(m.Albums.base))

	api.GET("/tracks", listHandler(m.Tracks.base))
	api.GET("/tracks/:item_id", getHandler(m.Tracks.base))
	api.GET("/tracks/:item_id/versions", m.handleTrackVersions)
	api.GET("/tracks/:item_id/similar", m.handleSimilarTracks)
	api.DELETE("/tracks/:item_id", deleteHandler(m.Tracks.base))

	api.GET("/playlists", listHandler(m.Playlists.base))
	api.GET("/playlists/:item_id", getHandler(m.Playlists.base))
	api.GET("/playlists/:item_id/tracks", m.handlePlaylistTracks)
	api.POST("/playlists", m.handlePlaylistCreate)
	api.POST("/playlists/:item_id/tracks", m.handlePlaylistAddTracks)
	api.DELETE("/playlists/:item_id/tracks", m.handlePlaylistRemoveTracks)
	api.DELETE("/playlists/:item_id", deleteHandler(m.Playlists.base))

	api.GET("/radios", listHandler(m.Radios.base))
	api.GET("/radios/:item_id", getHandler(m.Radios.base))
	api.DELETE("/radios/:item_id", deleteHandler(m.Radios.base))

	api.GET("/audiobooks", listHandler(m.Audiobooks.base))
	api.GET("/audiobooks/:item_id", getHandler(m.Audiobooks.base))
	api.PUT("/audiobooks/:item_id/progress", m.handleAudiobookProgress)
	api.DELETE("/audiobooks/:item_id", deleteHandler(m.Audiobooks.base))

	api.GET("/podcasts", listHandler(m.Podcasts.base))
	api.GET("/podcasts/:item_id", getHandler(m.Podcasts.base))
	api.GET("/podcasts/:item_id/episodes", m.handlePodcastEpisodes)
	api.DELETE("/podcasts/:item_id", deleteHandler(m.Podcasts.base))

	api.POST("/library", m.handleLibraryAdd)
	api.DELETE("/library", m.handleLibraryRemove)
}

func listFilterFromQuery(c *gin.Context) ListFilter {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return ListFilter{
		Search:        c.Query("search"),
		Limit:         limit,
		Offset:        offset,
		OrderBy:       c.Query("order_by"),
		InLibraryOnly: c.Query("in_library") == "true",
	}
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, media.ErrMediaNotFound):
		status = http.StatusNotFound
	case errors.Is(err, media.ErrInvalidData):
		status = http.StatusBadRequest
	case errors.Is(err, media.ErrUnsupported):
		status = http.StatusNotImplemented
	case errors.Is(err, media.ErrProviderUnavailable), errors.Is(err, media.ErrRateLimited):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func listHandler[T media.LibraryItem](b *base[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := b.Library(c.Request.Context(), listFilterFromQuery(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func getHandler[T media.LibraryItem](b *base[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := b.Get(
			c.Request.Context(),
			c.Param("item_id"),
			c.Query("provider"),
			c.Query("lazy") == "true",
			c.Query("refresh") == "true",
		)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func deleteHandler[T media.LibraryItem](b *base[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("item_id"), 10, 64)
		if err != nil {
			writeError(c, media.ErrInvalidData)
			return
		}
		if err := b.Delete(c.Request.Context(), id); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (m *Module) handleSearch(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		writeError(c, media.ErrInvalidData)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
	var mediaTypes []media.MediaType
	if raw := c.Query("media_types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			mediaTypes = append(mediaTypes, media.MediaType(t))
		}
	}
	results, err := m.Search(c.Request.Context(), query, mediaTypes, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (m *Module) handleGetItemByURI(c *gin.Context) {
	item, err := m.GetItemByURI(c.Request.Context(), c.Query("uri"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (m *Module) handleArtistAlbums(c *gin.Context) {
	albums, err := m.Artists.Albums(c.Request.Context(), c.Param("item_id"), c.Query("provider"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, albums)
}

func (m *Module) handleArtistTopTracks(c *gin.Context) {
	tracks, err := m.Artists.TopTracks(c.Request.Context(), c.Param("item_id"), c.Query("provider"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tracks)
}

func (m *Module) handleArtistDelete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("item_id"), 10, 64)
	if err != nil {
		writeError(c, media.ErrInvalidData)
		return
	}
	recursive := c.Query("recursive") == "true"
	if err := m.Artists.Delete(c.Request.Context(), id, recursive); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (m *Module) handleAlbumTracks(c *gin.Context) {
	tracks, err := m.Albums.Tracks(c.Request.Context(), c.Param("item_id"), c.Query("provider"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tracks)
}

func (m *Module) handleAlbumVersions(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("item_id"), 10, 64)
	if err != nil {
		writeError(c, media.ErrInvalidData)
		return
	}
	versions, err := m.Albums.Versions(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

func (m *Module) handleTrackVersions(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("item_id"), 10, 64)
	if err != nil {
		writeError(c, media.ErrInvalidData)
		return
	}
	versions, err := m.Tracks.Versions(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

func (m *Module) handleSimilarTracks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
	tracks, err := m.Tracks.Similar(c.Request.Context(), c.Param("item_id"), c.Query("provider"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tracks)
}

func (m *Module) handlePlaylistTracks(c *gin.Context) {
	tracks, err := m.Playlists.Tracks(c.Request.Context(), c.Param("item_id"), c.Query("provider"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tracks)
}

func (m *Module) handlePlaylistCreate(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Provider string `json:"provider"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, media.ErrInvalidData)
		return
	}
	playlist, err := m.Playlists.Create(c.Request.Context(), req.Name, req.Provider)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, playlist)
}

func (m *Module) handlePlaylistAddTracks(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("item_id"), 10, 64)
	if err != nil {
		writeError(c, media.ErrInvalidData)
		return
	}
	var req struct {
		URIs []string `json:"uris" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, media.ErrInvalidData)
		return
	}
	if err := m.Playlists.AddTracks(c.Request.Context(), id, req.URIs); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (m *Module) handlePlaylistRemoveTracks(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("item_id"), 10, 64)
	if err != nil {
		writeError(c, media.ErrInvalidData)
		return
	}
	var req struct {
		Positions []int `json:"positions" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, media.ErrInvalidData)
		return
	}
	if err := m.Playlists.RemoveTracks(c.Request.Context(), id, req.Positions); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (m *Module) handleAudiobookProgress(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("item_id"), 10, 64)
	if err != nil {
		writeError(c, media.ErrInvalidData)
		return
	}
	var req struct {
		PositionMs  int64 `json:"position_ms"`
		FullyPlayed bool  `json:"fully_played"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, media.ErrInvalidData)
		return
	}
	if err := m.Audiobooks.UpdateProgress(c.Request.Context(), id, req.PositionMs, req.FullyPlayed); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (m *Module) handlePodcastEpisodes(c *gin.Context) {
	episodes, err := m.Podcasts.Episodes(c.Request.Context(), c.Param("item_id"), c.Query("provider"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, episodes)
}

func (m *Module) handleLibraryAdd(c *gin.Context) {
	var req struct {
		URI string `json:"uri" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, media.ErrInvalidData)
		return
	}
	mediaType, provID, itemID, err := media.ParseURI(req.URI)
	if err != nil {
		writeError(c, err)
		return
	}
	var item any
	switch mediaType {
	case media.MediaTypeArtist:
		item, err = m.Artists.AddToLibrary(c.Request.Context(), itemID, provID)
	case media.MediaTypeAlbum:
		item, err = m.Albums.AddToLibrary(c.Request.Context(), itemID, provID)
	case media.MediaTypeTrack:
		item, err = m.Tracks.AddToLibrary(c.Request.Context(), itemID, provID)
	case media.MediaTypePlaylist:
		item, err = m.Playlists.AddToLibrary(c.Request.Context(), itemID, provID)
	case media.MediaTypeRadio:
		item, err = m.Radios.AddToLibrary(c.Request.Context(), itemID, provID)
	case media.MediaTypeAudiobook:
		item, err = m.Audiobooks.AddToLibrary(c.Request.Context(), itemID, provID)
	case media.MediaTypePodcast:
		item, err = m.Podcasts.AddToLibrary(c.Request.Context(), itemID, provID)
	default:
		err = media.ErrInvalidData
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (m *Module) handleLibraryRemove(c *gin.Context) {
	var req struct {
		MediaType media.MediaType `json:"media_type" binding:"required"`
		ItemID    int64           `json:"item_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, media.ErrInvalidData)
		return
	}
	ctx := c.Request.Context()
	var err error
	switch req.MediaType {
	case media.MediaTypeArtist:
		err = m.Artists.RemoveFromLibrary(ctx, req.ItemID)
	case media.MediaTypeAlbum:
		err = m.Albums.RemoveFromLibrary(ctx, req.ItemID)
	case media.MediaTypeTrack:
		err = m.Tracks.RemoveFromLibrary(ctx, req.ItemID)
	case media.MediaTypePlaylist:
		err = m.Playlists.RemoveFromLibrary(ctx, req.ItemID)
	case media.MediaTypeRadio:
		err = m.Radios.RemoveFromLibrary(ctx, req.ItemID)
	case media.MediaTypeAudiobook:
		err = m.Audiobooks.RemoveFromLibrary(ctx, req.ItemID)
	case media.MediaTypePodcast:
		err = m.Podcasts.RemoveFromLibrary(ctx, req.ItemID)
	default:
		err = media.ErrInvalidData
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
