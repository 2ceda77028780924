package musicmodule

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/marcelveldt/music-assistant/internal/database"
	"github.com/marcelveldt/music-assistant/internal/media"
	"github.com/marcelveldt/music-assistant/internal/providers"
	"github.com/marcelveldt/music-assistant/internal/providers/filesystem"
)

// PlaylistsController manages the canonical playlists table.
type PlaylistsController struct {
	*base[*media.Playlist]
}

func newPlaylistsController(m *Module) *PlaylistsController {
	ops := storeOps[*media.Playlist]{
		mediaType: media.MediaTypePlaylist,
		load: func(db *gorm.DB, id int64) (*media.Playlist, error) {
			return loadRow(db, id, media.MediaTypePlaylist, (*database.PlaylistRow).ToItem)
		},
		insert: func(db *gorm.DB, item *media.Playlist) (int64, error) {
			row := database.PlaylistToRow(item)
			row.ID = 0
			if err := db.Create(row).Error; err != nil {
				return 0, err
			}
			return row.ID, nil
		},
		update: func(db *gorm.DB, id int64, item *media.Playlist) error {
			row := database.PlaylistToRow(item)
			row.ID = id
			return db.Save(row).Error
		},
		delete: deleteRowByID[database.PlaylistRow],
		list: func(db *gorm.DB, f ListFilter) ([]*media.Playlist, int64, error) {
			return listRows(db, f, (*database.PlaylistRow).ToItem)
		},
		match:       matchPlaylistRow,
		mergeFields: mergePlaylistFields,
		providerGet: func(ctx context.Context, prov providers.MusicProvider, itemID string) (*media.Playlist, error) {
			return prov.GetPlaylist(ctx, itemID)
		},
	}
	return &PlaylistsController{newBase(m, ops)}
}

// Playlists are identity-matched only: the same name from two providers
// is two different playlists.
func matchPlaylistRow(db *gorm.DB, item *media.Playlist) (int64, error) {
	return 0, nil
}

func mergePlaylistFields(existing, incoming *media.Playlist, overwrite bool) {
	if incoming.Owner != "" && (existing.Owner == "" || overwrite) {
		existing.Owner = incoming.Owner
	}
	existing.IsEditable = incoming.IsEditable
}

// Tracks returns the playlist's tracks. Results are cached against the
// playlist checksum so an edit invalidates the cached listing.
func (c *PlaylistsController) Tracks(ctx context.Context, itemID, provID string) ([]*media.Track, error) {
	playlist, err := c.Get(ctx, itemID, provID, false, false)
	if err != nil {
		return nil, err
	}
	mapping, prov, ok := c.editMapping(playlist, "")
	if !ok {
		return nil, fmt.Errorf("%w: playlist %s has no available provider", media.ErrProviderUnavailable, playlist.URI)
	}
	key := "playlist_tracks/" + mapping.ProviderInstance + "/" + mapping.ItemID
	if cached, hit := c.module.cache.Get(key, playlist.Checksum()); hit {
		return cached.([]*media.Track), nil
	}
	tracks, err := prov.PlaylistTracks(ctx, mapping.ItemID)
	if err != nil {
		return nil, err
	}
	c.module.cache.Set(key, tracks, 0, playlist.Checksum())
	return tracks, nil
}

// AddTracks appends tracks to an editable playlist. Each uri is resolved
// to the best version the playlist's own provider can serve; a local
// playlist accepts foreign uris as-is.
func (c *PlaylistsController) AddTracks(ctx context.Context, id int64, uris []string) error {
	playlist, err := c.GetLibraryItem(ctx, id)
	if err != nil {
		return err
	}
	if !playlist.IsEditable {
		return fmt.Errorf("%w: playlist %s is not editable", media.ErrUnsupported, playlist.Name)
	}
	mapping, prov, ok := c.editMapping(playlist, string(providers.FeaturePlaylistTracksEdit))
	if !ok {
		return fmt.Errorf("%w: no provider can edit playlist %s", media.ErrUnsupported, playlist.Name)
	}
	resolved, err := c.resolveTrackURIs(ctx, prov, uris)
	if err != nil {
		return err
	}
	if len(resolved) == 0 {
		return fmt.Errorf("%w: none of the tracks are available on %s", media.ErrMediaNotFound, prov.InstanceID())
	}
	if err := prov.AddPlaylistTracks(ctx, mapping.ItemID, resolved); err != nil {
		return err
	}
	c.invalidateTracks(ctx, id, mapping)
	return nil
}

// resolveTrackURIs maps track uris onto the playlist's provider. Tracks
// from other providers are swapped for their highest-quality mapping on
// the target provider. Filesystem playlists store plain uris, so
// unmatched tracks pass through verbatim there; elsewhere they are
// skipped with a warning.
func (c *PlaylistsController) resolveTrackURIs(ctx context.Context, prov providers.MusicProvider, uris []string) ([]string, error) {
	resolved := make([]string, 0, len(uris))
	for _, uri := range uris {
		mediaType, provID, itemID, err := media.ParseURI(uri)
		if err != nil {
			return nil, err
		}
		if mediaType != media.MediaTypeTrack {
			return nil, fmt.Errorf("%w: %s is not a track", media.ErrInvalidData, uri)
		}
		if provID == prov.InstanceID() {
			resolved = append(resolved, uri)
			continue
		}
		track, err := c.module.Tracks.Get(ctx, itemID, provID, false, false)
		if err != nil {
			return nil, err
		}
		if best, ok := bestMappingOn(track.ProviderMappings, prov.InstanceID()); ok {
			resolved = append(resolved, media.CreateURI(media.MediaTypeTrack, prov.InstanceID(), best.ItemID))
			continue
		}
		if prov.Domain() == filesystem.Domain {
			resolved = append(resolved, uri)
			continue
		}
		c.logger.Warn("track not available on playlist provider", "uri", uri, "provider", prov.InstanceID())
	}
	return resolved, nil
}

// bestMappingOn picks the highest-quality available mapping on one
// provider instance.
func bestMappingOn(mappings []media.ProviderMapping, instanceID string) (media.ProviderMapping, bool) {
	var best media.ProviderMapping
	found := false
	for _, m := range mappings {
		if m.ProviderInstance != instanceID || !m.Available {
			continue
		}
		if !found || m.Quality() > best.Quality() {
			best = m
			found = true
		}
	}
	return best, found
}

// RemoveTracks removes the given 1-based positions from an editable
// playlist.
func (c *PlaylistsController) RemoveTracks(ctx context.Context, id int64, positions []int) error {
	playlist, err := c.GetLibraryItem(ctx, id)
	if err != nil {
		return err
	}
	if !playlist.IsEditable {
		return fmt.Errorf("%w: playlist %s is not editable", media.ErrUnsupported, playlist.Name)
	}
	mapping, prov, ok := c.editMapping(playlist, string(providers.FeaturePlaylistTracksEdit))
	if !ok {
		return fmt.Errorf("%w: no provider can edit playlist %s", media.ErrUnsupported, playlist.Name)
	}
	if err := prov.RemovePlaylistTracks(ctx, mapping.ItemID, positions); err != nil {
		return err
	}
	c.invalidateTracks(ctx, id, mapping)
	return nil
}

// Create makes a new playlist on the given provider (or the first one able
// to) and registers it in the library.
func (c *PlaylistsController) Create(ctx context.Context, name, provID string) (*media.Playlist, error) {
	var prov providers.MusicProvider
	if provID != "" {
		prov = c.module.providers.Get(provID)
	} else {
		for _, candidate := range c.module.providers.WithFeature(providers.FeaturePlaylistCreate) {
			prov = candidate
			break
		}
	}
	if prov == nil || !providers.HasFeature(prov, providers.FeaturePlaylistCreate) {
		return nil, fmt.Errorf("%w: no provider supports playlist creation", media.ErrUnsupported)
	}
	playlist, err := prov.CreatePlaylist(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.Add(ctx, playlist, false)
}

// invalidateTracks drops the cached listing and refreshes the checksum
// from the provider.
func (c *PlaylistsController) invalidateTracks(ctx context.Context, id int64, mapping media.ProviderMapping) {
	c.module.cache.Delete("playlist_tracks/" + mapping.ProviderInstance + "/" + mapping.ItemID)
	fresh, err := c.providerItem(ctx, mapping.ProviderInstance, mapping.ItemID)
	if err != nil {
		c.logger.Debug("playlist refresh after edit failed", "error", err)
		return
	}
	if _, err := c.Update(ctx, id, fresh, false); err != nil {
		c.logger.Warn("playlist checksum not stored", "id", id, "error", err)
	}
}

// editMapping finds the first available mapping whose provider is up and,
// when feature is given, declares it.
func (c *PlaylistsController) editMapping(playlist *media.Playlist, feature string) (media.ProviderMapping, providers.MusicProvider, bool) {
	for _, mapping := range playlist.ProviderMappings {
		prov := c.module.providers.Get(mapping.ProviderInstance)
		if prov == nil || !prov.IsAvailable() {
			continue
		}
		if feature != "" && !providers.HasFeature(prov, providers.Feature(feature)) {
			continue
		}
		return mapping, prov, true
	}
	return media.ProviderMapping{}, nil, false
}
