package musicmodule

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/marcelveldt/music-assistant/internal/database"
	"github.com/marcelveldt/music-assistant/internal/media"
	"github.com/marcelveldt/music-assistant/internal/providers"
)

// ArtistsController manages the canonical artists table.
type ArtistsController struct {
	*base[*media.Artist]
}

func newArtistsController(m *Module) *ArtistsController {
	ops := storeOps[*media.Artist]{
		mediaType: media.MediaTypeArtist,
		load: func(db *gorm.DB, id int64) (*media.Artist, error) {
			return loadRow(db, id, media.MediaTypeArtist, (*database.ArtistRow).ToItem)
		},
		insert: func(db *gorm.DB, item *media.Artist) (int64, error) {
			row := database.ArtistToRow(item)
			row.ID = 0
			if err := db.Create(row).Error; err != nil {
				return 0, err
			}
			return row.ID, nil
		},
		update: func(db *gorm.DB, id int64, item *media.Artist) error {
			row := database.ArtistToRow(item)
			row.ID = id
			return db.Save(row).Error
		},
		delete: deleteRowByID[database.ArtistRow],
		list: func(db *gorm.DB, f ListFilter) ([]*media.Artist, int64, error) {
			return listRows(db, f, (*database.ArtistRow).ToItem)
		},
		match:       matchArtistRow,
		mergeFields: mergeArtistFields,
		providerGet: func(ctx context.Context, prov providers.MusicProvider, itemID string) (*media.Artist, error) {
			return prov.GetArtist(ctx, itemID)
		},
		compare:    compareArtistItems,
		searchPick: func(r *media.SearchResults) []*media.Artist { return r.Artists },
	}
	return &ArtistsController{newBase(m, ops)}
}

func matchArtistRow(db *gorm.DB, item *media.Artist) (int64, error) {
	if item.MusicBrainzID != "" {
		var row database.ArtistRow
		if err := db.Where("music_brainz_id = ?", item.MusicBrainzID).First(&row).Error; err == nil {
			return row.ID, nil
		}
	}
	var rows []database.ArtistRow
	if err := db.Where("sort_name = ?", media.CreateSortName(item.Name)).Find(&rows).Error; err != nil {
		return 0, err
	}
	for i := range rows {
		if media.StrictCompareStrings(rows[i].Name, item.Name) {
			return rows[i].ID, nil
		}
	}
	return 0, nil
}

func mergeArtistFields(existing, incoming *media.Artist, overwrite bool) {
	if incoming.MusicBrainzID != "" && (existing.MusicBrainzID == "" || overwrite) {
		existing.MusicBrainzID = incoming.MusicBrainzID
	}
}

func compareArtistItems(a, b *media.Artist) bool {
	if a.MusicBrainzID != "" && b.MusicBrainzID != "" {
		return a.MusicBrainzID == b.MusicBrainzID
	}
	return media.StrictCompareStrings(a.Name, b.Name)
}

// Delete removes a library artist. Unless recursive, deletion is refused
// while albums or tracks still reference the artist.
func (c *ArtistsController) Delete(ctx context.Context, id int64, recursive bool) error {
	refs, err := c.module.countArtistRefs(id)
	if err != nil {
		return err
	}
	if refs > 0 && !recursive {
		return fmt.Errorf("%w: artist %d still referenced by %d items", media.ErrInvalidData, id, refs)
	}
	if refs > 0 {
		if err := c.module.deleteArtistRefs(ctx, id); err != nil {
			return err
		}
	}
	return c.base.Delete(ctx, id)
}

// Albums returns all albums of an artist: library albums referencing it
// plus live provider listings from its mappings.
func (c *ArtistsController) Albums(ctx context.Context, itemID, provID string) ([]*media.Album, error) {
	artist, err := c.Get(ctx, itemID, provID, false, false)
	if err != nil {
		return nil, err
	}
	uri := artist.URI
	var rows []database.AlbumRow
	if err := c.module.db.Where("artists LIKE ?", "%"+uri+"%").Find(&rows).Error; err != nil {
		return nil, err
	}
	albums := make([]*media.Album, 0, len(rows))
	seen := make(map[string]struct{})
	for i := range rows {
		album := rows[i].ToItem()
		albums = append(albums, album)
		seen[media.CompareString(album.Name)+album.Version] = struct{}{}
	}
	for _, mapping := range artist.ProviderMappings {
		prov := c.module.providers.Get(mapping.ProviderInstance)
		if prov == nil || !prov.IsAvailable() || !providers.HasFeature(prov, providers.FeatureArtistAlbums) {
			continue
		}
		provAlbums, err := prov.ArtistAlbums(ctx, mapping.ItemID)
		if err != nil {
			if !errors.Is(err, media.ErrUnsupported) {
				c.logger.Debug("artist albums lookup failed", "provider", mapping.ProviderInstance, "error", err)
			}
			continue
		}
		for _, album := range provAlbums {
			key := media.CompareString(album.Name) + album.Version
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			albums = append(albums, album)
		}
	}
	return albums, nil
}

// TopTracks returns the artist's most popular tracks from the first
// provider mapping that supports the listing, padded with library tracks.
func (c *ArtistsController) TopTracks(ctx context.Context, itemID, provID string) ([]*media.Track, error) {
	artist, err := c.Get(ctx, itemID, provID, false, false)
	if err != nil {
		return nil, err
	}
	for _, mapping := range artist.ProviderMappings {
		prov := c.module.providers.Get(mapping.ProviderInstance)
		if prov == nil || !prov.IsAvailable() || !providers.HasFeature(prov, providers.FeatureArtistTopTracks) {
			continue
		}
		tracks, err := prov.ArtistTopTracks(ctx, mapping.ItemID)
		if err == nil && len(tracks) > 0 {
			return tracks, nil
		}
	}
	var rows []database.TrackRow
	if err := c.module.db.Where("artists LIKE ?", "%"+artist.URI+"%").Limit(25).Find(&rows).Error; err != nil {
		return nil, err
	}
	tracks := make([]*media.Track, 0, len(rows))
	for i := range rows {
		tracks = append(tracks, rows[i].ToItem())
	}
	return tracks, nil
}

// countArtistRefs counts albums and tracks referencing a library artist.
func (m *Module) countArtistRefs(id int64) (int64, error) {
	uri := media.CreateURI(media.MediaTypeArtist, media.ProviderDatabase, strconv.FormatInt(id, 10))
	var albums, tracks int64
	if err := m.db.Model(&database.AlbumRow{}).Where("artists LIKE ?", "%"+uri+"%").Count(&albums).Error; err != nil {
		return 0, err
	}
	if err := m.db.Model(&database.TrackRow{}).Where("artists LIKE ?", "%"+uri+"%").Count(&tracks).Error; err != nil {
		return 0, err
	}
	return albums + tracks, nil
}

// deleteArtistRefs cascades a recursive artist delete to the albums and
// tracks that reference it.
func (m *Module) deleteArtistRefs(ctx context.Context, id int64) error {
	uri := media.CreateURI(media.MediaTypeArtist, media.ProviderDatabase, strconv.FormatInt(id, 10))
	var albumRows []database.AlbumRow
	if err := m.db.Where("artists LIKE ?", "%"+uri+"%").Find(&albumRows).Error; err != nil {
		return err
	}
	for i := range albumRows {
		if err := m.Albums.Delete(ctx, albumRows[i].ID); err != nil {
			return err
		}
	}
	var trackRows []database.TrackRow
	if err := m.db.Where("artists LIKE ?", "%"+uri+"%").Find(&trackRows).Error; err != nil {
		return err
	}
	for i := range trackRows {
		if err := m.Tracks.Delete(ctx, trackRows[i].ID); err != nil {
			return err
		}
	}
	return nil
}
