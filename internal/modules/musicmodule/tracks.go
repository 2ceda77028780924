package musicmodule

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/marcelveldt/music-assistant/internal/database"
	"github.com/marcelveldt/music-assistant/internal/media"
	"github.com/marcelveldt/music-assistant/internal/providers"
)

// TracksController manages the canonical tracks table.
type TracksController struct {
	*base[*media.Track]
}

func newTracksController(m *Module) *TracksController {
	ops := storeOps[*media.Track]{
		mediaType: media.MediaTypeTrack,
		load: func(db *gorm.DB, id int64) (*media.Track, error) {
			return loadRow(db, id, media.MediaTypeTrack, (*database.TrackRow).ToItem)
		},
		insert: func(db *gorm.DB, item *media.Track) (int64, error) {
			row := database.TrackToRow(item)
			row.ID = 0
			if err := db.Create(row).Error; err != nil {
				return 0, err
			}
			return row.ID, nil
		},
		update: func(db *gorm.DB, id int64, item *media.Track) error {
			row := database.TrackToRow(item)
			row.ID = id
			return db.Save(row).Error
		},
		delete: deleteRowByID[database.TrackRow],
		list: func(db *gorm.DB, f ListFilter) ([]*media.Track, int64, error) {
			return listRows(db, f, (*database.TrackRow).ToItem)
		},
		match:       matchTrackRow,
		mergeFields: mergeTrackFields,
		providerGet: func(ctx context.Context, prov providers.MusicProvider, itemID string) (*media.Track, error) {
			return prov.GetTrack(ctx, itemID)
		},
		compare:     media.CompareTrack,
		searchQuery: trackSearchQuery,
		searchPick:  func(r *media.SearchResults) []*media.Track { return r.Tracks },
	}
	return &TracksController{newBase(m, ops)}
}

func matchTrackRow(db *gorm.DB, item *media.Track) (int64, error) {
	if item.MusicBrainzID != "" {
		var row database.TrackRow
		if err := db.Where("music_brainz_id = ?", item.MusicBrainzID).First(&row).Error; err == nil {
			return row.ID, nil
		}
	}
	for _, isrc := range item.ISRCs() {
		var rows []database.TrackRow
		if err := db.Where("isrc LIKE ?", "%"+isrc+"%").Find(&rows).Error; err == nil {
			for i := range rows {
				for _, existing := range rows[i].ToItem().ISRCs() {
					if existing == isrc {
						return rows[i].ID, nil
					}
				}
			}
		}
	}
	var rows []database.TrackRow
	if err := db.Where("sort_name = ?", media.CreateSortName(item.Name)).Find(&rows).Error; err != nil {
		return 0, err
	}
	for i := range rows {
		if media.CompareTrack(rows[i].ToItem(), item) {
			return rows[i].ID, nil
		}
	}
	return 0, nil
}

func mergeTrackFields(existing, incoming *media.Track, overwrite bool) {
	if incoming.Duration != 0 && (existing.Duration == 0 || overwrite) {
		existing.Duration = incoming.Duration
	}
	if incoming.Version != "" && (existing.Version == "" || overwrite) {
		existing.Version = incoming.Version
	}
	if incoming.MusicBrainzID != "" && (existing.MusicBrainzID == "" || overwrite) {
		existing.MusicBrainzID = incoming.MusicBrainzID
	}
	for _, isrc := range incoming.ISRCs() {
		existing.AddISRC(isrc)
	}
	existing.Artists = mergeItemMappings(existing.Artists, incoming.Artists)
	for _, appearance := range incoming.Albums {
		existing.AddAlbumMapping(appearance)
	}
	if incoming.Album != nil && existing.Album == nil {
		existing.Album = incoming.Album
		existing.DiscNumber = incoming.DiscNumber
		existing.TrackNumber = incoming.TrackNumber
	}
}

func trackSearchQuery(item *media.Track) string {
	if artist := item.Artist(); artist != nil {
		return artist.Name + " - " + item.Name
	}
	return item.Name
}

// Versions returns other library tracks that carry the same name by the
// same artist but a different version tag.
func (c *TracksController) Versions(ctx context.Context, id int64) ([]*media.Track, error) {
	track, err := c.GetLibraryItem(ctx, id)
	if err != nil {
		return nil, err
	}
	var rows []database.TrackRow
	if err := c.module.db.
		Where("sort_name = ? AND id != ?", track.SortName, id).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	var out []*media.Track
	for i := range rows {
		candidate := rows[i].ToItem()
		if media.CompareArtists(track.Artists, candidate.Artists, true) {
			out = append(out, candidate)
		}
	}
	return out, nil
}

// Similar returns dynamically recommended tracks seeded by the given
// track, from the first mapped provider that can serve them.
func (c *TracksController) Similar(ctx context.Context, itemID, provID string, limit int) ([]*media.Track, error) {
	track, err := c.Get(ctx, itemID, provID, false, false)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 25
	}
	for _, mapping := range track.ProviderMappings {
		prov := c.module.providers.Get(mapping.ProviderInstance)
		if prov == nil || !prov.IsAvailable() || !providers.HasFeature(prov, providers.FeatureSimilarTracks) {
			continue
		}
		similar, err := prov.SimilarTracks(ctx, mapping.ItemID, limit)
		if err != nil {
			if !errors.Is(err, media.ErrUnsupported) {
				c.logger.Debug("similar tracks lookup failed", "provider", mapping.ProviderInstance, "error", err)
			}
			continue
		}
		if len(similar) > 0 {
			return similar, nil
		}
	}
	return nil, media.ErrUnsupported
}

// ReportPlayed forwards a playback report to every mapped provider.
func (c *TracksController) ReportPlayed(ctx context.Context, id int64, fullyPlayed bool, positionSeconds int) error {
	track, err := c.GetLibraryItem(ctx, id)
	if err != nil {
		return err
	}
	for _, mapping := range track.ProviderMappings {
		prov := c.module.providers.Get(mapping.ProviderInstance)
		if prov == nil || !prov.IsAvailable() {
			continue
		}
		if err := prov.OnPlayed(ctx, media.MediaTypeTrack, mapping.ItemID, fullyPlayed, positionSeconds); err != nil {
			c.logger.Debug("played report failed", "provider", mapping.ProviderInstance, "error", err)
		}
	}
	return nil
}
