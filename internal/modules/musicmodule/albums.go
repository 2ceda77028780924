package musicmodule

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"

	"github.com/marcelveldt/music-assistant/internal/database"
	"github.com/marcelveldt/music-assistant/internal/media"
	"github.com/marcelveldt/music-assistant/internal/providers"
)

// AlbumsController manages the canonical albums table.
type AlbumsController struct {
	*base[*media.Album]
}

func newAlbumsController(m *Module) *AlbumsController {
	ops := storeOps[*media.Album]{
		mediaType: media.MediaTypeAlbum,
		load: func(db *gorm.DB, id int64) (*media.Album, error) {
			return loadRow(db, id, media.MediaTypeAlbum, (*database.AlbumRow).ToItem)
		},
		insert: func(db *gorm.DB, item *media.Album) (int64, error) {
			row := database.AlbumToRow(item)
			row.ID = 0
			if err := db.Create(row).Error; err != nil {
				return 0, err
			}
			return row.ID, nil
		},
		update: func(db *gorm.DB, id int64, item *media.Album) error {
			row := database.AlbumToRow(item)
			row.ID = id
			return db.Save(row).Error
		},
		delete: deleteRowByID[database.AlbumRow],
		list: func(db *gorm.DB, f ListFilter) ([]*media.Album, int64, error) {
			return listRows(db, f, (*database.AlbumRow).ToItem)
		},
		match:       matchAlbumRow,
		mergeFields: mergeAlbumFields,
		providerGet: func(ctx context.Context, prov providers.MusicProvider, itemID string) (*media.Album, error) {
			return prov.GetAlbum(ctx, itemID)
		},
		compare:     media.CompareAlbum,
		searchQuery: albumSearchQuery,
		searchPick:  func(r *media.SearchResults) []*media.Album { return r.Albums },
	}
	return &AlbumsController{newBase(m, ops)}
}

func matchAlbumRow(db *gorm.DB, item *media.Album) (int64, error) {
	if item.MusicBrainzID != "" {
		var row database.AlbumRow
		if err := db.Where("music_brainz_id = ?", item.MusicBrainzID).First(&row).Error; err == nil {
			return row.ID, nil
		}
	}
	if item.UPC != "" {
		var row database.AlbumRow
		if err := db.Where("upc = ?", item.UPC).First(&row).Error; err == nil {
			return row.ID, nil
		}
	}
	var rows []database.AlbumRow
	if err := db.Where("sort_name = ?", media.CreateSortName(item.Name)).Find(&rows).Error; err != nil {
		return 0, err
	}
	for i := range rows {
		if media.CompareAlbum(rows[i].ToItem(), item) {
			return rows[i].ID, nil
		}
	}
	return 0, nil
}

func mergeAlbumFields(existing, incoming *media.Album, overwrite bool) {
	if incoming.Version != "" && (existing.Version == "" || overwrite) {
		existing.Version = incoming.Version
	}
	if incoming.Year != 0 && (existing.Year == 0 || overwrite) {
		existing.Year = incoming.Year
	}
	if incoming.AlbumType != "" && (existing.AlbumType == "" || existing.AlbumType == media.AlbumTypeUnknown || overwrite) {
		existing.AlbumType = incoming.AlbumType
	}
	if incoming.UPC != "" && (existing.UPC == "" || overwrite) {
		existing.UPC = incoming.UPC
	}
	if incoming.MusicBrainzID != "" && (existing.MusicBrainzID == "" || overwrite) {
		existing.MusicBrainzID = incoming.MusicBrainzID
	}
	existing.Artists = mergeItemMappings(existing.Artists, incoming.Artists)
}

func albumSearchQuery(item *media.Album) string {
	if artist := item.Artist(); artist != nil {
		return artist.Name + " - " + item.Name
	}
	return item.Name
}

// mergeItemMappings unions reference lists, unique by name (library and
// provider references to the same artist carry different uris).
func mergeItemMappings(current, incoming []media.ItemMapping) []media.ItemMapping {
	for _, ref := range incoming {
		found := false
		for _, cur := range current {
			if cur.URI == ref.URI || media.StrictCompareStrings(cur.Name, ref.Name) {
				found = true
				break
			}
		}
		if !found {
			current = append(current, ref)
		}
	}
	return current
}

// Tracks lists the album's tracks in disc and track order. Provider
// listings are preferred; for library albums the first available mapping
// serves.
func (c *AlbumsController) Tracks(ctx context.Context, itemID, provID string) ([]*media.Track, error) {
	album, err := c.Get(ctx, itemID, provID, false, false)
	if err != nil {
		return nil, err
	}
	for _, mapping := range album.ProviderMappings {
		if !mapping.Available {
			continue
		}
		prov := c.module.providers.Get(mapping.ProviderInstance)
		if prov == nil || !prov.IsAvailable() {
			continue
		}
		tracks, err := prov.AlbumTracks(ctx, mapping.ItemID)
		if err != nil {
			if !errors.Is(err, media.ErrUnsupported) {
				c.logger.Debug("album tracks lookup failed", "provider", mapping.ProviderInstance, "error", err)
			}
			continue
		}
		return sortAlbumTracks(c.canonicalTracks(ctx, tracks)), nil
	}
	// fall back to library tracks that record an appearance on this album
	var rows []database.TrackRow
	if err := c.module.db.Where("albums LIKE ?", "%"+album.URI+"%").Find(&rows).Error; err != nil {
		return nil, err
	}
	tracks := make([]*media.Track, 0, len(rows))
	for i := range rows {
		track := rows[i].ToItem()
		applyAlbumPosition(track, album)
		tracks = append(tracks, track)
	}
	return sortAlbumTracks(tracks), nil
}

// canonicalTracks swaps provider tracks for their library row where one
// exists, so callers see library uris. The listing's disc and track
// positions are kept.
func (c *AlbumsController) canonicalTracks(ctx context.Context, tracks []*media.Track) []*media.Track {
	out := make([]*media.Track, 0, len(tracks))
	for _, track := range tracks {
		resolved := track
		for _, mapping := range track.ProviderMappings {
			library, err := c.module.Tracks.GetLibraryItemByProvID(ctx, mapping.ProviderInstance, mapping.ItemID)
			if err != nil {
				continue
			}
			library.DiscNumber = track.DiscNumber
			library.TrackNumber = track.TrackNumber
			resolved = library
			break
		}
		out = append(out, resolved)
	}
	return out
}

// applyAlbumPosition restores the disc and track numbers a library track
// has on one specific album.
func applyAlbumPosition(track *media.Track, album *media.Album) {
	for _, appearance := range track.Albums {
		if appearance.URI == album.URI || media.StrictCompareStrings(appearance.Name, album.Name) {
			track.DiscNumber = appearance.DiscNumber
			track.TrackNumber = appearance.TrackNumber
			return
		}
	}
}

func sortAlbumTracks(tracks []*media.Track) []*media.Track {
	sort.SliceStable(tracks, func(i, j int) bool {
		if tracks[i].DiscNumber != tracks[j].DiscNumber {
			return tracks[i].DiscNumber < tracks[j].DiscNumber
		}
		return tracks[i].TrackNumber < tracks[j].TrackNumber
	})
	return tracks
}

// Versions returns other library albums with the same name by the same
// artist (remasters, deluxe editions).
func (c *AlbumsController) Versions(ctx context.Context, id int64) ([]*media.Album, error) {
	album, err := c.GetLibraryItem(ctx, id)
	if err != nil {
		return nil, err
	}
	var rows []database.AlbumRow
	if err := c.module.db.
		Where("sort_name = ? AND id != ?", album.SortName, id).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	var out []*media.Album
	for i := range rows {
		candidate := rows[i].ToItem()
		if media.CompareArtists(album.Artists, candidate.Artists, true) {
			out = append(out, candidate)
		}
	}
	return out, nil
}
