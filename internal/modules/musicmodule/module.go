// Package musicmodule holds the media controllers: the canonical library
// tables, provider-scoped item resolution, cross-provider matching and
// global search.
package musicmodule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/marcelveldt/music-assistant/internal/cache"
	"github.com/marcelveldt/music-assistant/internal/database"
	"github.com/marcelveldt/music-assistant/internal/events"
	"github.com/marcelveldt/music-assistant/internal/media"
	"github.com/marcelveldt/music-assistant/internal/providers"
	"github.com/marcelveldt/music-assistant/internal/providers/filesystem"
)

// searchCacheTTL keeps provider search results warm for a week. Local
// file providers are never cached: their content changes under our feet.
const searchCacheTTL = 7 * 24 * time.Hour

// Module is the music library module.
type Module struct {
	db        *gorm.DB
	logger    hclog.Logger
	bus       *events.Bus
	cache     *cache.Cache
	providers *providers.Registry

	Artists    *ArtistsController
	Albums     *AlbumsController
	Tracks     *TracksController
	Playlists  *PlaylistsController
	Radios     *RadiosController
	Audiobooks *AudiobooksController
	Podcasts   *PodcastsController
}

// New wires the music module and its per-entity controllers.
func New(db *gorm.DB, logger hclog.Logger, bus *events.Bus, itemCache *cache.Cache, registry *providers.Registry) *Module {
	m := &Module{
		db:        db,
		logger:    logger.Named("music"),
		bus:       bus,
		cache:     itemCache,
		providers: registry,
	}
	m.Artists = newArtistsController(m)
	m.Albums = newAlbumsController(m)
	m.Tracks = newTracksController(m)
	m.Playlists = newPlaylistsController(m)
	m.Radios = newRadiosController(m)
	m.Audiobooks = newAudiobooksController(m)
	m.Podcasts = newPodcastsController(m)
	return m
}

func (m *Module) ID() string   { return "music" }
func (m *Module) Name() string { return "Music Library" }
func (m *Module) Core() bool   { return true }

// Migrate creates the canonical library tables.
func (m *Module) Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&database.ArtistRow{},
		&database.AlbumRow{},
		&database.TrackRow{},
		&database.PlaylistRow{},
		&database.RadioRow{},
		&database.AudiobookRow{},
		&database.PodcastRow{},
		&database.ProviderMappingRow{},
		&database.TrackLoudness{},
	)
}

func (m *Module) Init() error { return nil }

// Providers exposes the provider registry to sibling modules.
func (m *Module) Providers() *providers.Registry { return m.providers }

// DB exposes the library database handle to sibling modules.
func (m *Module) DB() *gorm.DB { return m.db }

// GetItemByURI resolves any item uri to its full object.
func (m *Module) GetItemByURI(ctx context.Context, uri string) (media.LibraryItem, error) {
	mediaType, provID, itemID, err := media.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return m.GetItem(ctx, mediaType, itemID, provID)
}

// GetItem resolves a provider-scoped item id for any media type.
func (m *Module) GetItem(ctx context.Context, mediaType media.MediaType, itemID, provID string) (media.LibraryItem, error) {
	switch mediaType {
	case media.MediaTypeArtist:
		return m.Artists.Get(ctx, itemID, provID, false, false)
	case media.MediaTypeAlbum:
		return m.Albums.Get(ctx, itemID, provID, false, false)
	case media.MediaTypeTrack:
		return m.Tracks.Get(ctx, itemID, provID, false, false)
	case media.MediaTypePlaylist:
		return m.Playlists.Get(ctx, itemID, provID, false, false)
	case media.MediaTypeRadio:
		return m.Radios.Get(ctx, itemID, provID, false, false)
	case media.MediaTypeAudiobook:
		return m.Audiobooks.Get(ctx, itemID, provID, false, false)
	case media.MediaTypePodcast:
		return m.Podcasts.Get(ctx, itemID, provID, false, false)
	default:
		return nil, fmt.Errorf("%w: unresolvable media type %s", media.ErrInvalidData, mediaType)
	}
}

// Search fans the query out to the library and every search-capable
// provider, merging results per media type up to limit each.
func (m *Module) Search(ctx context.Context, query string, mediaTypes []media.MediaType, limit int) (*media.SearchResults, error) {
	if limit <= 0 {
		limit = 25
	}
	if len(mediaTypes) == 0 {
		mediaTypes = media.LibraryTypes
	}
	combined := &media.SearchResults{}
	m.searchLibrary(ctx, combined, query, mediaTypes, limit)
	for _, prov := range m.providers.WithFeature(providers.FeatureSearch) {
		results, err := m.providerSearch(ctx, prov, query, mediaTypes, limit)
		if err != nil {
			m.logger.Warn("provider search failed", "provider", prov.InstanceID(), "error", err)
			continue
		}
		mergeSearchResults(combined, results, limit)
	}
	return combined, nil
}

// providerSearch runs one provider search through the cache.
func (m *Module) providerSearch(ctx context.Context, prov providers.MusicProvider, query string, mediaTypes []media.MediaType, limit int) (*media.SearchResults, error) {
	doSearch := func(ctx context.Context) (any, error) {
		var results *media.SearchResults
		err := providers.WithRetry(ctx, m.logger, func(ctx context.Context) error {
			if err := m.providers.Throttle(ctx, prov.InstanceID()); err != nil {
				return err
			}
			var err error
			results, err = prov.Search(ctx, query, mediaTypes, limit)
			return err
		})
		return results, err
	}
	if prov.Domain() == filesystem.Domain {
		val, err := doSearch(ctx)
		if err != nil {
			return nil, err
		}
		return val.(*media.SearchResults), nil
	}
	types := make([]string, len(mediaTypes))
	for i, t := range mediaTypes {
		types[i] = string(t)
	}
	key := fmt.Sprintf("search/%s/%s/%s/%d", prov.InstanceID(), query, strings.Join(types, ","), limit)
	val, err := m.cache.GetOrCompute(ctx, key, searchCacheTTL, doSearch)
	if err != nil {
		return nil, err
	}
	return val.(*media.SearchResults), nil
}

func (m *Module) searchLibrary(ctx context.Context, dst *media.SearchResults, query string, mediaTypes []media.MediaType, limit int) {
	f := ListFilter{Search: query, Limit: limit}
	for _, mediaType := range mediaTypes {
		switch mediaType {
		case media.MediaTypeArtist:
			if page, err := m.Artists.Library(ctx, f); err == nil {
				dst.Artists = append(dst.Artists, page.Items...)
			}
		case media.MediaTypeAlbum:
			if page, err := m.Albums.Library(ctx, f); err == nil {
				dst.Albums = append(dst.Albums, page.Items...)
			}
		case media.MediaTypeTrack:
			if page, err := m.Tracks.Library(ctx, f); err == nil {
				dst.Tracks = append(dst.Tracks, page.Items...)
			}
		case media.MediaTypePlaylist:
			if page, err := m.Playlists.Library(ctx, f); err == nil {
				dst.Playlists = append(dst.Playlists, page.Items...)
			}
		case media.MediaTypeRadio:
			if page, err := m.Radios.Library(ctx, f); err == nil {
				dst.Radios = append(dst.Radios, page.Items...)
			}
		case media.MediaTypeAudiobook:
			if page, err := m.Audiobooks.Library(ctx, f); err == nil {
				dst.Audiobooks = append(dst.Audiobooks, page.Items...)
			}
		case media.MediaTypePodcast:
			if page, err := m.Podcasts.Library(ctx, f); err == nil {
				dst.Podcasts = append(dst.Podcasts, page.Items...)
			}
		}
	}
}

func mergeSearchResults(dst, src *media.SearchResults, limit int) {
	if src == nil {
		return
	}
	for _, a := range src.Artists {
		if len(dst.Artists) < limit {
			dst.Artists = append(dst.Artists, a)
		}
	}
	for _, a := range src.Albums {
		if len(dst.Albums) < limit {
			dst.Albums = append(dst.Albums, a)
		}
	}
	for _, t := range src.Tracks {
		if len(dst.Tracks) < limit {
			dst.Tracks = append(dst.Tracks, t)
		}
	}
	for _, p := range src.Playlists {
		if len(dst.Playlists) < limit {
			dst.Playlists = append(dst.Playlists, p)
		}
	}
	for _, r := range src.Radios {
		if len(dst.Radios) < limit {
			dst.Radios = append(dst.Radios, r)
		}
	}
	for _, a := range src.Audiobooks {
		if len(dst.Audiobooks) < limit {
			dst.Audiobooks = append(dst.Audiobooks, a)
		}
	}
	for _, p := range src.Podcasts {
		if len(dst.Podcasts) < limit {
			dst.Podcasts = append(dst.Podcasts, p)
		}
	}
}
