// Package syncmodule runs the periodic provider library synchronisation.
// One sync job covers one (provider instance, media type) pair; a pair
// never runs twice concurrently.
package syncmodule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/marcelveldt/music-assistant/internal/database"
	"github.com/marcelveldt/music-assistant/internal/events"
	"github.com/marcelveldt/music-assistant/internal/media"
	"github.com/marcelveldt/music-assistant/internal/modules/musicmodule"
	"github.com/marcelveldt/music-assistant/internal/providers"
)

// DefaultInterval is the wall time between periodic full syncs.
const DefaultInterval = 3 * time.Hour

// Task describes one running sync job.
type Task struct {
	ProviderInstance string          `json:"provider_instance"`
	MediaType        media.MediaType `json:"media_type"`
	Started          time.Time       `json:"started"`
}

func taskKey(instanceID string, mediaType media.MediaType) string {
	return instanceID + "/" + string(mediaType)
}

// Module is the sync engine.
type Module struct {
	logger    hclog.Logger
	bus       *events.Bus
	music     *musicmodule.Module
	providers *providers.Registry
	interval  time.Duration

	mu      sync.Mutex
	running map[string]*Task

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the sync engine. interval <= 0 selects the default.
func New(logger hclog.Logger, bus *events.Bus, music *musicmodule.Module, registry *providers.Registry, interval time.Duration) *Module {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Module{
		logger:    logger.Named("sync"),
		bus:       bus,
		music:     music,
		providers: registry,
		interval:  interval,
		running:   make(map[string]*Task),
	}
}

func (m *Module) ID() string                { return "sync" }
func (m *Module) Name() string              { return "Library Sync" }
func (m *Module) Core() bool                { return true }
func (m *Module) Migrate(db *gorm.DB) error { return nil }
func (m *Module) Init() error               { return nil }

// Start launches the periodic sync loop.
func (m *Module) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go m.loop(loopCtx)
	return nil
}

// Stop terminates the loop and waits for running jobs.
func (m *Module) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	return nil
}

func (m *Module) loop(ctx context.Context) {
	defer m.wg.Done()
	// initial sync shortly after startup, then on the interval
	timer := time.NewTimer(10 * time.Second)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			m.SyncAll(ctx)
			timer.Reset(m.interval)
		}
	}
}

// Running returns a snapshot of the in-flight sync tasks.
func (m *Module) Running() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Task, 0, len(m.running))
	for _, task := range m.running {
		out = append(out, *task)
	}
	return out
}

// SyncAll syncs every supported media type of every available provider.
// Jobs for distinct pairs run concurrently.
func (m *Module) SyncAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, prov := range m.providers.All() {
		if !prov.IsAvailable() {
			continue
		}
		for _, mediaType := range media.LibraryTypes {
			feature, ok := providers.LibraryFeature(mediaType)
			if !ok || !providers.HasFeature(prov, feature) {
				continue
			}
			wg.Add(1)
			go func(prov providers.MusicProvider, mediaType media.MediaType) {
				defer wg.Done()
				if err := m.SyncProvider(ctx, prov, mediaType); err != nil {
					m.logger.Warn("sync failed", "provider", prov.InstanceID(), "media_type", mediaType, "error", err)
				}
			}(prov, mediaType)
		}
	}
	wg.Wait()
}

// SyncInstance syncs the given media types (all when empty) of one
// provider instance.
func (m *Module) SyncInstance(ctx context.Context, instanceID string, mediaTypes []media.MediaType) error {
	prov := m.providers.Get(instanceID)
	if prov == nil {
		return fmt.Errorf("%w: unknown provider %s", media.ErrProviderUnavailable, instanceID)
	}
	if len(mediaTypes) == 0 {
		mediaTypes = media.LibraryTypes
	}
	for _, mediaType := range mediaTypes {
		feature, ok := providers.LibraryFeature(mediaType)
		if !ok || !providers.HasFeature(prov, feature) {
			continue
		}
		if err := m.SyncProvider(ctx, prov, mediaType); err != nil {
			return err
		}
	}
	return nil
}

// SyncProvider runs one sync job. A job already running for the same
// (provider, media type) pair makes this call a no-op error.
func (m *Module) SyncProvider(ctx context.Context, prov providers.MusicProvider, mediaType media.MediaType) error {
	key := taskKey(prov.InstanceID(), mediaType)
	m.mu.Lock()
	if _, busy := m.running[key]; busy {
		m.mu.Unlock()
		return fmt.Errorf("sync already running for %s", key)
	}
	task := &Task{ProviderInstance: prov.InstanceID(), MediaType: mediaType, Started: time.Now()}
	m.running[key] = task
	m.mu.Unlock()

	m.bus.Publish(events.MusicSyncStatus, prov.InstanceID(), m.Running())
	defer func() {
		m.mu.Lock()
		delete(m.running, key)
		m.mu.Unlock()
		m.bus.Publish(events.MusicSyncStatus, prov.InstanceID(), m.Running())
	}()

	m.logger.Info("sync started", "provider", prov.InstanceID(), "media_type", mediaType)
	prevIDs, err := m.knownProviderIDs(prov.InstanceID(), mediaType)
	if err != nil {
		return err
	}
	curIDs := make(map[string]struct{})
	if err := m.walkLibrary(ctx, prov, mediaType, curIDs); err != nil {
		return fmt.Errorf("sync %s: %w", key, err)
	}
	// items the provider no longer reports lose their mapping; the row
	// itself goes once its last mapping is gone
	removed := 0
	for provItemID, libraryID := range prevIDs {
		if _, still := curIDs[provItemID]; still {
			continue
		}
		if err := m.removeMapping(ctx, mediaType, libraryID, prov.InstanceID()); err != nil {
			m.logger.Warn("stale mapping not removed", "item", provItemID, "error", err)
			continue
		}
		removed++
	}
	m.logger.Info("sync finished", "provider", prov.InstanceID(), "media_type", mediaType,
		"seen", len(curIDs), "removed", removed, "took", time.Since(task.Started).Round(time.Millisecond))
	return nil
}

// knownProviderIDs reads the mapping index for one (provider, type) pair:
// provider item id -> library row id.
func (m *Module) knownProviderIDs(instanceID string, mediaType media.MediaType) (map[string]int64, error) {
	var rows []database.ProviderMappingRow
	err := m.music.DB().
		Where("media_type = ? AND provider_instance = ?", string(mediaType), instanceID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.ProviderItemID] = row.ItemID
	}
	return out, nil
}

func (m *Module) walkLibrary(ctx context.Context, prov providers.MusicProvider, mediaType media.MediaType, seen map[string]struct{}) error {
	record := func(item media.LibraryItem) {
		for _, mapping := range item.Common().ProviderMappings {
			if mapping.ProviderInstance == prov.InstanceID() {
				seen[mapping.ItemID] = struct{}{}
			}
		}
	}
	switch mediaType {
	case media.MediaTypeArtist:
		return prov.LibraryArtists(ctx, func(item *media.Artist) error {
			record(item)
			_, err := m.music.Artists.Add(ctx, item, false)
			return err
		})
	case media.MediaTypeAlbum:
		return prov.LibraryAlbums(ctx, func(item *media.Album) error {
			record(item)
			_, err := m.music.Albums.Add(ctx, item, false)
			return err
		})
	case media.MediaTypeTrack:
		return prov.LibraryTracks(ctx, func(item *media.Track) error {
			record(item)
			_, err := m.music.Tracks.Add(ctx, item, false)
			return err
		})
	case media.MediaTypePlaylist:
		return prov.LibraryPlaylists(ctx, func(item *media.Playlist) error {
			record(item)
			_, err := m.music.Playlists.Add(ctx, item, false)
			return err
		})
	case media.MediaTypeRadio:
		return prov.LibraryRadios(ctx, func(item *media.Radio) error {
			record(item)
			_, err := m.music.Radios.Add(ctx, item, false)
			return err
		})
	case media.MediaTypeAudiobook:
		return prov.LibraryAudiobooks(ctx, func(item *media.Audiobook) error {
			record(item)
			_, err := m.music.Audiobooks.Add(ctx, item, false)
			return err
		})
	case media.MediaTypePodcast:
		return prov.LibraryPodcasts(ctx, func(item *media.Podcast) error {
			record(item)
			_, err := m.music.Podcasts.Add(ctx, item, false)
			return err
		})
	default:
		return fmt.Errorf("%w: unsyncable media type %s", media.ErrInvalidData, mediaType)
	}
}

func (m *Module) removeMapping(ctx context.Context, mediaType media.MediaType, libraryID int64, instanceID string) error {
	switch mediaType {
	case media.MediaTypeArtist:
		return m.music.Artists.RemoveProviderMappings(ctx, libraryID, instanceID)
	case media.MediaTypeAlbum:
		return m.music.Albums.RemoveProviderMappings(ctx, libraryID, instanceID)
	case media.MediaTypeTrack:
		return m.music.Tracks.RemoveProviderMappings(ctx, libraryID, instanceID)
	case media.MediaTypePlaylist:
		return m.music.Playlists.RemoveProviderMappings(ctx, libraryID, instanceID)
	case media.MediaTypeRadio:
		return m.music.Radios.RemoveProviderMappings(ctx, libraryID, instanceID)
	case media.MediaTypeAudiobook:
		return m.music.Audiobooks.RemoveProviderMappings(ctx, libraryID, instanceID)
	case media.MediaTypePodcast:
		return m.music.Podcasts.RemoveProviderMappings(ctx, libraryID, instanceID)
	default:
		return nil
	}
}
