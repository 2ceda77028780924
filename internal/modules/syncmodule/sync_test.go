package syncmodule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelveldt/music-assistant/internal/cache"
	"github.com/marcelveldt/music-assistant/internal/database"
	"github.com/marcelveldt/music-assistant/internal/events"
	"github.com/marcelveldt/music-assistant/internal/media"
	"github.com/marcelveldt/music-assistant/internal/modules/musicmodule"
	"github.com/marcelveldt/music-assistant/internal/providers"
)

type libraryProvider struct {
	providers.Unsupported
	instance string

	mu     sync.Mutex
	tracks []*media.Track

	// when set, LibraryTracks blocks until the channel closes
	gate chan struct{}
}

func (p *libraryProvider) InstanceID() string          { return p.instance }
func (p *libraryProvider) Domain() string              { return "fake" }
func (p *libraryProvider) Name() string                { return "Fake " + p.instance }
func (p *libraryProvider) IsAvailable() bool           { return true }
func (p *libraryProvider) Start(context.Context) error { return nil }
func (p *libraryProvider) Stop(context.Context) error  { return nil }

func (p *libraryProvider) SupportedFeatures() []providers.Feature {
	return []providers.Feature{providers.FeatureLibraryTracks}
}

func (p *libraryProvider) LibraryTracks(ctx context.Context, yield func(*media.Track) error) error {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	tracks := append([]*media.Track(nil), p.tracks...)
	p.mu.Unlock()
	for _, track := range tracks {
		clone := *track
		if err := yield(&clone); err != nil {
			return err
		}
	}
	return nil
}

func (p *libraryProvider) setTracks(tracks ...*media.Track) {
	p.mu.Lock()
	p.tracks = tracks
	p.mu.Unlock()
}

func syncTrack(name, artist, instance, itemID string) *media.Track {
	track := &media.Track{
		MediaItem: media.MediaItem{
			ItemID:    itemID,
			Provider:  instance,
			Name:      name,
			MediaType: media.MediaTypeTrack,
			ProviderMappings: []media.ProviderMapping{{
				ItemID:           itemID,
				ProviderDomain:   "fake",
				ProviderInstance: instance,
				Available:        true,
				AudioFormat:      media.AudioFormat{ContentType: media.ContentTypeFLAC, SampleRate: 44100, BitDepth: 16},
			}},
		},
		Duration: 240,
		Artists:  []media.ItemMapping{{MediaType: media.MediaTypeArtist, Name: artist}},
	}
	track.EnsureDerived()
	return track
}

func newTestSyncModule(t *testing.T) (*Module, *musicmodule.Module) {
	t.Helper()
	db, err := database.ConnectTest()
	require.NoError(t, err)
	logger := hclog.NewNullLogger()
	bus := events.NewBus(logger, 16)
	music := musicmodule.New(db, logger, bus, cache.New(logger, 128), providers.NewRegistry(logger))
	require.NoError(t, music.Migrate(db))
	return New(logger, bus, music, music.Providers(), time.Hour), music
}

func mappingCount(t *testing.T, music *musicmodule.Module, instance string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, music.DB().Model(&database.ProviderMappingRow{}).
		Where("provider_instance = ?", instance).Count(&count).Error)
	return count
}

func TestSyncProviderAddsLibraryItems(t *testing.T) {
	m, music := newTestSyncModule(t)
	ctx := context.Background()

	prov := &libraryProvider{instance: "fake--sync1"}
	prov.setTracks(
		syncTrack("Harvest Moon", "Sync Artist One", prov.instance, "s1"),
		syncTrack("Heart of Gold", "Sync Artist Two", prov.instance, "s2"),
	)
	require.NoError(t, music.Providers().Register(ctx, prov))

	require.NoError(t, m.SyncProvider(ctx, prov, media.MediaTypeTrack))
	assert.EqualValues(t, 2, mappingCount(t, music, prov.instance))

	// a second pass over the same library adds nothing
	require.NoError(t, m.SyncProvider(ctx, prov, media.MediaTypeTrack))
	assert.EqualValues(t, 2, mappingCount(t, music, prov.instance))
}

func TestSyncRemovesStaleMappings(t *testing.T) {
	m, music := newTestSyncModule(t)
	ctx := context.Background()

	prov := &libraryProvider{instance: "fake--sync2"}
	keep := syncTrack("Powderfinger", "Sync Artist Three", prov.instance, "keep")
	gone := syncTrack("Thrasher", "Sync Artist Four", prov.instance, "gone")
	prov.setTracks(keep, gone)
	require.NoError(t, music.Providers().Register(ctx, prov))

	require.NoError(t, m.SyncProvider(ctx, prov, media.MediaTypeTrack))
	require.EqualValues(t, 2, mappingCount(t, music, prov.instance))

	// the provider dropped one track; its mapping and row go with it
	prov.setTracks(keep)
	require.NoError(t, m.SyncProvider(ctx, prov, media.MediaTypeTrack))
	assert.EqualValues(t, 1, mappingCount(t, music, prov.instance))

	var rows int64
	require.NoError(t, music.DB().Model(&database.TrackRow{}).
		Where("name = ?", "Thrasher").Count(&rows).Error)
	assert.Zero(t, rows)
}

func TestSyncPairRunsOnlyOnce(t *testing.T) {
	m, music := newTestSyncModule(t)
	ctx := context.Background()

	prov := &libraryProvider{instance: "fake--sync3", gate: make(chan struct{})}
	require.NoError(t, music.Providers().Register(ctx, prov))

	done := make(chan error, 1)
	go func() { done <- m.SyncProvider(ctx, prov, media.MediaTypeTrack) }()
	require.Eventually(t, func() bool { return len(m.Running()) == 1 }, 2*time.Second, 10*time.Millisecond)

	err := m.SyncProvider(ctx, prov, media.MediaTypeTrack)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	close(prov.gate)
	require.NoError(t, <-done)
	assert.Empty(t, m.Running())
}

func TestSyncInstanceUnknownProvider(t *testing.T) {
	m, _ := newTestSyncModule(t)
	err := m.SyncInstance(context.Background(), "missing--1", nil)
	assert.ErrorIs(t, err, media.ErrProviderUnavailable)
}
