// Package streammodule resolves queue items to playable streams: it picks
// the best provider mapping, applies volume-normalization gain and serves
// the audio transport to players.
package streammodule

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/marcelveldt/music-assistant/internal/database"
	"github.com/marcelveldt/music-assistant/internal/events"
	"github.com/marcelveldt/music-assistant/internal/media"
	"github.com/marcelveldt/music-assistant/internal/modules/musicmodule"
	"github.com/marcelveldt/music-assistant/internal/modules/playermodule"
	"github.com/marcelveldt/music-assistant/internal/providers"
	"github.com/marcelveldt/music-assistant/internal/providers/filesystem"
)

// TargetLoudnessLUFS is the default normalization target; gain correction
// moves a track's measured loudness to this level.
const TargetLoudnessLUFS = -17.0

// FallbackGainDB is the default correction applied to tracks whose
// loudness has not been measured yet.
const FallbackGainDB = -12.0

// Config tunes volume normalization.
type Config struct {
	Normalization  bool
	TargetLoudness float64
	FallbackGain   float64
}

// Module is the stream coordinator.
type Module struct {
	logger  hclog.Logger
	bus     *events.Bus
	db      *gorm.DB
	music   *musicmodule.Module
	players *playermodule.Module

	// baseURL prefixes the stream urls handed to players.
	baseURL string

	normalization  bool
	targetLoudness float64
	fallbackGain   float64
}

// New creates the stream coordinator. baseURL is the externally reachable
// address of this server, e.g. "http://192.168.1.2:8095". Zero target and
// fallback gains select the defaults.
func New(logger hclog.Logger, bus *events.Bus, db *gorm.DB, music *musicmodule.Module, players *playermodule.Module, baseURL string, cfg Config) *Module {
	if cfg.TargetLoudness == 0 {
		cfg.TargetLoudness = TargetLoudnessLUFS
	}
	if cfg.FallbackGain == 0 {
		cfg.FallbackGain = FallbackGainDB
	}
	return &Module{
		logger:         logger.Named("streams"),
		bus:            bus,
		db:             db,
		music:          music,
		players:        players,
		baseURL:        baseURL,
		normalization:  cfg.Normalization,
		targetLoudness: cfg.TargetLoudness,
		fallbackGain:   cfg.FallbackGain,
	}
}

func (m *Module) ID() string                { return "streams" }
func (m *Module) Name() string              { return "Stream Coordinator" }
func (m *Module) Core() bool                { return true }
func (m *Module) Migrate(db *gorm.DB) error { return db.AutoMigrate(&database.TrackLoudness{}) }

// Init installs the stream url builder into the player module.
func (m *Module) Init() error {
	m.players.SetStreamURLBuilder(func(playerID, queueItemID string) string {
		return fmt.Sprintf("%s/stream/%s/%s", m.baseURL, playerID, queueItemID)
	})
	return nil
}

// ResolveStreamDetails selects the provider mapping to stream a queue item
// from and fills in the normalization gain. Candidates are tried in
// preference order; the first successful StreamDetails wins.
func (m *Module) ResolveStreamDetails(ctx context.Context, playerID string, item *media.QueueItem) (*media.StreamDetails, error) {
	var mappings []media.ProviderMapping
	var mediaType media.MediaType
	var fallbackDuration int
	switch {
	case item.MediaItem != nil:
		mappings = item.MediaItem.ProviderMappings
		mediaType = media.MediaTypeTrack
		fallbackDuration = item.MediaItem.Duration
	case item.Radio != nil:
		mappings = item.Radio.ProviderMappings
		mediaType = media.MediaTypeRadio
		fallbackDuration = media.RadioDuration
	default:
		return nil, &media.StreamError{
			QueueItemID: item.QueueItemID,
			Reason:      fmt.Errorf("%w: queue item carries no media", media.ErrInvalidData),
		}
	}

	for _, mapping := range m.rankMappings(mappings) {
		prov := m.music.Providers().Get(mapping.ProviderInstance)
		if prov == nil || !prov.IsAvailable() {
			continue
		}
		details, err := m.fetchStreamDetails(ctx, prov, mapping.ItemID, mediaType)
		if err != nil {
			m.logger.Debug("stream details failed, trying next mapping",
				"provider", mapping.ProviderInstance, "item", mapping.ItemID, "error", err)
			continue
		}
		if details.Duration == 0 {
			details.Duration = fallbackDuration
		}
		details.QueueID = playerID
		m.applyGain(details)
		return details, nil
	}
	return nil, &media.StreamError{
		QueueItemID: item.QueueItemID,
		Reason:      fmt.Errorf("%w: no provider could stream this item", media.ErrProviderUnavailable),
	}
}

func (m *Module) fetchStreamDetails(ctx context.Context, prov providers.MusicProvider, itemID string, mediaType media.MediaType) (*media.StreamDetails, error) {
	var details *media.StreamDetails
	err := providers.WithRetry(ctx, m.logger, func(ctx context.Context) error {
		if err := m.music.Providers().Throttle(ctx, prov.InstanceID()); err != nil {
			return err
		}
		var err error
		details, err = prov.StreamDetails(ctx, itemID, mediaType)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !details.Expires.IsZero() && time.Now().After(details.Expires) {
		return nil, fmt.Errorf("stream details expired on arrival")
	}
	return details, nil
}

// rankMappings orders candidates: available first, local files before
// anything remote, then quality descending, provider instance id as the
// stable tiebreak.
func (m *Module) rankMappings(mappings []media.ProviderMapping) []media.ProviderMapping {
	ranked := make([]media.ProviderMapping, 0, len(mappings))
	for _, mapping := range mappings {
		if mapping.Available {
			ranked = append(ranked, mapping)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		li := ranked[i].ProviderDomain == filesystem.Domain
		lj := ranked[j].ProviderDomain == filesystem.Domain
		if li != lj {
			return li
		}
		qi, qj := ranked[i].Quality(), ranked[j].Quality()
		if qi != qj {
			return qi > qj
		}
		return ranked[i].ProviderInstance < ranked[j].ProviderInstance
	})
	return ranked
}

// applyGain fills the normalization gain from the measured loudness store.
// Unmeasured tracks get the fixed fallback correction.
func (m *Module) applyGain(details *media.StreamDetails) {
	if !m.normalization {
		return
	}
	var row database.TrackLoudness
	err := m.db.Where("provider = ? AND item_id = ?", details.Provider, details.ItemID).First(&row).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			m.logger.Warn("loudness lookup failed", "error", err)
		}
		details.GainCorrect = m.fallbackGain
		return
	}
	details.Loudness = row.LoudnessLUFS
	details.LoudnessKnown = true
	details.GainCorrect = round2(m.targetLoudness - row.LoudnessLUFS)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// StoreLoudness writes a measured integrated loudness back for future
// gain calculation.
func (m *Module) StoreLoudness(provider, itemID string, loudnessLUFS float64) error {
	row := database.TrackLoudness{Provider: provider, ItemID: itemID, LoudnessLUFS: loudnessLUFS}
	var existing database.TrackLoudness
	err := m.db.Where("provider = ? AND item_id = ?", provider, itemID).First(&existing).Error
	if err == nil {
		existing.LoudnessLUFS = loudnessLUFS
		return m.db.Save(&existing).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return m.db.Create(&row).Error
}

// prefetchNext resolves the stream details of the upcoming queue item so a
// gapless or crossfaded transition does not wait on the provider.
func (m *Module) prefetchNext(playerID string) {
	queue, err := m.players.Manager().Queue(playerID)
	if err != nil {
		return
	}
	next := queue.NextItem()
	if next == nil || next.StreamDetails != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), providers.DefaultCallTimeout)
	defer cancel()
	details, err := m.ResolveStreamDetails(ctx, playerID, next)
	if err != nil {
		m.logger.Debug("prefetch failed", "queue_item", next.QueueItemID, "error", err)
		return
	}
	queue.SetItemStreamDetails(next.QueueItemID, details)
}
