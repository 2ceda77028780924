package musicmodule

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/marcelveldt/music-assistant/internal/database"
	"github.com/marcelveldt/music-assistant/internal/media"
	"github.com/marcelveldt/music-assistant/internal/providers"
)

// PodcastsController manages the canonical podcasts table. Episodes are
// listed on demand from the provider and never stored as rows.
type PodcastsController struct {
	*base[*media.Podcast]
}

func newPodcastsController(m *Module) *PodcastsController {
	ops := storeOps[*media.Podcast]{
		mediaType: media.MediaTypePodcast,
		load: func(db *gorm.DB, id int64) (*media.Podcast, error) {
			return loadRow(db, id, media.MediaTypePodcast, (*database.PodcastRow).ToItem)
		},
		insert: func(db *gorm.DB, item *media.Podcast) (int64, error) {
			row := database.PodcastToRow(item)
			row.ID = 0
			if err := db.Create(row).Error; err != nil {
				return 0, err
			}
			return row.ID, nil
		},
		update: func(db *gorm.DB, id int64, item *media.Podcast) error {
			row := database.PodcastToRow(item)
			row.ID = id
			return db.Save(row).Error
		},
		delete: deleteRowByID[database.PodcastRow],
		list: func(db *gorm.DB, f ListFilter) ([]*media.Podcast, int64, error) {
			return listRows(db, f, (*database.PodcastRow).ToItem)
		},
		match:       matchPodcastRow,
		mergeFields: mergePodcastFields,
		providerGet: func(ctx context.Context, prov providers.MusicProvider, itemID string) (*media.Podcast, error) {
			return prov.GetPodcast(ctx, itemID)
		},
	}
	return &PodcastsController{newBase(m, ops)}
}

func matchPodcastRow(db *gorm.DB, item *media.Podcast) (int64, error) {
	var rows []database.PodcastRow
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

func mergePodcastFields(existing, incoming *media.Podcast, overwrite bool) {
	if incoming.Publisher != "" && (existing.Publisher == "" || overwrite) {
		existing.Publisher = incoming.Publisher
	}
	if incoming.TotalEpisodes != 0 {
		existing.TotalEpisodes = incoming.TotalEpisodes
	}
}

// Episodes lists the podcast's episodes live from the first available
// mapping.
func (c *PodcastsController) Episodes(ctx context.Context, itemID, provID string) ([]*media.Episode, error) {
	podcast, err := c.Get(ctx, itemID, provID, false, false)
	if err != nil {
		return nil, err
	}
	for _, mapping := range podcast.ProviderMappings {
		if !mapping.Available {
			continue
		}
		prov := c.module.providers.Get(mapping.ProviderInstance)
		if prov == nil || !prov.IsAvailable() {
			continue
		}
		episodes, err := prov.PodcastEpisodes(ctx, mapping.ItemID)
		if err != nil {
			c.logger.Debug("episode listing failed", "provider", mapping.ProviderInstance, "error", err)
			continue
		}
		return episodes, nil
	}
	return nil, fmt.Errorf("%w: podcast %s has no available provider", media.ErrProviderUnavailable, podcast.URI)
}

// Episode resolves one episode by provider-scoped id.
func (c *PodcastsController) Episode(ctx context.Context, itemID, provID string) (*media.Episode, error) {
	prov := c.module.providers.Get(provID)
	if prov == nil {
		return nil, fmt.Errorf("%w: unknown provider %s", media.ErrProviderUnavailable, provID)
	}
	var episode *media.Episode
	err := providers.WithRetry(ctx, c.logger, func(ctx context.Context) error {
		if err := c.module.providers.Throttle(ctx, prov.InstanceID()); err != nil {
			return err
		}
		var err error
		episode, err = prov.GetEpisode(ctx, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return episode, nil
}
