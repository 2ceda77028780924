package musicmodule

import (
	"context"

	"gorm.io/gorm"

	"github.com/marcelveldt/music-assistant/internal/database"
	"github.com/marcelveldt/music-assistant/internal/media"
	"github.com/marcelveldt/music-assistant/internal/providers"
)

// AudiobooksController manages the canonical audiobooks table and their
// resume positions.
type AudiobooksController struct {
	*base[*media.Audiobook]
}

func newAudiobooksController(m *Module) *AudiobooksController {
	ops := storeOps[*media.Audiobook]{
		mediaType: media.MediaTypeAudiobook,
		load: func(db *gorm.DB, id int64) (*media.Audiobook, error) {
			return loadRow(db, id, media.MediaTypeAudiobook, (*database.AudiobookRow).ToItem)
		},
		insert: func(db *gorm.DB, item *media.Audiobook) (int64, error) {
			row := database.AudiobookToRow(item)
			row.ID = 0
			if err := db.Create(row).Error; err != nil {
				return 0, err
			}
			return row.ID, nil
		},
		update: func(db *gorm.DB, id int64, item *media.Audiobook) error {
			row := database.AudiobookToRow(item)
			row.ID = id
			return db.Save(row).Error
		},
		delete: deleteRowByID[database.AudiobookRow],
		list: func(db *gorm.DB, f ListFilter) ([]*media.Audiobook, int64, error) {
			return listRows(db, f, (*database.AudiobookRow).ToItem)
		},
		match:       matchAudiobookRow,
		mergeFields: mergeAudiobookFields,
		providerGet: func(ctx context.Context, prov providers.MusicProvider, itemID string) (*media.Audiobook, error) {
			return prov.GetAudiobook(ctx, itemID)
		},
	}
	return &AudiobooksController{newBase(m, ops)}
}

func matchAudiobookRow(db *gorm.DB, item *media.Audiobook) (int64, error) {
	var rows []database.AudiobookRow
	if err := db.Where("sort_name = ?", media.CreateSortName(item.Name)).Find(&rows).Error; err != nil {
		return 0, err
	}
	for i := range rows {
		candidate := rows[i].ToItem()
		if media.StrictCompareStrings(candidate.Name, item.Name) &&
			(len(item.Authors) == 0 || len(candidate.Authors) == 0 || authorsOverlap(candidate.Authors, item.Authors)) {
			return rows[i].ID, nil
		}
	}
	return 0, nil
}

func authorsOverlap(a, b []string) bool {
	for _, left := range a {
		for _, right := range b {
			if media.StrictCompareStrings(left, right) {
				return true
			}
		}
	}
	return false
}

func mergeAudiobookFields(existing, incoming *media.Audiobook, overwrite bool) {
	if incoming.Duration != 0 && (existing.Duration == 0 || overwrite) {
		existing.Duration = incoming.Duration
	}
	if len(incoming.Authors) > 0 && (len(existing.Authors) == 0 || overwrite) {
		existing.Authors = incoming.Authors
	}
	if len(incoming.Narrators) > 0 && (len(existing.Narrators) == 0 || overwrite) {
		existing.Narrators = incoming.Narrators
	}
	if len(incoming.Chapters) > 0 && (len(existing.Chapters) == 0 || overwrite) {
		existing.Chapters = incoming.Chapters
	}
	// progress always takes the latest report
	if incoming.ResumePositionMs != 0 {
		existing.ResumePositionMs = incoming.ResumePositionMs
	}
	if incoming.FullyPlayed {
		existing.FullyPlayed = true
	}
}

// UpdateProgress persists the resume position and forwards the report to
// the mapped providers.
func (c *AudiobooksController) UpdateProgress(ctx context.Context, id int64, positionMs int64, fullyPlayed bool) error {
	book, err := c.GetLibraryItem(ctx, id)
	if err != nil {
		return err
	}
	book.ResumePositionMs = positionMs
	book.FullyPlayed = fullyPlayed
	if fullyPlayed {
		book.ResumePositionMs = 0
	}
	if _, err := c.Update(ctx, id, book, true); err != nil {
		return err
	}
	for _, mapping := range book.ProviderMappings {
		prov := c.module.providers.Get(mapping.ProviderInstance)
		if prov == nil || !prov.IsAvailable() {
			continue
		}
		if err := prov.OnPlayed(ctx, media.MediaTypeAudiobook, mapping.ItemID, fullyPlayed, int(positionMs/1000)); err != nil {
			c.logger.Debug("progress report failed", "provider", mapping.ProviderInstance, "error", err)
		}
	}
	return nil
}
