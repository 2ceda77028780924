package musicmodule

import (
	"context"

	"gorm.io/gorm"

	"github.com/marcelveldt/music-assistant/internal/database"
	"github.com/marcelveldt/music-assistant/internal/media"
	"github.com/marcelveldt/music-assistant/internal/providers"
)

// RadiosController manages the canonical radio stations table.
type RadiosController struct {
	*base[*media.Radio]
}

func newRadiosController(m *Module) *RadiosController {
	ops := storeOps[*media.Radio]{
		mediaType: media.MediaTypeRadio,
		load: func(db *gorm.DB, id int64) (*media.Radio, error) {
			return loadRow(db, id, media.MediaTypeRadio, (*database.RadioRow).ToItem)
		},
		insert: func(db *gorm.DB, item *media.Radio) (int64, error) {
			row := database.RadioToRow(item)
			row.ID = 0
			if err := db.Create(row).Error; err != nil {
				return 0, err
			}
			return row.ID, nil
		},
		update: func(db *gorm.DB, id int64, item *media.Radio) error {
			row := database.RadioToRow(item)
			row.ID = id
			return db.Save(row).Error
		},
		delete: deleteRowByID[database.RadioRow],
		list: func(db *gorm.DB, f ListFilter) ([]*media.Radio, int64, error) {
			return listRows(db, f, (*database.RadioRow).ToItem)
		},
		match: matchRadioRow,
		providerGet: func(ctx context.Context, prov providers.MusicProvider, itemID string) (*media.Radio, error) {
			return prov.GetRadio(ctx, itemID)
		},
	}
	return &RadiosController{newBase(m, ops)}
}

func matchRadioRow(db *gorm.DB, item *media.Radio) (int64, error) {
	var rows []database.RadioRow
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
