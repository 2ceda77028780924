package musicmodule

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/marcelveldt/music-assistant/internal/media"
)

// orderClauses whitelists the sort orders a listing accepts.
var orderClauses = map[string]string{
	"name":                    "name",
	"name_desc":               "name DESC",
	"sort_name":               "sort_name",
	"sort_name_desc":          "sort_name DESC",
	"timestamp_added":         "timestamp_added",
	"timestamp_added_desc":    "timestamp_added DESC",
	"timestamp_modified":      "timestamp_modified",
	"timestamp_modified_desc": "timestamp_modified DESC",
	"random":                  "RANDOM()",
}

func orderClause(orderBy string) string {
	if clause, ok := orderClauses[orderBy]; ok {
		return clause
	}
	return "sort_name"
}

// loadRow reads one row by primary key and converts it.
func loadRow[R any, T any](db *gorm.DB, id int64, mediaType media.MediaType, toItem func(*R) T) (T, error) {
	var zero T
	var row R
	if err := db.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return zero, fmt.Errorf("%w: %s %d", media.ErrMediaNotFound, mediaType, id)
		}
		return zero, err
	}
	return toItem(&row), nil
}

// listRows applies the filter and converts each matching row.
func listRows[R any, T any](db *gorm.DB, f ListFilter, toItem func(*R) T) ([]T, int64, error) {
	q := db.Model(new(R))
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		q = q.Where("name LIKE ? OR sort_name LIKE ?", pattern, pattern)
	}
	if f.InLibraryOnly {
		q = q.Where("in_library = ?", true)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	q = q.Order(orderClause(f.OrderBy))
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	var rows []R
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	items := make([]T, 0, len(rows))
	for i := range rows {
		items = append(items, toItem(&rows[i]))
	}
	return items, total, nil
}

// deleteRowByID removes one row by primary key.
func deleteRowByID[R any](db *gorm.DB, id int64) error {
	return db.Delete(new(R), id).Error
}
