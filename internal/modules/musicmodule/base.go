package musicmodule

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/marcelveldt/music-assistant/internal/database"
	"github.com/marcelveldt/music-assistant/internal/events"
	"github.com/marcelveldt/music-assistant/internal/media"
	"github.com/marcelveldt/music-assistant/internal/providers"
)

// RefreshInterval is how long full item metadata stays fresh before a
// provider refetch is attempted on access.
const RefreshInterval = 30 * 24 * time.Hour

// matchTimeout bounds the background cross-provider match after an add.
const matchTimeout = 2 * time.Minute

// ListFilter narrows a library listing.
type ListFilter struct {
	Search        string
	Limit         int
	Offset        int
	OrderBy       string
	InLibraryOnly bool
}

// storeOps binds one entity type to its table and provider operations.
// Optional fields may be nil; matching is skipped for entities without a
// compare function.
type storeOps[T media.LibraryItem] struct {
	mediaType media.MediaType

	load    func(db *gorm.DB, id int64) (T, error)
	insert  func(db *gorm.DB, item T) (int64, error)
	update  func(db *gorm.DB, id int64, item T) error
	delete  func(db *gorm.DB, id int64) error
	list    func(db *gorm.DB, f ListFilter) ([]T, int64, error)
	// match finds an existing library row for an unmapped incoming item
	// by entity-specific identity (external ids, then name matching).
	match func(db *gorm.DB, item T) (int64, error)
	// mergeFields merges entity-specific fields of incoming into existing.
	mergeFields func(existing, incoming T, overwrite bool)

	providerGet func(ctx context.Context, prov providers.MusicProvider, itemID string) (T, error)
	// compare, searchQuery and searchPick drive cross-provider matching.
	compare     func(a, b T) bool
	searchQuery func(item T) string
	searchPick  func(results *media.SearchResults) []T
}

// base implements the controller operations shared by all entity types.
// Adds are serialized under addLock so concurrent adds of the same logical
// item collapse into one row.
type base[T media.LibraryItem] struct {
	module *Module
	logger hclog.Logger
	ops    storeOps[T]

	addLock sync.Mutex

	// matching suppresses re-entrant cross-provider matching per row.
	matchMu  sync.Mutex
	matching map[int64]struct{}
}

func newBase[T media.LibraryItem](module *Module, ops storeOps[T]) *base[T] {
	return &base[T]{
		module:   module,
		logger:   module.logger.Named(string(ops.mediaType) + "s"),
		ops:      ops,
		matching: make(map[int64]struct{}),
	}
}

// MediaType returns the entity type this controller manages.
func (b *base[T]) MediaType() media.MediaType { return b.ops.mediaType }

// Get resolves an item by provider-scoped id. Library ids (provider
// "database" or empty) resolve directly; provider ids first consult the
// mapping index and fall back to a live provider fetch. With lazy the
// provider item is returned immediately and added to the library in the
// background; otherwise the canonical library item is returned.
func (b *base[T]) Get(ctx context.Context, itemID, provID string, lazy, forceRefresh bool) (T, error) {
	var zero T
	if provID == "" || provID == media.ProviderDatabase || provID == "library" {
		id, err := strconv.ParseInt(itemID, 10, 64)
		if err != nil {
			return zero, fmt.Errorf("%w: invalid library item id %q", media.ErrInvalidData, itemID)
		}
		item, err := b.GetLibraryItem(ctx, id)
		if err != nil {
			return zero, err
		}
		return b.maybeRefresh(ctx, id, item, forceRefresh), nil
	}

	if libItem, libID, ok := b.libraryItemByProvID(provID, itemID); ok {
		return b.maybeRefresh(ctx, libID, libItem, forceRefresh), nil
	}

	provItem, err := b.providerItem(ctx, provID, itemID)
	if err != nil {
		return zero, err
	}
	if lazy {
		go b.lazyAdd(provItem)
		return provItem, nil
	}
	return b.Add(ctx, provItem, false)
}

// GetLibraryItem loads one canonical row.
func (b *base[T]) GetLibraryItem(ctx context.Context, id int64) (T, error) {
	return b.ops.load(b.module.db, id)
}

// GetLibraryItemByProvID resolves a provider-scoped id through the mapping
// index.
func (b *base[T]) GetLibraryItemByProvID(ctx context.Context, provID, itemID string) (T, error) {
	var zero T
	item, _, ok := b.libraryItemByProvID(provID, itemID)
	if !ok {
		return zero, fmt.Errorf("%w: %s/%s", media.ErrMediaNotFound, provID, itemID)
	}
	return item, nil
}

func (b *base[T]) libraryItemByProvID(provID, itemID string) (T, int64, bool) {
	var zero T
	var row database.ProviderMappingRow
	err := b.module.db.
		Where("media_type = ? AND (provider_instance = ? OR provider_domain = ?) AND provider_item_id = ?",
			string(b.ops.mediaType), provID, provID, itemID).
		First(&row).Error
	if err != nil {
		return zero, 0, false
	}
	item, err := b.ops.load(b.module.db, row.ItemID)
	if err != nil {
		return zero, 0, false
	}
	return item, row.ItemID, true
}

// Library returns a page of the canonical table.
func (b *base[T]) Library(ctx context.Context, f ListFilter) (*media.PagedItems[T], error) {
	items, total, err := b.ops.list(b.module.db, f)
	if err != nil {
		return nil, fmt.Errorf("list %ss: %w", b.ops.mediaType, err)
	}
	return &media.PagedItems[T]{
		Items:  items,
		Count:  len(items),
		Limit:  f.Limit,
		Offset: f.Offset,
		Total:  total,
	}, nil
}

// Add inserts the item into the library, or merges it into the existing
// row when one matches by provider mapping or entity identity. The
// canonical stored item is returned.
func (b *base[T]) Add(ctx context.Context, item T, overwrite bool) (T, error) {
	var zero T
	common := item.Common()
	if common.Name == "" {
		return zero, fmt.Errorf("%w: item without name", media.ErrInvalidData)
	}
	common.EnsureDerived()

	b.addLock.Lock()
	defer b.addLock.Unlock()

	existingID := b.findByMappings(common.ProviderMappings)
	if existingID == 0 && b.ops.match != nil {
		var err error
		existingID, err = b.ops.match(b.module.db, item)
		if err != nil {
			return zero, err
		}
	}
	if existingID != 0 {
		return b.applyUpdate(ctx, existingID, item, overwrite)
	}

	now := database.NowUnix()
	common.InLibrary = true
	common.TimestampAdded = now
	common.TimestampModified = now
	if common.Metadata.LastRefresh == 0 {
		common.Metadata.LastRefresh = now
	}
	id, err := b.ops.insert(b.module.db, item)
	if err != nil {
		return zero, fmt.Errorf("insert %s: %w", b.ops.mediaType, err)
	}
	if err := b.rewriteMappingIndex(id, common.ProviderMappings); err != nil {
		return zero, err
	}
	stored, err := b.ops.load(b.module.db, id)
	if err != nil {
		return zero, err
	}
	b.module.bus.Publish(events.MediaItemAdded, stored.Common().URI, stored)
	if b.ops.compare != nil {
		go b.matchOtherProviders(id)
	}
	return stored, nil
}

// Update merges the incoming item into the library row.
func (b *base[T]) Update(ctx context.Context, id int64, item T, overwrite bool) (T, error) {
	b.addLock.Lock()
	defer b.addLock.Unlock()
	return b.applyUpdate(ctx, id, item, overwrite)
}

// applyUpdate merges and persists; callers hold addLock.
func (b *base[T]) applyUpdate(ctx context.Context, id int64, incoming T, overwrite bool) (T, error) {
	var zero T
	existing, err := b.ops.load(b.module.db, id)
	if err != nil {
		return zero, err
	}
	cur, inc := existing.Common(), incoming.Common()
	if inc.Name != "" && (overwrite || cur.Name == "") {
		cur.Name = inc.Name
		cur.SortName = ""
	}
	if overwrite && inc.SortName != "" {
		cur.SortName = inc.SortName
	}
	cur.EnsureDerived()
	cur.Metadata.Update(inc.Metadata, overwrite)
	if overwrite && len(inc.ProviderMappings) > 0 {
		cur.ProviderMappings = inc.ProviderMappings
	} else {
		cur.MergeProviderMappings(inc.ProviderMappings)
	}
	if b.ops.mergeFields != nil {
		b.ops.mergeFields(existing, incoming, overwrite)
	}
	cur.TimestampModified = database.NowUnix()
	if err := b.ops.update(b.module.db, id, existing); err != nil {
		return zero, fmt.Errorf("update %s %d: %w", b.ops.mediaType, id, err)
	}
	if err := b.rewriteMappingIndex(id, cur.ProviderMappings); err != nil {
		return zero, err
	}
	stored, err := b.ops.load(b.module.db, id)
	if err != nil {
		return zero, err
	}
	b.module.bus.Publish(events.MediaItemUpdated, stored.Common().URI, stored)
	return stored, nil
}

// Delete removes the library row and its mapping index entries.
func (b *base[T]) Delete(ctx context.Context, id int64) error {
	item, err := b.ops.load(b.module.db, id)
	if err != nil {
		if errors.Is(err, media.ErrMediaNotFound) {
			return nil
		}
		return err
	}
	if err := b.ops.delete(b.module.db, id); err != nil {
		return fmt.Errorf("delete %s %d: %w", b.ops.mediaType, id, err)
	}
	if err := b.deleteMappingIndex(id); err != nil {
		return err
	}
	b.module.bus.Publish(events.MediaItemDeleted, item.Common().URI, item)
	return nil
}

// RemoveProviderMappings strips every mapping of the given provider
// instance from the row; the row itself is deleted once its last mapping
// is gone.
func (b *base[T]) RemoveProviderMappings(ctx context.Context, id int64, providerInstance string) error {
	b.addLock.Lock()
	item, err := b.ops.load(b.module.db, id)
	if err != nil {
		b.addLock.Unlock()
		if errors.Is(err, media.ErrMediaNotFound) {
			return nil
		}
		return err
	}
	common := item.Common()
	kept := common.ProviderMappings[:0]
	for _, mapping := range common.ProviderMappings {
		if mapping.ProviderInstance != providerInstance {
			kept = append(kept, mapping)
		}
	}
	if len(kept) == 0 {
		b.addLock.Unlock()
		return b.Delete(ctx, id)
	}
	common.ProviderMappings = kept
	common.TimestampModified = database.NowUnix()
	if err := b.ops.update(b.module.db, id, item); err != nil {
		b.addLock.Unlock()
		return err
	}
	err = b.rewriteMappingIndex(id, kept)
	b.addLock.Unlock()
	if err != nil {
		return err
	}
	b.module.bus.Publish(events.MediaItemUpdated, common.URI, item)
	return nil
}

// AddToLibrary marks the item as in-library and propagates the edit to
// mapped providers that support it.
func (b *base[T]) AddToLibrary(ctx context.Context, itemID, provID string) (T, error) {
	var zero T
	item, err := b.Get(ctx, itemID, provID, false, false)
	if err != nil {
		return zero, err
	}
	common := item.Common()
	if !common.InLibrary {
		common.InLibrary = true
		id, _ := strconv.ParseInt(common.ItemID, 10, 64)
		if item, err = b.Update(ctx, id, item, false); err != nil {
			return zero, err
		}
	}
	b.propagateLibraryEdit(ctx, item, true)
	return item, nil
}

// RemoveFromLibrary clears the in-library flag and propagates the edit.
func (b *base[T]) RemoveFromLibrary(ctx context.Context, id int64) error {
	item, err := b.GetLibraryItem(ctx, id)
	if err != nil {
		return err
	}
	common := item.Common()
	if common.InLibrary {
		common.InLibrary = false
		common.TimestampModified = database.NowUnix()
		if err := b.ops.update(b.module.db, id, item); err != nil {
			return err
		}
		b.module.bus.Publish(events.MediaItemUpdated, common.URI, item)
	}
	b.propagateLibraryEdit(ctx, item, false)
	return nil
}

func (b *base[T]) propagateLibraryEdit(ctx context.Context, item T, add bool) {
	feature, ok := providers.LibraryEditFeature(b.ops.mediaType)
	if !ok {
		return
	}
	for _, mapping := range item.Common().ProviderMappings {
		prov := b.module.providers.Get(mapping.ProviderInstance)
		if prov == nil || !prov.IsAvailable() || !providers.HasFeature(prov, feature) {
			continue
		}
		var err error
		if add {
			_, err = prov.LibraryAdd(ctx, mapping.ItemID, b.ops.mediaType)
		} else {
			_, err = prov.LibraryRemove(ctx, mapping.ItemID, b.ops.mediaType)
		}
		if err != nil && !errors.Is(err, media.ErrUnsupported) {
			b.logger.Warn("library edit not propagated", "provider", mapping.ProviderInstance, "error", err)
		}
	}
}

// maybeRefresh refetches stale metadata from a mapped provider. Refresh
// failures fall back to the stored item.
func (b *base[T]) maybeRefresh(ctx context.Context, id int64, item T, force bool) T {
	common := item.Common()
	if !force && time.Since(common.LastRefresh()) < RefreshInterval {
		return item
	}
	for _, mapping := range common.ProviderMappings {
		if !mapping.Available {
			continue
		}
		prov := b.module.providers.Get(mapping.ProviderInstance)
		if prov == nil || !prov.IsAvailable() {
			continue
		}
		fresh, err := b.providerItem(ctx, mapping.ProviderInstance, mapping.ItemID)
		if err != nil {
			b.logger.Debug("metadata refresh failed", "provider", mapping.ProviderInstance, "error", err)
			continue
		}
		fresh.Common().Metadata.LastRefresh = database.NowUnix()
		updated, err := b.Update(ctx, id, fresh, force)
		if err != nil {
			b.logger.Warn("metadata refresh not stored", "id", id, "error", err)
			return item
		}
		return updated
	}
	return item
}

// providerItem fetches one item live from a provider under the throttle
// and retry policy.
func (b *base[T]) providerItem(ctx context.Context, provID, itemID string) (T, error) {
	var zero T
	prov := b.module.providers.Get(provID)
	if prov == nil {
		return zero, fmt.Errorf("%w: unknown provider %s", media.ErrProviderUnavailable, provID)
	}
	var out T
	err := providers.WithRetry(ctx, b.logger, func(ctx context.Context) error {
		if err := b.module.providers.Throttle(ctx, prov.InstanceID()); err != nil {
			return err
		}
		item, err := b.ops.providerGet(ctx, prov, itemID)
		if err != nil {
			return err
		}
		out = item
		return nil
	})
	if err != nil {
		return zero, err
	}
	return out, nil
}

func (b *base[T]) lazyAdd(item T) {
	ctx, cancel := context.WithTimeout(context.Background(), providers.DefaultCallTimeout)
	defer cancel()
	if _, err := b.Add(ctx, item, false); err != nil {
		b.logger.Warn("lazy library add failed", "uri", item.Common().URI, "error", err)
	}
}

// findByMappings resolves any of the mappings through the index table.
func (b *base[T]) findByMappings(mappings []media.ProviderMapping) int64 {
	for _, mapping := range mappings {
		var row database.ProviderMappingRow
		err := b.module.db.
			Where("media_type = ? AND provider_instance = ? AND provider_item_id = ?",
				string(b.ops.mediaType), mapping.ProviderInstance, mapping.ItemID).
			First(&row).Error
		if err == nil {
			return row.ItemID
		}
	}
	return 0
}

// rewriteMappingIndex replaces the index rows for one library item with an
// exact image of its current mapping set.
func (b *base[T]) rewriteMappingIndex(id int64, mappings []media.ProviderMapping) error {
	if err := b.deleteMappingIndex(id); err != nil {
		return err
	}
	for _, mapping := range mappings {
		row := database.ProviderMappingRow{
			MediaType:        string(b.ops.mediaType),
			ItemID:           id,
			ProviderDomain:   mapping.ProviderDomain,
			ProviderInstance: mapping.ProviderInstance,
			ProviderItemID:   mapping.ItemID,
		}
		if err := b.module.db.Create(&row).Error; err != nil {
			return fmt.Errorf("index mapping %s/%s: %w", mapping.ProviderInstance, mapping.ItemID, err)
		}
	}
	return nil
}

func (b *base[T]) deleteMappingIndex(id int64) error {
	err := b.module.db.
		Where("media_type = ? AND item_id = ?", string(b.ops.mediaType), id).
		Delete(&database.ProviderMappingRow{}).Error
	if err != nil {
		return fmt.Errorf("clear mapping index for %s %d: %w", b.ops.mediaType, id, err)
	}
	return nil
}
