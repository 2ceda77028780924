package musicmodule

import (
	"context"

	"github.com/marcelveldt/music-assistant/internal/media"
	"github.com/marcelveldt/music-assistant/internal/providers"
	"github.com/marcelveldt/music-assistant/internal/providers/filesystem"
)

// matchOtherProviders searches all other search-capable providers for the
// same logical item and merges hit mappings into the library row. The
// per-row suppression set keeps the resulting Update from re-triggering a
// match for the same row.
func (b *base[T]) matchOtherProviders(id int64) {
	b.matchMu.Lock()
	if _, busy := b.matching[id]; busy {
		b.matchMu.Unlock()
		return
	}
	b.matching[id] = struct{}{}
	b.matchMu.Unlock()
	defer func() {
		b.matchMu.Lock()
		delete(b.matching, id)
		b.matchMu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), matchTimeout)
	defer cancel()

	item, err := b.ops.load(b.module.db, id)
	if err != nil {
		return
	}
	common := item.Common()
	mapped := make(map[string]struct{}, len(common.ProviderMappings))
	for _, mapping := range common.ProviderMappings {
		mapped[mapping.ProviderInstance] = struct{}{}
	}
	query := common.Name
	if b.ops.searchQuery != nil {
		query = b.ops.searchQuery(item)
	}

	found := false
	for _, prov := range b.module.providers.WithFeature(providers.FeatureSearch) {
		if _, ok := mapped[prov.InstanceID()]; ok {
			continue
		}
		// local files never gain matches from a name search
		if prov.Domain() == filesystem.Domain {
			continue
		}
		results, err := b.module.providerSearch(ctx, prov, query, []media.MediaType{b.ops.mediaType}, 10)
		if err != nil {
			b.logger.Debug("match search failed", "provider", prov.InstanceID(), "error", err)
			continue
		}
		for _, candidate := range b.ops.searchPick(results) {
			if !b.ops.compare(item, candidate) {
				continue
			}
			common.MergeProviderMappings(candidate.Common().ProviderMappings)
			found = true
			break
		}
	}
	if !found {
		return
	}
	if _, err := b.Update(ctx, id, item, false); err != nil {
		b.logger.Warn("match result not stored", "id", id, "error", err)
	}
}
