package storage

import (
	"github.com/velluxe/storefront-core/types"
	"github.com/velluxe/storefront-core/utils"
)

const maxRecentSearches = 10

// RecentSearches keeps the last few search terms, most recent first,
// deduplicated, capped at maxRecentSearches.
type RecentSearches struct {
	store types.KeyValue
}

func NewRecentSearches(store types.KeyValue) *RecentSearches {
	return &RecentSearches{store: store}
}

func (r *RecentSearches) List() ([]string, error) {
	data, ok, err := r.store.Get(types.KeyRecentSearches)
	if err != nil || !ok {
		return nil, err
	}

	var terms []string
	if err := utils.Unmarshal(data, &terms); err != nil {
		return nil, types.WrapError(err, "corrupt recent searches")
	}
	return terms, nil
}

func (r *RecentSearches) Record(term string) error {
	if term == "" {
		return nil
	}

	terms, err := r.List()
	if err != nil {
		return err
	}

	updated := make([]string, 0, len(terms)+1)
	updated = append(updated, term)
	for _, t := range terms {
		if t == term {
			continue
		}
		updated = append(updated, t)
	}
	if len(updated) > maxRecentSearches {
		updated = updated[:maxRecentSearches]
	}

	data, err := utils.Marshal(updated)
	if err != nil {
		return types.WrapError(err, "failed to encode recent searches")
	}
	return r.store.Set(types.KeyRecentSearches, data)
}

func (r *RecentSearches) Clear() error {
	return r.store.Delete(types.KeyRecentSearches)
}
