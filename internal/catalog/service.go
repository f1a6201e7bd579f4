package catalog

import (
	"errors"
	"sort"

	apperrors "github.com/coinsora/server/pkg/errors"
)

// PlaceholderThumbnail is used for categories with no usable primary image.
const PlaceholderThumbnail = "https://via.placeholder.com/150"

// CategorySummary is the listing shape for one category.
type CategorySummary struct {
	Name      string `json:"name"`
	Count     int    `json:"count"`
	Thumbnail string `json:"thumbnail"`
}

// Service exposes derived, read-only catalog queries over the cache.
type Service struct {
	cache *Cache
}

// NewService constructs a catalog Service.
func NewService(cache *Cache) (*Service, error) {
	if cache == nil {
		return nil, errors.New("catalog service: cache is required")
	}
	return &Service{cache: cache}, nil
}

// CategoryList summarises every category with its item count and a thumbnail
// taken from the first item carrying a primary image.
func (s *Service) CategoryList() []CategorySummary {
	data := s.cache.Load()

	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make([]CategorySummary, 0, len(names))
	for _, name := range names {
		items := data[name]

		thumbnail := ""
		for _, item := range items {
			if item.Image != "" {
				thumbnail = item.Image
				break
			}
		}
		if thumbnail == "" {
			thumbnail = PlaceholderThumbnail
		}

		list = append(list, CategorySummary{
			Name:      name,
			Count:     len(items),
			Thumbnail: thumbnail,
		})
	}

	return list
}

// Categories returns the full category mapping.
func (s *Service) Categories() map[string][]Item {
	return s.cache.Load()
}

// Category returns all items for an exact category name. Unknown and empty
// categories are both reported as not found.
func (s *Service) Category(name string) ([]Item, error) {
	items := s.cache.Load()[name]
	if len(items) == 0 {
		return nil, apperrors.ErrCategoryNotFound
	}
	return items, nil
}

// Item scans every category for a matching entry id.
func (s *Service) Item(id string) (*Item, error) {
	for _, items := range s.cache.Load() {
		for i := range items {
			if items[i].ID == id {
				return &items[i], nil
			}
		}
	}
	return nil, apperrors.ErrItemNotFound
}
