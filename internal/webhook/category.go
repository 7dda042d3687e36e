package webhook

import (
	"strings"

	"github.com/wolfdaybr/validapass/internal/domain"
)

// CategoryMapper assigns a ticket category to a resolved sale. Explicit
// offer-id mappings from config win; otherwise keyword matching over the
// offer and product names decides, falling back to the default category.
type CategoryMapper struct {
	offerIDs        map[string]domain.Category
	defaultCategory domain.Category
}

// NewCategoryMapper builds a mapper from the configured offer-id table.
// Entries with an invalid category value are dropped.
func NewCategoryMapper(offerIDs map[string]string, defaultCategory string) *CategoryMapper {
	m := &CategoryMapper{
		offerIDs:        make(map[string]domain.Category, len(offerIDs)),
		defaultCategory: domain.CategoryCamarote,
	}
	if c := domain.Category(defaultCategory); c.Valid() {
		m.defaultCategory = c
	}
	for id, cat := range offerIDs {
		if c := domain.Category(cat); c.Valid() {
			m.offerIDs[id] = c
		}
	}
	return m
}

// Assign picks the category for a sale.
func (m *CategoryMapper) Assign(res Resolved) domain.Category {
	if res.OfferID != "" {
		if c, ok := m.offerIDs[res.OfferID]; ok {
			return c
		}
	}

	names := strings.ToLower(res.OfferName + " " + res.OfferNameV2 + " " + res.ProductName)
	switch {
	case strings.Contains(names, "vip"):
		return domain.CategoryVIP
	case strings.Contains(names, "black"):
		return domain.CategoryBlack
	case strings.Contains(names, "gold"):
		return domain.CategoryGold
	}
	return m.defaultCategory
}
