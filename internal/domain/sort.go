package domain

import "sort"

type SortKey string

const (
	SortLatest    SortKey = "latest"
	SortOldest    SortKey = "oldest"
	SortPriceHigh SortKey = "price_high"
	SortPriceLow  SortKey = "price_low"
	SortViews     SortKey = "views"
)

// ParseSort maps the ?sort= value onto a known key; anything unrecognised is
// treated as latest.
func ParseSort(s string) SortKey {
	switch k := SortKey(s); k {
	case SortLatest, SortOldest, SortPriceHigh, SortPriceLow, SortViews:
		return k
	}
	return SortLatest
}

// OrderBy returns the SQL ORDER BY clause for the key. The id tiebreak runs in
// the same direction as the primary column, so price_low is the exact reverse
// of price_high.
func (k SortKey) OrderBy() string {
	switch k {
	case SortOldest:
		return "products.created_at ASC, products.id ASC"
	case SortPriceHigh:
		return "products.price DESC, products.id DESC"
	case SortPriceLow:
		return "products.price ASC, products.id ASC"
	case SortViews:
		return "products.views DESC, products.id DESC"
	default:
		return "products.created_at DESC, products.id DESC"
	}
}

// SortProducts is the in-process equivalent of OrderBy.
func SortProducts(ps []Product, k SortKey) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		switch k {
		case SortOldest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		case SortPriceHigh:
			if a.Price != b.Price {
				return a.Price > b.Price
			}
			return a.ID > b.ID
		case SortPriceLow:
			if a.Price != b.Price {
				return a.Price < b.Price
			}
			return a.ID < b.ID
		case SortViews:
			if a.Views != b.Views {
				return a.Views > b.Views
			}
			return a.ID > b.ID
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		}
	})
}
