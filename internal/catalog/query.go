// Package catalog filters, searches and sorts the product catalog and holds the
// current catalog view.
package catalog

import (
	"sort"
	"strings"

	"github.com/Alecwce/tienda-AR/internal/domain"
)

// ParseSortOption maps a sort identifier to a SortOption. Unknown values fall back to popular.
func ParseSortOption(s string) domain.SortOption {
	switch opt := domain.SortOption(strings.TrimSpace(strings.ToLower(s))); opt {
	case domain.SortNewest, domain.SortPriceAsc, domain.SortPriceDesc, domain.SortRating, domain.SortPopular:
		return opt
	default:
		return domain.SortPopular
	}
}

// DeriveView returns the products that pass the search query and every filter,
// ordered by sortBy. Ties are broken by product ID ascending. The input slice is
// never modified.
func DeriveView(products []domain.Product, filters domain.FilterOptions, searchQuery string, sortBy domain.SortOption) []domain.Product {
	query := strings.ToLower(strings.TrimSpace(searchQuery))

	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if query != "" && !matchesQuery(p, query) {
			continue
		}
		if !matchesFilters(p, filters) {
			continue
		}
		out = append(out, p)
	}

	sortProducts(out, sortBy)
	return out
}

func matchesQuery(p domain.Product, query string) bool {
	if strings.Contains(strings.ToLower(p.Name), query) ||
		strings.Contains(strings.ToLower(p.Description), query) ||
		strings.Contains(strings.ToLower(p.Brand), query) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

func matchesFilters(p domain.Product, f domain.FilterOptions) bool {
	if f.Category != nil && p.Category != *f.Category {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	if len(f.Sizes) > 0 && !hasAnySize(p, f.Sizes) {
		return false
	}
	if len(f.Brands) > 0 && !containsString(f.Brands, p.Brand) {
		return false
	}
	if f.HasAR != nil && p.HasAR != *f.HasAR {
		return false
	}
	if f.IsNew != nil && p.IsNew != *f.IsNew {
		return false
	}
	return true
}

func hasAnySize(p domain.Product, sizes []domain.Size) bool {
	for _, s := range sizes {
		if p.HasSize(s) {
			return true
		}
	}
	return false
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func sortProducts(products []domain.Product, sortBy domain.SortOption) {
	var less func(a, b domain.Product) (bool, bool)
	switch sortBy {
	case domain.SortNewest:
		less = func(a, b domain.Product) (bool, bool) {
			return a.CreatedAt.After(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
		}
	case domain.SortPriceAsc:
		less = func(a, b domain.Product) (bool, bool) { return a.Price < b.Price, a.Price == b.Price }
	case domain.SortPriceDesc:
		less = func(a, b domain.Product) (bool, bool) { return a.Price > b.Price, a.Price == b.Price }
	case domain.SortRating:
		less = func(a, b domain.Product) (bool, bool) { return a.Rating > b.Rating, a.Rating == b.Rating }
	default:
		less = func(a, b domain.Product) (bool, bool) {
			return a.ReviewCount > b.ReviewCount, a.ReviewCount == b.ReviewCount
		}
	}

	sort.SliceStable(products, func(i, j int) bool {
		before, tied := less(products[i], products[j])
		if tied {
			return products[i].ID < products[j].ID
		}
		return before
	})
}

// featured returns the products flagged as featured, in catalog order.
func featured(products []domain.Product) []domain.Product {
	out := make([]domain.Product, 0)
	for _, p := range products {
		if p.IsFeatured {
			out = append(out, p)
		}
	}
	return out
}
