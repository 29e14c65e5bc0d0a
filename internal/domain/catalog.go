package domain

type SortOption string

const (
	SortPopular   SortOption = "popular"
	SortNewest    SortOption = "newest"
	SortPriceAsc  SortOption = "price-asc"
	SortPriceDesc SortOption = "price-desc"
	SortRating    SortOption = "rating"
)

// FilterOptions holds optional catalog constraints. A nil pointer or an empty
// slice means "no constraint", never "match nothing".
type FilterOptions struct {
	Category *Category `json:"category,omitempty"`
	MinPrice *float64  `json:"minPrice,omitempty"`
	MaxPrice *float64  `json:"maxPrice,omitempty"`
	Sizes    []Size    `json:"sizes,omitempty"`
	Brands   []string  `json:"brands,omitempty"`
	HasAR    *bool     `json:"hasAR,omitempty"`
	IsNew    *bool     `json:"isNew,omitempty"`
}

// Merge returns f with every constraint set in patch overriding the current one.
func (f FilterOptions) Merge(patch FilterOptions) FilterOptions {
	out := f
	if patch.Category != nil {
		out.Category = patch.Category
	}
	if patch.MinPrice != nil {
		out.MinPrice = patch.MinPrice
	}
	if patch.MaxPrice != nil {
		out.MaxPrice = patch.MaxPrice
	}
	if patch.Sizes != nil {
		out.Sizes = append([]Size(nil), patch.Sizes...)
	}
	if patch.Brands != nil {
		out.Brands = append([]string(nil), patch.Brands...)
	}
	if patch.HasAR != nil {
		out.HasAR = patch.HasAR
	}
	if patch.IsNew != nil {
		out.IsNew = patch.IsNew
	}
	return out
}

func (f FilterOptions) IsEmpty() bool {
	return f.Category == nil && f.MinPrice == nil && f.MaxPrice == nil &&
		len(f.Sizes) == 0 && len(f.Brands) == 0 && f.HasAR == nil && f.IsNew == nil
}

// CatalogView is a snapshot of the catalog query state and its derived product list.
type CatalogView struct {
	SearchQuery      string        `json:"searchQuery"`
	Filters          FilterOptions `json:"filters"`
	SortBy           SortOption    `json:"sortBy"`
	FilteredProducts []Product     `json:"filteredProducts"`
	Featured         []Product     `json:"featuredProducts"`
	IsLoading        bool          `json:"isLoading"`
	Error            string        `json:"error,omitempty"`
}
