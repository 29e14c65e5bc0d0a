package loader

import (
	"math"
	"time"

	"github.com/Alecwce/tienda-AR/internal/domain"
)

var createdAtLayouts = []string{time.RFC3339Nano, time.DateTime, time.DateOnly}

// MapRaw converts a source record into a Product. Missing numbers become 0,
// missing lists become empty and missing flags become false. A missing stock
// figure maps to 0.
func MapRaw(r domain.RawProduct) domain.Product {
	p := domain.Product{
		ID:          r.ID,
		Name:        r.Name,
		Brand:       r.Brand,
		Price:       r.Price,
		Category:    domain.Category(r.Category),
		Images:      nonNil(r.Images),
		Colors:      append([]domain.Color{}, r.Colors...),
		Tags:        nonNil(r.Tags),
		Sizes:       mapSizes(r.Sizes),
		HasAR:       deref(r.HasAR),
		IsNew:       deref(r.IsNew),
		IsFeatured:  deref(r.IsFeatured),
		Rating:      deref(r.Rating),
		ReviewCount: deref(r.ReviewCount),
		Description: deref(r.Description),
		CreatedAt:   parseCreatedAt(r.CreatedAt),
	}

	stock := deref(r.Stock)
	p.Stock = &stock

	if r.OriginalPrice != nil && *r.OriginalPrice != 0 {
		original := *r.OriginalPrice
		p.OriginalPrice = &original
		discount := int(math.Round((original - r.Price) / original * 100))
		p.Discount = &discount
	}

	switch {
	case r.AROverlayURL != nil && *r.AROverlayURL != "":
		p.AROverlayURL = *r.AROverlayURL
	case r.Model3DURL != nil && *r.Model3DURL != "":
		p.AROverlayURL = *r.Model3DURL
	}

	return p
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}

func nonNil(values []string) []string {
	return append([]string{}, values...)
}

// mapSizes keeps the known sizes in source order.
func mapSizes(sizes []string) []domain.Size {
	out := make([]domain.Size, 0, len(sizes))
	for _, s := range sizes {
		if size := domain.Size(s); size.Valid() {
			out = append(out, size)
		}
	}
	return out
}

func parseCreatedAt(s string) time.Time {
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
