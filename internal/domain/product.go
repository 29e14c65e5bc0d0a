package domain

import (
	"errors"
	"fmt"
	"time"
)

type Size string

const (
	SizeXS  Size = "XS"
	SizeS   Size = "S"
	SizeM   Size = "M"
	SizeL   Size = "L"
	SizeXL  Size = "XL"
	SizeXXL Size = "XXL"
)

var AllSizes = []Size{SizeXS, SizeS, SizeM, SizeL, SizeXL, SizeXXL}

func (s Size) Valid() bool {
	for _, known := range AllSizes {
		if s == known {
			return true
		}
	}
	return false
}

type Category string

const (
	CategoryDresses     Category = "vestidos"
	CategoryTops        Category = "tops"
	CategoryTrousers    Category = "pantalones"
	CategorySkirts      Category = "faldas"
	CategoryCoats       Category = "abrigos"
	CategoryAccessories Category = "accesorios"
	CategoryShoes       Category = "calzado"
)

// AllCategories is the catalog's category list in display order.
var AllCategories = []Category{
	CategoryDresses,
	CategoryTops,
	CategoryTrousers,
	CategorySkirts,
	CategoryCoats,
	CategoryAccessories,
	CategoryShoes,
}

type Color struct {
	Name string `json:"name" yaml:"name"`
	Hex  string `json:"hex" yaml:"hex"`
}

// Product is immutable once loaded. A reload replaces the whole catalog.
type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Price         float64   `json:"price"`
	OriginalPrice *float64  `json:"originalPrice,omitempty"`
	Discount      *int      `json:"discount,omitempty"`
	Category      Category  `json:"category"`
	Brand         string    `json:"brand"`
	Sizes         []Size    `json:"sizes"`
	Colors        []Color   `json:"colors"`
	Images        []string  `json:"images"`
	AROverlayURL  string    `json:"arOverlayUrl,omitempty"`
	HasAR         bool      `json:"hasAR"`
	Rating        float64   `json:"rating"`
	ReviewCount   int       `json:"reviewCount"`
	Stock         *int      `json:"stock,omitempty"`
	IsNew         bool      `json:"isNew"`
	IsFeatured    bool      `json:"isFeatured"`
	Tags          []string  `json:"tags"`
	CreatedAt     time.Time `json:"createdAt"`
}

var (
	ErrMissingProductID = errors.New("product id is required")
	ErrNegativePrice    = errors.New("product price must not be negative")
	ErrNegativeStock    = errors.New("product stock must not be negative")
	ErrDuplicateColor   = errors.New("product color names must be unique")
)

func (p Product) Validate() error {
	if p.ID == "" {
		return ErrMissingProductID
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: %s", ErrNegativePrice, p.ID)
	}
	if p.Stock != nil && *p.Stock < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeStock, p.ID)
	}
	seen := make(map[string]struct{}, len(p.Colors))
	for _, c := range p.Colors {
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("%w: %s has %q twice", ErrDuplicateColor, p.ID, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}

// HasLimitedStock reports whether the product carries a stock figure at all.
func (p Product) HasLimitedStock() bool {
	return p.Stock != nil
}

func (p Product) HasSize(size Size) bool {
	for _, s := range p.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

func (p Product) HasColor(name string) bool {
	for _, c := range p.Colors {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices or pointers with p.
func (p Product) Clone() Product {
	c := p
	c.Sizes = append([]Size(nil), p.Sizes...)
	c.Colors = append([]Color(nil), p.Colors...)
	c.Images = append([]string(nil), p.Images...)
	c.Tags = append([]string(nil), p.Tags...)
	if p.OriginalPrice != nil {
		v := *p.OriginalPrice
		c.OriginalPrice = &v
	}
	if p.Discount != nil {
		v := *p.Discount
		c.Discount = &v
	}
	if p.Stock != nil {
		v := *p.Stock
		c.Stock = &v
	}
	return c
}

// RawProduct is a product record as the remote source returns it.
type RawProduct struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name" yaml:"name"`
	Brand         string   `json:"brand" yaml:"brand"`
	Price         float64  `json:"price" yaml:"price"`
	OriginalPrice *float64 `json:"original_price,omitempty" yaml:"original_price,omitempty"`
	Description   *string  `json:"description,omitempty" yaml:"description,omitempty"`
	Category      string   `json:"category" yaml:"category"`
	Images        []string `json:"images" yaml:"images"`
	AROverlayURL  *string  `json:"ar_overlay_url,omitempty" yaml:"ar_overlay_url,omitempty"`
	Model3DURL    *string  `json:"model_3d_url,omitempty" yaml:"model_3d_url,omitempty"`
	HasAR         *bool    `json:"has_ar,omitempty" yaml:"has_ar,omitempty"`
	IsNew         *bool    `json:"is_new,omitempty" yaml:"is_new,omitempty"`
	IsFeatured    *bool    `json:"is_featured,omitempty" yaml:"is_featured,omitempty"`
	Rating        *float64 `json:"rating,omitempty" yaml:"rating,omitempty"`
	ReviewCount   *int     `json:"review_count,omitempty" yaml:"review_count,omitempty"`
	Stock         *int     `json:"stock,omitempty" yaml:"stock,omitempty"`
	Sizes         []string `json:"sizes" yaml:"sizes"`
	Colors        []Color  `json:"colors" yaml:"colors"`
	Tags          []string `json:"tags" yaml:"tags"`
	CreatedAt     string   `json:"created_at" yaml:"created_at"`
}
