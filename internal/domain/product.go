package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// NewProductWindow is how long after creation a product counts as new.
const NewProductWindow = 7 * 24 * time.Hour

// Product is a catalog entry as the backend returns it.
type Product struct {
	ID          ID        `json:"id"`
	LegacyID    ID        `json:"_id,omitempty"`
	Slug        string    `json:"slug,omitempty"`
	Name        Localized `json:"name"`
	Description Localized `json:"description"`
	Brand       string    `json:"brand,omitempty"`
	Img         string    `json:"img,omitempty"`
	Images      Strings   `json:"images,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Price       Number    `json:"price"`
	Stock       Number    `json:"stock"`
	Discount    Number    `json:"discount"`
	IsActive    *bool     `json:"isActive,omitempty"`
	IsNew       bool      `json:"isNew,omitempty"`
	Date        string    `json:"date,omitempty"`
	CategoryID  ID        `json:"categoryId,omitempty"`
	Category    *Category `json:"category,omitempty"`
	Specs       []Spec    `json:"specs,omitempty"`
	Variants    []Variant `json:"variants,omitempty"`
	CreatedAt   string    `json:"createdAt,omitempty"`
	UpdatedAt   string    `json:"updatedAt,omitempty"`
}

// Spec is a named attribute group such as color or size.
type Spec struct {
	ID        ID          `json:"id,omitempty"`
	Key       string      `json:"key"`
	Name      string      `json:"name"`
	ProductID ID          `json:"productId,omitempty"`
	Values    []SpecValue `json:"values"`
}

// SpecValue is one option of a Spec.
type SpecValue struct {
	ID            ID     `json:"id,omitempty"`
	Key           string `json:"key"`
	Value         string `json:"value"`
	ProductSpecID ID     `json:"productSpecId,omitempty"`
}

// Variant is an alternate purchasable configuration of a product.
type Variant struct {
	ID        ID            `json:"id,omitempty"`
	Slug      string        `json:"slug"`
	Price     Number        `json:"price"`
	Stock     Number        `json:"stock"`
	Discount  Number        `json:"discount"`
	Images    []string      `json:"images,omitempty"`
	ProductID ID            `json:"productId,omitempty"`
	Specs     []VariantSpec `json:"specs,omitempty"`
}

// VariantSpec is a key/value pair distinguishing a variant.
type VariantSpec struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CategoryKey is the category id used for filtering: the embedded category
// object wins over the flat field.
func (p Product) CategoryKey() (ID, bool) {
	if p.Category != nil && p.Category.ID != "" {
		return p.Category.ID, true
	}
	if p.CategoryID != "" {
		return p.CategoryID, true
	}
	return "", false
}

// Image returns the primary image reference.
func (p Product) Image() string {
	if p.ImageURL != "" {
		return p.ImageURL
	}
	if img := p.Images.First(); img != "" {
		return img
	}
	return p.Img
}

// IsNewAt reports whether the product is flagged new or was created within
// NewProductWindow of now.
func (p Product) IsNewAt(now time.Time) bool {
	if p.IsNew {
		return true
	}
	raw := p.CreatedAt
	if raw == "" {
		raw = p.Date
	}
	created, ok := parseTimestamp(raw)
	if !ok {
		return false
	}
	return now.Sub(created) <= NewProductWindow
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// PriceInfo is the display price of a product.
type PriceInfo struct {
	Price             float64 `json:"price"`
	Discount          float64 `json:"discount"`
	EffectiveDiscount float64 `json:"effective_discount"`
	HasDiscount       bool    `json:"has_discount"`
	DiscountedPrice   float64 `json:"discounted_price"`
}

// PricePrecision is the number of decimal places of a discounted price.
const PricePrecision = 2

// Pricing derives the display price. The first variant's price wins over the
// product price; the product discount wins over the first variant's when
// positive.
func (p Product) Pricing() PriceInfo {
	var primary *Variant
	if len(p.Variants) > 0 {
		primary = &p.Variants[0]
	}

	base := p.Price
	if primary != nil && primary.Price.Set() {
		base = primary.Price
	}
	price := finiteOr(base.Float(), 0)

	discount := finiteOr(p.Discount.Or(0), 0)
	effective := discount
	if effective <= 0 && primary != nil {
		effective = finiteOr(primary.Discount.Or(0), 0)
	}

	info := PriceInfo{
		Price:             price,
		Discount:          discount,
		EffectiveDiscount: effective,
		HasDiscount:       effective > 0,
		DiscountedPrice:   price,
	}
	if info.HasDiscount {
		info.DiscountedPrice = decimal.NewFromFloat(price).
			Mul(decimal.NewFromInt(100).Sub(decimal.NewFromFloat(effective))).
			Div(decimal.NewFromInt(100)).
			Round(PricePrecision).
			InexactFloat64()
	}
	return info
}

func finiteOr(f, def float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// Category is a product category.
type Category struct {
	ID       ID        `json:"id"`
	Name     Localized `json:"name"`
	Slug     string    `json:"slug,omitempty"`
	ParentID ID        `json:"parentId,omitempty"`
	ImageURL string    `json:"imageUrl,omitempty"`
}
