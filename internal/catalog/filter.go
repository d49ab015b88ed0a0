package catalog

import (
	"math"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/utafrali/storefront/internal/domain"
)

// Sort keys.
const (
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNameAsc   = "name_asc"
	SortNameDesc  = "name_desc"
	SortFeatured  = "featured"
)

var sortLabels = map[string]string{
	"Low to High": SortPriceAsc,
	"High to Low": SortPriceDesc,
	"A-Z":         SortNameAsc,
	"Z-A":         SortNameDesc,
	"Featured":    SortFeatured,
}

// MapSort translates a UI sort label into its sort key. Keys and unknown
// values pass through unchanged.
func MapSort(label string) string {
	if key, ok := sortLabels[label]; ok {
		return key
	}
	return label
}

// Criteria narrows and orders a product list. The zero value matches
// everything in input order.
type Criteria struct {
	Categories []string
	Color      string
	MinPrice   *float64
	MaxPrice   *float64
	Sort       string
	Lang       domain.Lang
}

// Active reports whether any criterion is set.
func (c Criteria) Active() bool {
	return len(c.Categories) > 0 || c.Color != "" || c.MinPrice != nil || c.MaxPrice != nil || c.Sort != ""
}

// Apply runs category, color, price and sort in that order. The input slice
// is never modified.
func Apply(products []domain.Product, c Criteria) []domain.Product {
	out := FilterByCategory(products, c.Categories)
	out = FilterByColor(out, c.Color)
	out = FilterByPrice(out, c.MinPrice, c.MaxPrice)
	return Sort(out, c.Sort, c.Lang)
}

// FilterByCategory keeps products whose category id is selected. Ids compare
// as strings. An empty selection returns the input.
func FilterByCategory(products []domain.Product, selected []string) []domain.Product {
	if len(selected) == 0 {
		return products
	}

	set := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		set[strings.TrimSpace(id)] = struct{}{}
	}

	return filter(products, func(p domain.Product) bool {
		id, ok := p.CategoryKey()
		if !ok {
			return false
		}
		_, hit := set[id.String()]
		return hit
	})
}

// FilterByColor keeps products offering color. A product matches through a
// spec group whose key or name mentions "color", or through a variant spec
// keyed exactly "color". Comparison ignores case. An empty color returns the
// input.
func FilterByColor(products []domain.Product, color string) []domain.Product {
	if color == "" {
		return products
	}
	target := strings.ToLower(color)

	return filter(products, func(p domain.Product) bool {
		return specHasColor(p.Specs, target) || variantHasColor(p.Variants, target)
	})
}

func specHasColor(specs []domain.Spec, target string) bool {
	for _, s := range specs {
		label := s.Key
		if label == "" {
			label = s.Name
		}
		if !strings.Contains(strings.ToLower(label), "color") {
			continue
		}
		for _, v := range s.Values {
			val := v.Value
			if val == "" {
				val = v.Key
			}
			if val != "" && strings.ToLower(val) == target {
				return true
			}
		}
	}
	return false
}

func variantHasColor(variants []domain.Variant, target string) bool {
	for _, vr := range variants {
		for _, vs := range vr.Specs {
			if strings.ToLower(vs.Key) == "color" && strings.ToLower(vs.Value) == target {
				return true
			}
		}
	}
	return false
}

// FilterByPrice keeps products priced within [minPrice, maxPrice]. A nil bound is
// unconstrained. Non-numeric prices fail any set bound.
func FilterByPrice(products []domain.Product, minPrice, maxPrice *float64) []domain.Product {
	if minPrice == nil && maxPrice == nil {
		return products
	}

	return filter(products, func(p domain.Product) bool {
		price := p.Price.Float()
		if math.IsNaN(price) {
			return false
		}
		if minPrice != nil && price < *minPrice {
			return false
		}
		if maxPrice != nil && price > *maxPrice {
			return false
		}
		return true
	})
}

// Sort orders a copy of products by key, which may be a sort key or a UI
// label. Featured and unknown keys keep input order. Ties keep input order.
// Products without a numeric price sort last either way.
func Sort(products []domain.Product, key string, lang domain.Lang) []domain.Product {
	out := slices.Clone(products)

	switch MapSort(key) {
	case SortPriceAsc:
		slices.SortStableFunc(out, func(a, b domain.Product) int {
			return comparePrice(a.Price.Float(), b.Price.Float(), false)
		})
	case SortPriceDesc:
		slices.SortStableFunc(out, func(a, b domain.Product) int {
			return comparePrice(a.Price.Float(), b.Price.Float(), true)
		})
	case SortNameAsc, SortNameDesc:
		desc := MapSort(key) == SortNameDesc
		col := collate.New(collationTag(lang))

		named := make([]namedProduct, len(out))
		for i, p := range out {
			named[i] = namedProduct{name: p.Name.Resolve(lang), product: p}
		}
		slices.SortStableFunc(named, func(a, b namedProduct) int {
			c := col.CompareString(a.name, b.name)
			if desc {
				return -c
			}
			return c
		})
		for i := range named {
			out[i] = named[i].product
		}
	}
	return out
}

type namedProduct struct {
	name    string
	product domain.Product
}

func comparePrice(a, b float64, desc bool) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	}
	if desc {
		a, b = b, a
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func collationTag(lang domain.Lang) language.Tag {
	switch lang {
	case domain.LangEN:
		return language.English
	case domain.LangRU:
		return language.Russian
	default:
		return language.Azerbaijani
	}
}

func filter(products []domain.Product, keep func(domain.Product) bool) []domain.Product {
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
