package catalog

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
)

// Search keeps products whose resolved name or description contains query,
// ignoring case. A blank query returns the input.
func Search(products []domain.Product, query string, lang domain.Lang) []domain.Product {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return products
	}
	return filter(products, func(p domain.Product) bool {
		return strings.Contains(strings.ToLower(p.Name.Resolve(lang)), q) ||
			strings.Contains(strings.ToLower(p.Description.Resolve(lang)), q)
	})
}

// CriteriaFromQuery reads criteria from query parameters: repeated or
// comma-separated "category", "color", "min_price", "max_price", "sort" and
// "lang". Unparseable prices leave the bound unset.
func CriteriaFromQuery(q url.Values) Criteria {
	c := Criteria{
		Color: strings.TrimSpace(q.Get("color")),
		Sort:  strings.TrimSpace(q.Get("sort")),
		Lang:  domain.LangOrDefault(q.Get("lang")),
	}

	for _, raw := range q["category"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				c.Categories = append(c.Categories, id)
			}
		}
	}

	c.MinPrice = parseBound(q.Get("min_price"))
	c.MaxPrice = parseBound(q.Get("max_price"))
	return c
}

func parseBound(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) {
		return nil
	}
	return &v
}
