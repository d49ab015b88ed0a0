package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/utafrali/storefront/internal/domain"
)

func product(id string, price float64, name string) domain.Product {
	return domain.Product{ID: domain.ID(id), Price: domain.NewNumber(price), Name: domain.Text(name)}
}

func ids(products []domain.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID.String()
	}
	return out
}

func ptr(v float64) *float64 { return &v }

// ============================================================================
// MapSort
// ============================================================================

func TestMapSort(t *testing.T) {
	tests := map[string]string{
		"Low to High": SortPriceAsc,
		"High to Low": SortPriceDesc,
		"A-Z":         SortNameAsc,
		"Z-A":         SortNameDesc,
		"Featured":    SortFeatured,
		"price_asc":   SortPriceAsc,
		"newest":      "newest",
		"":            "",
	}
	for in, want := range tests {
		assert.Equal(t, want, MapSort(in), in)
	}
}

// ============================================================================
// Category
// ============================================================================

func TestFilterByCategory(t *testing.T) {
	products := []domain.Product{
		{ID: "1", Category: &domain.Category{ID: "10"}},
		{ID: "2", CategoryID: "20"},
		{ID: "3", Category: &domain.Category{ID: "30"}, CategoryID: "10"},
		{ID: "4"},
	}

	assert.Equal(t, []string{"1", "2"}, ids(FilterByCategory(products, []string{"10", "20"})))
	assert.Equal(t, []string{"3"}, ids(FilterByCategory(products, []string{"30"})),
		"embedded category id wins over the flat field")
	assert.Empty(t, FilterByCategory(products, []string{"99"}))
}

func TestFilterByCategory_EmptySelectionIsIdentity(t *testing.T) {
	products := []domain.Product{{ID: "b"}, {ID: "a"}, {ID: "c"}}
	assert.Equal(t, products, FilterByCategory(products, nil))
	assert.Equal(t, products, FilterByCategory(products, []string{}))
}

// ============================================================================
// Color
// ============================================================================

func TestFilterByColor(t *testing.T) {
	products := []domain.Product{
		{ID: "spec-key", Specs: []domain.Spec{{Key: "Color", Values: []domain.SpecValue{{Value: "Red"}}}}},
		{ID: "spec-name", Specs: []domain.Spec{{Name: "primary_color", Values: []domain.SpecValue{{Key: "red"}}}}},
		{ID: "variant", Variants: []domain.Variant{{Specs: []domain.VariantSpec{{Key: "COLOR", Value: "RED"}}}}},
		{ID: "variant-fuzzy-key", Variants: []domain.Variant{{Specs: []domain.VariantSpec{{Key: "colour", Value: "red"}}}}},
		{ID: "other-group", Specs: []domain.Spec{{Key: "size", Values: []domain.SpecValue{{Value: "red"}}}}},
		{ID: "blue", Specs: []domain.Spec{{Key: "color", Values: []domain.SpecValue{{Value: "blue"}}}}},
	}

	assert.Equal(t, []string{"spec-key", "spec-name", "variant"}, ids(FilterByColor(products, "red")))
	assert.Equal(t, products, FilterByColor(products, ""))
}

func TestFilterByColor_ValueFallsBackToKey(t *testing.T) {
	products := []domain.Product{
		{ID: "1", Specs: []domain.Spec{{Key: "color", Values: []domain.SpecValue{{Key: "black", Value: ""}}}}},
		{ID: "2", Specs: []domain.Spec{{Key: "color", Values: []domain.SpecValue{{Key: "black", Value: "white"}}}}},
	}
	assert.Equal(t, []string{"1"}, ids(FilterByColor(products, "Black")))
}

// ============================================================================
// Price
// ============================================================================

func TestFilterByPrice_InclusiveBounds(t *testing.T) {
	products := []domain.Product{product("1", 10, "A"), product("2", 20, "B"), product("3", 30, "C")}

	assert.Equal(t, []string{"1", "2"}, ids(FilterByPrice(products, ptr(10), ptr(20))))
	assert.Equal(t, []string{"2", "3"}, ids(FilterByPrice(products, ptr(20), nil)))
	assert.Equal(t, []string{"1"}, ids(FilterByPrice(products, nil, ptr(10))))
	assert.Equal(t, products, FilterByPrice(products, nil, nil))
}

func TestFilterByPrice_NonNumericPrice(t *testing.T) {
	products := []domain.Product{product("1", 10, "A"), {ID: "nan"}}

	assert.Equal(t, []string{"1", "nan"}, ids(FilterByPrice(products, nil, nil)),
		"unconstrained filter keeps everything")
	assert.Equal(t, []string{"1"}, ids(FilterByPrice(products, ptr(0), nil)))
	assert.Equal(t, []string{"1"}, ids(FilterByPrice(products, nil, ptr(1000))))
}

// ============================================================================
// Sort
// ============================================================================

func TestSort(t *testing.T) {
	products := []domain.Product{product("1", 10, "A"), product("2", 30, "B"), product("3", 20, "C")}

	assert.Equal(t, []string{"1", "3", "2"}, ids(Sort(products, "Low to High", domain.LangAZ)))
	assert.Equal(t, []string{"2", "3", "1"}, ids(Sort(products, "High to Low", domain.LangAZ)))
	assert.Equal(t, []string{"1", "2", "3"}, ids(Sort(products, "A-Z", domain.LangAZ)))
	assert.Equal(t, []string{"3", "2", "1"}, ids(Sort(products, "Z-A", domain.LangAZ)))
	assert.Equal(t, []string{"1", "2", "3"}, ids(Sort(products, "Featured", domain.LangAZ)))
	assert.Equal(t, []string{"1", "2", "3"}, ids(Sort(products, "bogus", domain.LangAZ)))

	assert.Equal(t, []string{"1", "2", "3"}, ids(products), "input order untouched")
}

func TestSort_StableTies(t *testing.T) {
	products := []domain.Product{
		product("a", 10, "Same"), product("b", 5, "Same"), product("c", 10, "Same"), product("d", 5, "Same"),
	}

	assert.Equal(t, []string{"b", "d", "a", "c"}, ids(Sort(products, SortPriceAsc, domain.LangEN)))
	assert.Equal(t, []string{"a", "c", "b", "d"}, ids(Sort(products, SortPriceDesc, domain.LangEN)))
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(Sort(products, SortNameAsc, domain.LangEN)))
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(Sort(products, SortNameDesc, domain.LangEN)))
}

func TestSort_NonNumericPricesLast(t *testing.T) {
	products := []domain.Product{{ID: "nan"}, product("1", 10, "A"), product("2", 5, "B")}

	assert.Equal(t, []string{"2", "1", "nan"}, ids(Sort(products, SortPriceAsc, domain.LangAZ)))
	assert.Equal(t, []string{"1", "2", "nan"}, ids(Sort(products, SortPriceDesc, domain.LangAZ)))
}

func TestSort_LocaleAwareNames(t *testing.T) {
	products := []domain.Product{
		{ID: "z", Name: domain.Record(map[domain.Lang]string{domain.LangAZ: "Zərf", domain.LangEN: "Apple"})},
		{ID: "ç", Name: domain.Record(map[domain.Lang]string{domain.LangAZ: "Çanta", domain.LangEN: "Zebra"})},
		{ID: "c", Name: domain.Record(map[domain.Lang]string{domain.LangAZ: "Corab", domain.LangEN: "Mango"})},
	}

	assert.Equal(t, []string{"c", "ç", "z"}, ids(Sort(products, SortNameAsc, domain.LangAZ)),
		"ç sorts after c in Azerbaijani")
	assert.Equal(t, []string{"z", "c", "ç"}, ids(Sort(products, SortNameAsc, domain.LangEN)),
		"names resolve in the requested language")
}

// ============================================================================
// Apply
// ============================================================================

func TestApply(t *testing.T) {
	red := []domain.Spec{{Key: "color", Values: []domain.SpecValue{{Value: "red"}}}}
	products := []domain.Product{
		{ID: "1", Price: domain.NewNumber(40), Name: domain.Text("Dress"), CategoryID: "1", Specs: red},
		{ID: "2", Price: domain.NewNumber(15), Name: domain.Text("Belt"), CategoryID: "1", Specs: red},
		{ID: "3", Price: domain.NewNumber(25), Name: domain.Text("Hat"), CategoryID: "2", Specs: red},
		{ID: "4", Price: domain.NewNumber(20), Name: domain.Text("Scarf"), CategoryID: "1"},
		{ID: "5", Price: domain.NewNumber(90), Name: domain.Text("Coat"), CategoryID: "1", Specs: red},
	}

	c := Criteria{Categories: []string{"1"}, Color: "Red", MinPrice: ptr(15), MaxPrice: ptr(50), Sort: "High to Low"}
	got := Apply(products, c)
	assert.Equal(t, []string{"1", "2"}, ids(got))

	assert.Equal(t, ids(got), ids(Apply(got, c)), "re-applying the same criteria is idempotent")
	assert.Equal(t, ids(products), ids(Apply(products, Criteria{})))
}

func TestCriteria_Active(t *testing.T) {
	assert.False(t, Criteria{Lang: domain.LangEN}.Active())
	assert.True(t, Criteria{MaxPrice: ptr(0)}.Active())
	assert.True(t, Criteria{Sort: SortFeatured}.Active())
}
