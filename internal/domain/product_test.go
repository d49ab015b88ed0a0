package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Decoding
// ============================================================================

func TestProduct_DecodesLooseShapes(t *testing.T) {
	raw := `{
		"id": 12,
		"name": {"az":"Köynək","en":"Shirt"},
		"price": "49.90",
		"stock": 3,
		"categoryId": 4,
		"images": ["a.jpg","b.jpg"],
		"category": {"id": "7", "name": "Geyim", "slug": "geyim"}
	}`

	var p Product
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	assert.Equal(t, ID("12"), p.ID)
	assert.Equal(t, "Shirt", p.Name.Resolve(LangEN))
	assert.InDelta(t, 49.90, p.Price.Float(), 1e-9)
	assert.Equal(t, 3, p.Stock.Int())
	assert.Equal(t, ID("4"), p.CategoryID)
	assert.Equal(t, "a.jpg", p.Image())

	key, ok := p.CategoryKey()
	assert.True(t, ok)
	assert.Equal(t, ID("7"), key)
}

func TestNumber_NonNumericIsNaN(t *testing.T) {
	var n Number
	require.NoError(t, json.Unmarshal([]byte(`"contact us"`), &n))
	assert.True(t, n.Set())
	assert.False(t, n.Valid())
	assert.True(t, math.IsNaN(n.Float()))

	out, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, `"contact us"`, string(out))
}

func TestNumber_AbsentIsNaN(t *testing.T) {
	var p Product
	require.NoError(t, json.Unmarshal([]byte(`{"id":"1"}`), &p))
	assert.False(t, p.Price.Set())
	assert.True(t, math.IsNaN(p.Price.Float()))
}

func TestNumber_BlankStringIsZero(t *testing.T) {
	var n Number
	require.NoError(t, json.Unmarshal([]byte(`"  "`), &n))
	assert.True(t, n.Valid())
	assert.Equal(t, 0.0, n.Float())
}

// ============================================================================
// Derived fields
// ============================================================================

func TestProduct_Image(t *testing.T) {
	assert.Equal(t, "url.jpg", Product{ImageURL: "url.jpg", Images: Strings{"i.jpg"}, Img: "img.jpg"}.Image())
	assert.Equal(t, "i.jpg", Product{Images: Strings{"i.jpg"}, Img: "img.jpg"}.Image())
	assert.Equal(t, "img.jpg", Product{Img: "img.jpg"}.Image())
	assert.Equal(t, "", Product{}.Image())
}

func TestProduct_CategoryKeyFallsBackToFlatField(t *testing.T) {
	key, ok := Product{CategoryID: "3"}.CategoryKey()
	assert.True(t, ok)
	assert.Equal(t, ID("3"), key)

	_, ok = Product{}.CategoryKey()
	assert.False(t, ok)
}

func TestProduct_IsNewAt(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.True(t, Product{IsNew: true}.IsNewAt(now))
	assert.True(t, Product{CreatedAt: "2026-03-05T09:00:00Z"}.IsNewAt(now))
	assert.True(t, Product{Date: "2026-03-04"}.IsNewAt(now))
	assert.False(t, Product{CreatedAt: "2026-02-20T09:00:00Z"}.IsNewAt(now))
	assert.False(t, Product{CreatedAt: "yesterday"}.IsNewAt(now))
	assert.False(t, Product{}.IsNewAt(now))
}

func TestProduct_Pricing(t *testing.T) {
	tests := []struct {
		name      string
		product   Product
		price     float64
		effective float64
		final     float64
	}{
		{
			name:    "no discount",
			product: Product{Price: NewNumber(80)},
			price:   80, effective: 0, final: 80,
		},
		{
			name:    "product discount",
			product: Product{Price: NewNumber(80), Discount: NewNumber(25)},
			price:   80, effective: 25, final: 60,
		},
		{
			name: "first variant price wins",
			product: Product{
				Price:    NewNumber(80),
				Variants: []Variant{{Price: NewNumber(100), Discount: NewNumber(10)}, {Price: NewNumber(5)}},
			},
			price: 100, effective: 10, final: 90,
		},
		{
			name: "product discount wins over variant discount",
			product: Product{
				Discount: NewNumber(50),
				Variants: []Variant{{Price: NewNumber(100), Discount: NewNumber(10)}},
			},
			price: 100, effective: 50, final: 50,
		},
		{
			name:    "variant without price falls back to product",
			product: Product{Price: NewNumber(30), Variants: []Variant{{Slug: "s"}}},
			price:   30, effective: 0, final: 30,
		},
		{
			name:    "non-numeric price reads as zero",
			product: Product{Price: parseNumber("n/a")},
			price:   0, effective: 0, final: 0,
		},
		{
			name:    "rounded to cents",
			product: Product{Price: NewNumber(19.99), Discount: NewNumber(15)},
			price:   19.99, effective: 15, final: 16.99,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := tt.product.Pricing()
			assert.InDelta(t, tt.price, info.Price, 1e-9)
			assert.InDelta(t, tt.effective, info.EffectiveDiscount, 1e-9)
			assert.Equal(t, tt.effective > 0, info.HasDiscount)
			assert.InDelta(t, tt.final, info.DiscountedPrice, 1e-9)
		})
	}
}

// ============================================================================
// Cart values
// ============================================================================

func TestSnapshot_Totals(t *testing.T) {
	items := []LineItem{
		{ID: "p1", Price: decimal.RequireFromString("50"), Quantity: 2},
		{ID: "p2", Price: decimal.RequireFromString("9.99")},
		{ID: "p3", Price: decimal.RequireFromString("0.01"), Quantity: 3},
	}

	snap := NewSnapshot(items)

	assert.Equal(t, 6, snap.TotalItems)
	assert.True(t, decimal.RequireFromString("110.02").Equal(snap.TotalPrice), snap.TotalPrice.String())

	snap.Items[0].Quantity = 9
	assert.Equal(t, 2, items[0].Quantity, "snapshot must not alias the source")
}

func TestSnapshot_Empty(t *testing.T) {
	snap := NewSnapshot(nil)
	assert.NotNil(t, snap.Items)
	assert.Equal(t, 0, snap.TotalItems)
	assert.True(t, snap.TotalPrice.IsZero())
}

// ============================================================================
// Users
// ============================================================================

func TestParseUserRecord(t *testing.T) {
	tests := []struct {
		raw      string
		identity string
		ok       bool
		wantErr  bool
	}{
		{`{"id":7,"email":"a@b.az"}`, "7", true, false},
		{`{"_id":"abc","email":"a@b.az"}`, "abc", true, false},
		{`{"email":"a@b.az"}`, "a@b.az", true, false},
		{`{"username":"anon"}`, "", false, false},
		{`null`, "", false, false},
		{`undefined`, "", false, false},
		{``, "", false, false},
		{`{broken`, "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, ok, err := ParseUserRecord([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.identity, u.Identity())
		})
	}
}
