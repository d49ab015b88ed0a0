package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeProducts_Shapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"array", `[{"id":1},{"id":"2"}]`, []string{"1", "2"}},
		{"single object", `{"id":5,"name":"Shirt"}`, []string{"5"}},
		{"data array", `{"data":[{"id":1}]}`, []string{"1"}},
		{"products array", `{"products":[{"id":3}],"total":1}`, []string{"3"}},
		{"product object", `{"product":{"id":9},"message":"created"}`, []string{"9"}},
		{"nested data", `{"data":{"products":[{"id":4}]}}`, []string{"4"}},
		{"empty array", `[]`, []string{}},
		{"error object", `{"message":"not found","statusCode":404}`, []string{}},
		{"null", `null`, []string{}},
		{"empty body", ``, []string{}},
		{"scalar", `"nope"`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeProducts([]byte(tt.raw))
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestNormalizeProducts_MalformedArray(t *testing.T) {
	_, err := NormalizeProducts([]byte(`[{"id":1},`))
	assert.Error(t, err)
}

func TestNormalizeCategories_Shapes(t *testing.T) {
	for _, raw := range []string{
		`[{"id":1,"name":"Geyim"}]`,
		`{"categories":[{"id":1,"name":"Geyim"}]}`,
		`{"data":[{"id":1,"name":"Geyim"}]}`,
		`{"id":1,"name":"Geyim"}`,
	} {
		got, err := NormalizeCategories([]byte(raw))
		require.NoError(t, err, raw)
		require.Len(t, got, 1, raw)
		assert.Equal(t, "Geyim", got[0].Name.Resolve("en"), raw)
	}

	got, err := NormalizeCategories([]byte(`{"ok":true}`))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNormalizeProduct(t *testing.T) {
	p, ok, err := NormalizeProduct([]byte(`{"data":{"id":"abc"}}`))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", p.ID.String())

	_, ok, err = NormalizeProduct([]byte(`{"error":"Not Found"}`))
	require.NoError(t, err)
	assert.False(t, ok)
}
