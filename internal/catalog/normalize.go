package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/utafrali/storefront/internal/domain"
)

// Wrapper keys the backend uses around collections, checked in order.
var (
	productWrappers  = []string{"products", "data", "product"}
	categoryWrappers = []string{"categories", "data", "category"}
)

// NormalizeProducts decodes a backend payload into a product list. Accepted
// shapes are a bare array, a single object with an id, and either of those
// wrapped under "products", "data" or "product". Anything else is empty.
func NormalizeProducts(data []byte) ([]domain.Product, error) {
	return NormalizeList[domain.Product](data, productWrappers...)
}

// NormalizeCategories is NormalizeProducts for categories, with the
// "categories", "data" and "category" wrappers.
func NormalizeCategories(data []byte) ([]domain.Category, error) {
	return NormalizeList[domain.Category](data, categoryWrappers...)
}

// NormalizeProduct decodes a payload that should carry exactly one product.
func NormalizeProduct(data []byte) (domain.Product, bool, error) {
	list, err := NormalizeProducts(data)
	if err != nil || len(list) == 0 {
		return domain.Product{}, false, err
	}
	return list[0], true, nil
}

// NormalizeList decodes a bare array, a single object with an id, or either
// of those under one of the wrapper keys, into a list. Other shapes decode
// as an empty list.
func NormalizeList[T any](data []byte, wrappers ...string) ([]T, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []T{}, nil
	}

	switch data[0] {
	case '[':
		var list []T
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		if list == nil {
			list = []T{}
		}
		return list, nil

	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("decode object: %w", err)
		}
		for _, key := range wrappers {
			inner, ok := obj[key]
			if !ok {
				continue
			}
			inner = bytes.TrimSpace(inner)
			if len(inner) > 0 && (inner[0] == '[' || inner[0] == '{') {
				return NormalizeList[T](inner, wrappers...)
			}
		}
		if !hasID(obj) {
			return []T{}, nil
		}
		var item T
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("decode item: %w", err)
		}
		return []T{item}, nil

	default:
		return []T{}, nil
	}
}

func hasID(obj map[string]json.RawMessage) bool {
	for _, key := range []string{"id", "_id"} {
		v, ok := obj[key]
		if !ok {
			continue
		}
		v = bytes.TrimSpace(v)
		if len(v) > 0 && !bytes.Equal(v, []byte("null")) && !bytes.Equal(v, []byte(`""`)) {
			return true
		}
	}
	return false
}
