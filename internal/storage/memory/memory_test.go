package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/storage"
	"github.com/utafrali/storefront/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return New() })
}

func TestStore_ValuesAreCopied(t *testing.T) {
	s := New()
	buf := []byte("abc")
	require.NoError(t, s.Set(context.Background(), "k", buf))
	buf[0] = 'x'

	got, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'y'
	again, _ := s.Get(context.Background(), "k")
	assert.Equal(t, "abc", string(again))
	assert.Equal(t, 1, s.Len())
}
