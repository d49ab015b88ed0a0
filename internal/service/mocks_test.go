package service

import (
	"context"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/storefront/internal/backend"
	"github.com/utafrali/storefront/internal/domain"
)

// --- Mock Backend ---

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Login(ctx context.Context, email, password string) (domain.AuthResult, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(domain.AuthResult), args.Error(1)
}

func (m *mockBackend) Register(ctx context.Context, in backend.Registration) (domain.AuthResult, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(domain.AuthResult), args.Error(1)
}

func (m *mockBackend) ListCategories(ctx context.Context, rawQuery string) ([]domain.Category, error) {
	args := m.Called(ctx, rawQuery)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *mockBackend) CreateCategory(ctx context.Context, in backend.CategoryInput) (domain.Category, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(domain.Category), args.Error(1)
}

func (m *mockBackend) UpdateCategory(ctx context.Context, id domain.ID, in backend.CategoryInput) (domain.Category, error) {
	args := m.Called(ctx, id, in)
	return args.Get(0).(domain.Category), args.Error(1)
}

func (m *mockBackend) DeleteCategory(ctx context.Context, id domain.ID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockBackend) GetProduct(ctx context.Context, id domain.ID) (domain.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *mockBackend) CreateProduct(ctx context.Context, categoryID int, in backend.ProductInput) (domain.Product, error) {
	args := m.Called(ctx, categoryID, in)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *mockBackend) CreateSpec(ctx context.Context, productID domain.ID, in backend.SpecInput) error {
	return m.Called(ctx, productID, in).Error(0)
}

func (m *mockBackend) CreateVariant(ctx context.Context, productID domain.ID, in backend.VariantInput) error {
	return m.Called(ctx, productID, in).Error(0)
}

func (m *mockBackend) UpdateProduct(ctx context.Context, id domain.ID, in backend.ProductInput) (domain.Product, error) {
	args := m.Called(ctx, id, in)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *mockBackend) DeleteProduct(ctx context.Context, id domain.ID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockBackend) ListUsers(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}

func (m *mockBackend) UploadImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	args := m.Called(ctx, filename, r)
	return args.String(0), args.Error(1)
}

// --- Counting invalidator ---

type countingCache struct {
	mu sync.Mutex
	n  int
}

func (c *countingCache) Invalidate() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
