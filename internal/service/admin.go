package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/utafrali/storefront/internal/backend"
	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/slug"
)

const (
	// DefaultDescription replaces a missing or too short product description.
	DefaultDescription = "Məhsul təsviri"

	// PlaceholderImage is used for products created without a main image.
	PlaceholderImage = "https://via.placeholder.com/400x400?text=No+Image"

	// PlaceholderCategoryImage is used for categories created without an image.
	PlaceholderCategoryImage = "https://via.placeholder.com/400x400?text=Category"

	// minDescriptionLength is the shortest description kept on update.
	minDescriptionLength = 3

	// childCallLimit bounds concurrent spec and variant creation.
	childCallLimit = 5
)

var whitespace = regexp.MustCompile(`\s+`)

// AdminBackend is the part of the backend API the admin console drives.
type AdminBackend interface {
	ListCategories(ctx context.Context, rawQuery string) ([]domain.Category, error)
	CreateCategory(ctx context.Context, in backend.CategoryInput) (domain.Category, error)
	UpdateCategory(ctx context.Context, id domain.ID, in backend.CategoryInput) (domain.Category, error)
	DeleteCategory(ctx context.Context, id domain.ID) error
	GetProduct(ctx context.Context, id domain.ID) (domain.Product, error)
	CreateProduct(ctx context.Context, categoryID int, in backend.ProductInput) (domain.Product, error)
	CreateSpec(ctx context.Context, productID domain.ID, in backend.SpecInput) error
	CreateVariant(ctx context.Context, productID domain.ID, in backend.VariantInput) error
	UpdateProduct(ctx context.Context, id domain.ID, in backend.ProductInput) (domain.Product, error)
	DeleteProduct(ctx context.Context, id domain.ID) error
	ListUsers(ctx context.Context) ([]domain.User, error)
	UploadImage(ctx context.Context, filename string, r io.Reader) (string, error)
}

// Invalidator drops cached catalog data after a mutation.
type Invalidator interface {
	Invalidate()
}

// AdminService implements the admin console's catalog and user operations.
// The caller's token must already be on ctx (see backend.WithToken).
type AdminService struct {
	backend AdminBackend
	cache   Invalidator
	logger  *slog.Logger
	now     func() time.Time
}

// NewAdminService creates a new admin service.
func NewAdminService(b AdminBackend, cache Invalidator, logger *slog.Logger) *AdminService {
	return &AdminService{
		backend: b,
		cache:   cache,
		logger:  logger,
		now:     time.Now,
	}
}

// --- Product input types ---

// SpecInput is one spec group of a product form.
type SpecInput struct {
	Key    string           `json:"key"`
	Name   string           `json:"name"`
	Values []SpecValueInput `json:"values"`
}

// SpecValueInput is one value of a spec group.
type SpecValueInput struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// VariantInput is one variant of a product form.
type VariantInput struct {
	Slug     string               `json:"slug"`
	Price    float64              `json:"price"`
	Stock    int                  `json:"stock"`
	Discount float64              `json:"discount"`
	Images   []string             `json:"images"`
	Specs    []domain.VariantSpec `json:"specs"`
}

// CreateProductInput holds the parameters for creating a product.
type CreateProductInput struct {
	Name        string         `json:"name" validate:"required"`
	Slug        string         `json:"slug"`
	Description string         `json:"description"`
	Img         string         `json:"img"`
	Price       float64        `json:"price"`
	Stock       int            `json:"stock"`
	Category    string         `json:"category" validate:"required"`
	Specs       []SpecInput    `json:"specs"`
	Variants    []VariantInput `json:"variants" validate:"required,min=1"`
}

// UpdateProductInput holds the parameters for editing a product. Specs and
// variants listed here are added to the product after the update.
type UpdateProductInput struct {
	Name        string         `json:"name" validate:"required"`
	Slug        string         `json:"slug"`
	Price       domain.Number  `json:"price"`
	Stock       domain.Number  `json:"stock"`
	Description []string       `json:"description"`
	Img         string         `json:"img"`
	IsActive    *bool          `json:"isActive"`
	Specs       []SpecInput    `json:"specs"`
	Variants    []VariantInput `json:"variants"`
}

// CategoryInput holds the parameters for creating or editing a category.
// Only the az name is required.
type CategoryInput struct {
	Name     map[domain.Lang]string `json:"name"`
	Slug     string                 `json:"slug"`
	ImageURL string                 `json:"img"`
	ParentID string                 `json:"parentId"`
}

// --- Products ---

// CreateProduct creates a product in the named category and then attaches
// its specs and variants. The category is matched by plain name or by any of
// its localized names. Price and stock come from the first valid variant.
func (s *AdminService) CreateProduct(ctx context.Context, in CreateProductInput) (domain.Product, error) {
	name := strings.TrimSpace(in.Name)
	category := strings.TrimSpace(in.Category)
	if name == "" {
		return domain.Product{}, apperrors.InvalidInput("product name is required")
	}
	if category == "" {
		return domain.Product{}, apperrors.InvalidInput("a category must be selected")
	}
	if len(in.Variants) == 0 {
		return domain.Product{}, apperrors.InvalidInput("at least one variant is required")
	}
	if !hasPricedVariant(in.Variants) {
		return domain.Product{}, apperrors.InvalidInput("at least one variant must have a price greater than 0")
	}

	categories, err := s.backend.ListCategories(ctx, "")
	if err != nil {
		return domain.Product{}, fmt.Errorf("load categories: %w", err)
	}
	cat, ok := findCategory(categories, category)
	if !ok {
		return domain.Product{}, apperrors.InvalidInput(fmt.Sprintf("category %q not found", category))
	}
	categoryID, ok := cat.ID.Int()
	if !ok {
		return domain.Product{}, apperrors.InvalidInput(fmt.Sprintf("category %q has a non-numeric id", category))
	}

	specs := prepareSpecs(in.Specs)
	variants := prepareVariants(in.Variants)

	base := strings.TrimSpace(in.Slug)
	if base == "" {
		base = name
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = DefaultDescription
	}
	img := in.Img
	if img == "" {
		img = PlaceholderImage
	}
	price, stock := in.Price, in.Stock
	if len(variants) > 0 {
		price, stock = variants[0].Price, variants[0].Stock
	}

	created, err := s.backend.CreateProduct(ctx, categoryID, backend.ProductInput{
		Name:        name,
		Slug:        slug.Unique(base, s.now()),
		Description: []string{description},
		Img:         img,
		Price:       price,
		Stock:       stock,
	})
	if err != nil {
		return domain.Product{}, err
	}

	// The product exists from here on, so the catalog is stale even if a
	// child call fails.
	defer s.cache.Invalidate()

	if err := s.attachChildren(ctx, created.ID, specs, variants); err != nil {
		return created, err
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", created.ID.String()),
		slog.Int("category_id", categoryID),
		slog.Int("specs", len(specs)),
		slog.Int("variants", len(variants)),
	)
	return created, nil
}

// UpdateProduct edits a product and adds the listed specs and variants.
// A blank slug keeps the current one.
func (s *AdminService) UpdateProduct(ctx context.Context, id domain.ID, in UpdateProductInput) (domain.Product, error) {
	if id == "" {
		return domain.Product{}, apperrors.InvalidInput("product id is required")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Product{}, apperrors.InvalidInput("product name is required")
	}
	price := in.Price.Float()
	if !in.Price.Valid() || price < 0 {
		return domain.Product{}, apperrors.InvalidInput("price must be a non-negative number")
	}
	stock := in.Stock.Float()
	if !in.Stock.Valid() || stock < 0 || stock != math.Trunc(stock) {
		return domain.Product{}, apperrors.InvalidInput("stock must be a non-negative integer")
	}

	productSlug := strings.TrimSpace(in.Slug)
	if productSlug == "" {
		existing, err := s.backend.GetProduct(ctx, id)
		if err != nil {
			return domain.Product{}, err
		}
		productSlug = existing.Slug
	}

	updated, err := s.backend.UpdateProduct(ctx, id, backend.ProductInput{
		Name:        name,
		Slug:        productSlug,
		Description: cleanDescription(in.Description),
		Img:         in.Img,
		Price:       price,
		Stock:       int(stock),
		IsActive:    in.IsActive,
	})
	if err != nil {
		return domain.Product{}, err
	}
	defer s.cache.Invalidate()

	if err := s.attachChildren(ctx, id, prepareSpecs(in.Specs), prepareVariants(in.Variants)); err != nil {
		return updated, err
	}

	s.logger.InfoContext(ctx, "product updated", slog.String("product_id", id.String()))
	return updated, nil
}

// DeleteProduct deletes a product.
func (s *AdminService) DeleteProduct(ctx context.Context, id domain.ID) error {
	if id == "" {
		return apperrors.InvalidInput("product id is required")
	}
	if err := s.backend.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate()
	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id.String()))
	return nil
}

// attachChildren creates specs, then variants, each fanned out with at most
// childCallLimit calls in flight. The first failure cancels the rest of its
// batch.
func (s *AdminService) attachChildren(ctx context.Context, productID domain.ID, specs []backend.SpecInput, variants []backend.VariantInput) error {
	if err := fanOut(ctx, specs, func(ctx context.Context, spec backend.SpecInput) error {
		return s.backend.CreateSpec(ctx, productID, spec)
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to create product specs",
			slog.String("product_id", productID.String()),
			slog.String("error", err.Error()),
		)
		return apperrors.Server("specs could not be created", err)
	}

	if err := fanOut(ctx, variants, func(ctx context.Context, v backend.VariantInput) error {
		return s.backend.CreateVariant(ctx, productID, v)
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to create product variants",
			slog.String("product_id", productID.String()),
			slog.String("error", err.Error()),
		)
		return apperrors.Server("variants could not be created", err)
	}
	return nil
}

func fanOut[T any](ctx context.Context, items []T, fn func(context.Context, T) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(childCallLimit)
	for _, item := range items {
		g.Go(func() error {
			return fn(gctx, item)
		})
	}
	return g.Wait()
}

// --- Categories ---

// CreateCategory creates a category. A category whose name matches
// case-insensitively, or whose slug is equal, already exists.
func (s *AdminService) CreateCategory(ctx context.Context, in CategoryInput) (domain.Category, error) {
	name := strings.TrimSpace(in.Name[domain.LangAZ])
	if name == "" {
		return domain.Category{}, apperrors.InvalidInput("category name is required")
	}
	categorySlug := categorySlug(in.Slug, name)

	existing, err := s.backend.ListCategories(ctx, "")
	if err != nil {
		return domain.Category{}, fmt.Errorf("load categories: %w", err)
	}
	for _, c := range existing {
		if strings.EqualFold(c.Name.Resolve(domain.LangAZ), name) || c.Slug == categorySlug {
			return domain.Category{}, apperrors.InvalidInput(fmt.Sprintf("category %q already exists", name))
		}
	}

	created, err := s.backend.CreateCategory(ctx, categoryBody(in, name, categorySlug))
	if err != nil {
		return domain.Category{}, err
	}
	s.cache.Invalidate()

	s.logger.InfoContext(ctx, "category created",
		slog.String("category_id", created.ID.String()),
		slog.String("slug", categorySlug),
	)
	return created, nil
}

// UpdateCategory edits a category.
func (s *AdminService) UpdateCategory(ctx context.Context, id domain.ID, in CategoryInput) (domain.Category, error) {
	if id == "" {
		return domain.Category{}, apperrors.InvalidInput("category id is required")
	}
	name := strings.TrimSpace(in.Name[domain.LangAZ])
	if name == "" {
		return domain.Category{}, apperrors.InvalidInput("category name is required")
	}

	updated, err := s.backend.UpdateCategory(ctx, id, categoryBody(in, name, categorySlug(in.Slug, name)))
	if err != nil {
		return domain.Category{}, err
	}
	s.cache.Invalidate()
	s.logger.InfoContext(ctx, "category updated", slog.String("category_id", id.String()))
	return updated, nil
}

// DeleteCategory deletes a category.
func (s *AdminService) DeleteCategory(ctx context.Context, id domain.ID) error {
	if id == "" {
		return apperrors.InvalidInput("category id is required")
	}
	if err := s.backend.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate()
	s.logger.InfoContext(ctx, "category deleted", slog.String("category_id", id.String()))
	return nil
}

// --- Users and media ---

// ListUsers returns every account.
func (s *AdminService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.backend.ListUsers(ctx)
}

// UploadImage stores an image and returns its URL.
func (s *AdminService) UploadImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	url, err := s.backend.UploadImage(ctx, filename, r)
	if err != nil {
		s.logger.WarnContext(ctx, "image upload failed",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
		return "", err
	}
	return url, nil
}

// --- helpers ---

func hasPricedVariant(variants []VariantInput) bool {
	for _, v := range variants {
		if v.Price > 0 {
			return true
		}
	}
	return false
}

// findCategory matches name against a category's plain name or any of its
// localized names.
func findCategory(categories []domain.Category, name string) (domain.Category, bool) {
	for _, c := range categories {
		if c.Name.Matches(name) {
			return c, true
		}
	}
	return domain.Category{}, false
}

// prepareSpecs keeps spec groups with a key, a name and at least one value,
// trimmed, with blank values dropped.
func prepareSpecs(in []SpecInput) []backend.SpecInput {
	out := make([]backend.SpecInput, 0, len(in))
	for _, spec := range in {
		key, name := strings.TrimSpace(spec.Key), strings.TrimSpace(spec.Name)
		if key == "" || name == "" || len(spec.Values) == 0 {
			continue
		}
		values := make([]backend.SpecValueInput, 0, len(spec.Values))
		for _, v := range spec.Values {
			if strings.TrimSpace(v.Key) == "" || strings.TrimSpace(v.Value) == "" {
				continue
			}
			values = append(values, backend.SpecValueInput{Key: v.Key, Value: v.Value})
		}
		out = append(out, backend.SpecInput{Key: key, Name: name, Values: values})
	}
	return out
}

// prepareVariants keeps variants with a slug, a positive price and a
// non-negative stock. Blank variant specs are dropped.
func prepareVariants(in []VariantInput) []backend.VariantInput {
	out := make([]backend.VariantInput, 0, len(in))
	for _, v := range in {
		variantSlug := strings.TrimSpace(v.Slug)
		if variantSlug == "" || v.Price <= 0 || v.Stock < 0 {
			continue
		}
		specs := make([]domain.VariantSpec, 0, len(v.Specs))
		for _, sp := range v.Specs {
			if strings.TrimSpace(sp.Key) == "" || strings.TrimSpace(sp.Value) == "" {
				continue
			}
			specs = append(specs, sp)
		}
		images := v.Images
		if images == nil {
			images = []string{}
		}
		out = append(out, backend.VariantInput{
			Slug:     variantSlug,
			Price:    v.Price,
			Stock:    v.Stock,
			Discount: v.Discount,
			Images:   images,
			Specs:    specs,
		})
	}
	return out
}

// cleanDescription keeps paragraphs of at least three characters, falling
// back to DefaultDescription.
func cleanDescription(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if len([]rune(p)) >= minDescriptionLength {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{DefaultDescription}
	}
	return out
}

// categorySlug is the given slug, or the lowercased name with runs of
// whitespace turned into dashes.
func categorySlug(given, name string) string {
	if s := strings.TrimSpace(given); s != "" {
		return s
	}
	return whitespace.ReplaceAllString(strings.ToLower(name), "-")
}

func categoryBody(in CategoryInput, name, categorySlug string) backend.CategoryInput {
	img := in.ImageURL
	if img == "" {
		img = PlaceholderCategoryImage
	}
	var parent *domain.ID
	if p := strings.TrimSpace(in.ParentID); p != "" {
		id := domain.ID(p)
		parent = &id
	}
	return backend.CategoryInput{
		Name:     domain.Text(name),
		Slug:     categorySlug,
		ImageURL: img,
		ParentID: parent,
	}
}
