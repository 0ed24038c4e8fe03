package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront-service/internal/bootstrap"
	"storefront-service/internal/model"
	"storefront-service/internal/store"
	"storefront-service/pkg/logger"
)

// slugAttempts bounds the "-2", "-3" suffixes tried for a derived slug
const slugAttempts = 5

// ProductRequest defines the structure for product creation requests
type ProductRequest struct {
	Name           string          `json:"name" validate:"required"`
	Slug           string          `json:"slug"`
	Description    string          `json:"description" validate:"required"`
	Price          decimal.Decimal `json:"price"`
	Category       string          `json:"category" validate:"required"`
	Image          string          `json:"image"`
	Stock          int             `json:"stock" validate:"min=0"`
	Customizable   bool            `json:"customizable"`
	Colors         []string        `json:"colors"`
	Designs        []string        `json:"designs"`
	Keywords       []string        `json:"keywords"`
	SEOTitle       string          `json:"seoTitle"`
	SEODescription string          `json:"seoDescription"`
}

// ProductPatchRequest is a partial update; absent fields are left alone
type ProductPatchRequest struct {
	Name           *string          `json:"name" validate:"omitempty,min=1"`
	Slug           *string          `json:"slug"`
	Description    *string          `json:"description"`
	Price          *decimal.Decimal `json:"price"`
	Category       *string          `json:"category"`
	Image          *string          `json:"image"`
	Stock          *int             `json:"stock" validate:"omitempty,min=0"`
	Customizable   *bool            `json:"customizable"`
	Colors         *[]string        `json:"colors"`
	Designs        *[]string        `json:"designs"`
	Keywords       *[]string        `json:"keywords"`
	SEOTitle       *string          `json:"seoTitle"`
	SEODescription *string          `json:"seoDescription"`
}

func (r ProductPatchRequest) patch() (model.ProductPatch, error) {
	p := model.ProductPatch{
		Name:           r.Name,
		Slug:           r.Slug,
		Description:    r.Description,
		Price:          r.Price,
		Image:          r.Image,
		Stock:          r.Stock,
		Customizable:   r.Customizable,
		Colors:         r.Colors,
		Designs:        r.Designs,
		Keywords:       r.Keywords,
		SEOTitle:       r.SEOTitle,
		SEODescription: r.SEODescription,
	}
	if r.Category != nil {
		c, err := model.ParseCategory(*r.Category)
		if err != nil {
			return p, err
		}
		p.Category = &c
	}
	return p, nil
}

// ListProducts handles retrieving products with optional category and search filters
func (h *Handler) ListProducts(c echo.Context) error {
	log := logger.FromEcho(c)

	var filter store.ProductFilter
	if category := c.QueryParam("category"); category != "" {
		parsed, err := model.ParseCategory(category)
		if err != nil {
			return fail(c, "Invalid category filter", err, zap.String("category", category))
		}
		filter.Category = parsed
	}
	filter.Search = c.QueryParam("search")

	ctx, cancel := h.requestContext(c)
	defer cancel()

	products, err := h.store.Products().List(ctx, filter)
	if err != nil {
		return fail(c, "Failed to list products", err)
	}

	log.Debug("Products retrieved successfully",
		zap.Int("count", len(products)),
		zap.String("category", string(filter.Category)),
		zap.String("search", filter.Search))
	return respond(c, http.StatusOK, products)
}

// GetProduct handles retrieving a single product by ID
func (h *Handler) GetProduct(c echo.Context) error {
	id := c.Param("id")

	ctx, cancel := h.requestContext(c)
	defer cancel()

	product, err := h.store.Products().Get(ctx, id)
	if err != nil {
		return fail(c, "Product not found", err, zap.String("product_id", id))
	}
	return respond(c, http.StatusOK, product)
}

func (h *Handler) GetProductBySlug(c echo.Context) error {
	slug := c.Param("slug")

	ctx, cancel := h.requestContext(c)
	defer cancel()

	product, err := h.store.Products().GetBySlug(ctx, slug)
	if err != nil {
		return fail(c, "Product not found", err, zap.String("slug", slug))
	}
	return respond(c, http.StatusOK, product)
}

// CreateProduct handles creating a new product
func (h *Handler) CreateProduct(c echo.Context) error {
	log := logger.FromEcho(c)

	var req ProductRequest
	if err := bindAndValidate(c, &req); err != nil {
		return fail(c, "Invalid product request", err)
	}

	category, err := model.ParseCategory(req.Category)
	if err != nil {
		return fail(c, "Invalid product category", err, zap.String("category", req.Category))
	}

	product := &model.Product{
		Name:           req.Name,
		Slug:           req.Slug,
		Description:    req.Description,
		Price:          req.Price,
		Category:       category,
		Image:          req.Image,
		Stock:          req.Stock,
		Customizable:   req.Customizable,
		Colors:         req.Colors,
		Designs:        req.Designs,
		Keywords:       req.Keywords,
		SEOTitle:       req.SEOTitle,
		SEODescription: req.SEODescription,
	}
	if err := product.Validate(); err != nil {
		return fail(c, "Invalid product", err)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.createWithSlug(ctx, product, req.Slug == ""); err != nil {
		return fail(c, "Failed to create product", err, zap.String("name", req.Name), zap.String("slug", product.Slug))
	}

	log.Info("Product created successfully",
		zap.String("product_id", product.ID),
		zap.String("name", product.Name),
		zap.String("slug", product.Slug))
	return respond(c, http.StatusCreated, product)
}

// createWithSlug stores p, deriving its slug from the name when asked and
// suffixing it until it is unique.
func (h *Handler) createWithSlug(ctx context.Context, p *model.Product, derive bool) error {
	if !derive {
		return h.store.Products().Create(ctx, p)
	}

	base := bootstrap.SlugFor(p.Name)
	p.Slug = base
	var err error
	for i := 1; i <= slugAttempts; i++ {
		if i > 1 {
			p.Slug = fmt.Sprintf("%s-%d", base, i)
		}
		err = h.store.Products().Create(ctx, p)
		if base == "" || !errors.Is(err, store.ErrConflict) {
			return err
		}
	}
	return err
}

// UpdateProduct handles a partial update of an existing product
func (h *Handler) UpdateProduct(c echo.Context) error {
	log := logger.FromEcho(c)
	id := c.Param("id")

	var req ProductPatchRequest
	if err := bindAndValidate(c, &req); err != nil {
		return fail(c, "Invalid product update", err, zap.String("product_id", id))
	}
	patch, err := req.patch()
	if err != nil {
		return fail(c, "Invalid product update", err, zap.String("product_id", id))
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	product, err := h.store.Products().Update(ctx, id, patch)
	if err != nil {
		return fail(c, "Failed to update product", err, zap.String("product_id", id))
	}

	log.Info("Product updated successfully",
		zap.String("product_id", id),
		zap.String("name", product.Name),
		zap.Int("stock", product.Stock))
	return respond(c, http.StatusOK, product)
}

// DeleteProduct handles deleting a product
func (h *Handler) DeleteProduct(c echo.Context) error {
	id := c.Param("id")

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.store.Products().Delete(ctx, id); err != nil {
		return fail(c, "Failed to delete product", err, zap.String("product_id", id))
	}

	logger.FromEcho(c).Info("Product deleted successfully", zap.String("product_id", id))
	return respondMessage(c, http.StatusOK, "Product deleted successfully")
}
