package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCategory = errors.New("invalid category")
	ErrNegativePrice   = errors.New("price must not be negative")
	ErrNegativeStock   = errors.New("stock must not be negative")
)

// Category is the product line a catalog item belongs to
type Category string

const (
	CategoryMagazines  Category = "magazines"
	CategoryJournals   Category = "journals"
	CategoryScrapbooks Category = "scrapbooks"
	CategoryTools      Category = "tools"
)

// Categories lists every category in display order
var Categories = []Category{CategoryMagazines, CategoryJournals, CategoryScrapbooks, CategoryTools}

// ParseCategory accepts both plural and singular spellings ("journal", "journals").
func ParseCategory(s string) (Category, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories {
		if v == string(c) || v+"s" == string(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// Singular returns the category name without the trailing "s"
func (c Category) Singular() string {
	return strings.TrimSuffix(string(c), "s")
}

// Product represents a catalog item
type Product struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Slug           string          `json:"slug"`
	Description    string          `json:"description"`
	Price          decimal.Decimal `json:"price"`
	Category       Category        `json:"category"`
	Image          string          `json:"image"`
	Stock          int             `json:"stock"`
	Customizable   bool            `json:"customizable"`
	Colors         []string        `json:"colors,omitempty"`
	Designs        []string        `json:"designs,omitempty"`
	Keywords       []string        `json:"keywords,omitempty"`
	SEOTitle       string          `json:"seoTitle,omitempty"`
	SEODescription string          `json:"seoDescription,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Validate checks the product invariants and normalises the category to
// its plural form.
func (p *Product) Validate() error {
	if p.Price.IsNegative() {
		return ErrNegativePrice
	}
	if p.Stock < 0 {
		return ErrNegativeStock
	}
	c, err := ParseCategory(string(p.Category))
	if err != nil {
		return err
	}
	p.Category = c
	return nil
}

// ProductPatch carries a partial product update; nil fields are left alone.
type ProductPatch struct {
	Name           *string
	Slug           *string
	Description    *string
	Price          *decimal.Decimal
	Category       *Category
	Image          *string
	Stock          *int
	Customizable   *bool
	Colors         *[]string
	Designs        *[]string
	Keywords       *[]string
	SEOTitle       *string
	SEODescription *string
}

// Apply writes the patch onto p and re-checks the invariants
func (patch ProductPatch) Apply(p *Product) error {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Slug != nil {
		p.Slug = *patch.Slug
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Image != nil {
		p.Image = *patch.Image
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.Customizable != nil {
		p.Customizable = *patch.Customizable
	}
	if patch.Colors != nil {
		p.Colors = *patch.Colors
	}
	if patch.Designs != nil {
		p.Designs = *patch.Designs
	}
	if patch.Keywords != nil {
		p.Keywords = *patch.Keywords
	}
	if patch.SEOTitle != nil {
		p.SEOTitle = *patch.SEOTitle
	}
	if patch.SEODescription != nil {
		p.SEODescription = *patch.SEODescription
	}
	return p.Validate()
}

// MatchesSearch reports whether the product matches a free-text search:
// name or description contain the text, or any keyword does (case-insensitive).
func (p *Product) MatchesSearch(text string) bool {
	q := strings.ToLower(strings.TrimSpace(text))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q) {
		return true
	}
	for _, k := range p.Keywords {
		if strings.Contains(strings.ToLower(k), q) {
			return true
		}
	}
	return false
}
