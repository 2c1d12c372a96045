// Package catalog holds the product catalog of the storefront: the product
// record, the validated draft used to create or edit one, and the ordered
// store of products owned by the active session.
package catalog

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openmarket/marketplace/core"
)

// Category is one of the fixed product categories.
type Category string

const (
	CategoryElectronics Category = "electronics"
	CategoryClothing    Category = "clothing"
	CategoryFood        Category = "food"
	CategoryShoes       Category = "shoes"
	CategoryAccessories Category = "accessories"
	CategoryOther       Category = "other"

	// CategoryAll is the filter sentinel selecting every product.
	CategoryAll Category = "all"

	DefaultCategory = CategoryElectronics
)

// Categories lists the product categories in display order.
var Categories = []Category{
	CategoryElectronics,
	CategoryClothing,
	CategoryFood,
	CategoryShoes,
	CategoryAccessories,
	CategoryOther,
}

var categoryLabels = map[Category]string{
	CategoryAll:         "All Items",
	CategoryElectronics: "🔌 Electronics",
	CategoryClothing:    "👕 Clothing",
	CategoryFood:        "🍔 Food",
	CategoryShoes:       "👟 Shoes",
	CategoryAccessories: "💎 Accessories",
	CategoryOther:       "📦 Other",
}

// Valid reports whether c is a product category. The "all" sentinel is not.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Label returns the display label, or the raw value for unknown categories.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// Emojis is the fixed icon set a product may use.
var Emojis = []string{"📱", "💻", "👕", "👗", "👟", "🍔", "🍕", "☕", "💎"}

// DefaultEmoji is preselected on a fresh draft.
const DefaultEmoji = "📱"

// ValidEmoji reports whether e belongs to the icon set.
func ValidEmoji(e string) bool {
	for _, known := range Emojis {
		if e == known {
			return true
		}
	}
	return false
}

// Product is a catalog record. ID never changes once assigned.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Emoji       string          `json:"emoji"`
	Category    Category        `json:"category"`
	Description string          `json:"description"`
}

// ProductDraft is the add/edit form. Price arrives as text and is parsed
// during validation.
type ProductDraft struct {
	Name        string   `json:"name"`
	Price       string   `json:"price"`
	Emoji       string   `json:"emoji"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
}

// NewDraft returns an empty draft with the form defaults.
func NewDraft() ProductDraft {
	return ProductDraft{Emoji: DefaultEmoji, Category: DefaultCategory}
}

// DraftFrom fills a draft from an existing product, as the edit form does.
func DraftFrom(p Product) ProductDraft {
	return ProductDraft{
		Name:        p.Name,
		Price:       p.Price.String(),
		Emoji:       p.Emoji,
		Category:    p.Category,
		Description: p.Description,
	}
}

// Validate checks the draft and returns the product fields it describes,
// without an ID.
func (d ProductDraft) Validate() (Product, error) {
	const op = "catalog.ProductDraft.Validate"

	name := strings.TrimSpace(d.Name)
	if name == "" {
		return Product{}, core.NewValidationError(op, "name", core.ErrValidation)
	}
	priceText := strings.TrimSpace(d.Price)
	if priceText == "" {
		return Product{}, core.NewValidationError(op, "price", core.ErrValidation)
	}
	price, err := decimal.NewFromString(priceText)
	if err != nil || price.IsNegative() {
		return Product{}, core.NewValidationError(op, "price", core.ErrInvalidPrice)
	}

	emoji := d.Emoji
	if emoji == "" {
		emoji = DefaultEmoji
	}
	if !ValidEmoji(emoji) {
		return Product{}, core.NewValidationError(op, "emoji", core.ErrInvalidEmoji)
	}

	category := d.Category
	if category == "" {
		category = DefaultCategory
	}
	if !category.Valid() {
		return Product{}, core.NewValidationError(op, "category", core.ErrInvalidCategory)
	}

	return Product{
		Name:        name,
		Price:       price,
		Emoji:       emoji,
		Category:    category,
		Description: d.Description,
	}, nil
}

// NewID returns a fresh product id. UUIDv7 embeds a millisecond timestamp
// followed by random bits, so ids sort by creation time and never collide
// when two products are added within the same millisecond.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
