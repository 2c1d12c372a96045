package catalog

import (
	"github.com/openmarket/marketplace/core"
)

// maxIDAttempts bounds how many ids Add draws before giving up on a source
// that keeps returning ids already in the catalog.
const maxIDAttempts = 8

// Catalog is the ordered product collection. Insertion order is display
// order. It is not safe for concurrent use; the storefront controller
// serializes access.
type Catalog struct {
	products []Product
	newID    func() string
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithIDGenerator replaces the id source. Tests use it for stable ids.
func WithIDGenerator(gen func() string) Option {
	return func(c *Catalog) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// New creates an empty catalog.
func New(opts ...Option) *Catalog {
	c := &Catalog{newID: NewID}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add validates the draft, assigns a fresh id and appends the product.
// On error nothing changes.
func (c *Catalog) Add(draft ProductDraft) (Product, error) {
	p, err := draft.Validate()
	if err != nil {
		return Product{}, err
	}

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := c.newID()
		if id != "" && c.index(id) < 0 {
			p.ID = id
			c.products = append(c.products, p)
			return p, nil
		}
	}
	return Product{}, &core.MarketError{Op: "catalog.Add", Kind: "catalog", Err: core.ErrDuplicateID}
}

// Update replaces the mutable fields of the product with the given id,
// keeping its id and position. An unknown id is reported as
// core.ErrProductNotFound.
func (c *Catalog) Update(id string, draft ProductDraft) (Product, error) {
	const op = "catalog.Update"

	i := c.index(id)
	if i < 0 {
		return Product{}, &core.MarketError{Op: op, Kind: "catalog", ID: id, Err: core.ErrProductNotFound}
	}

	p, err := draft.Validate()
	if err != nil {
		return Product{}, err
	}

	p.ID = id
	c.products[i] = p
	return p, nil
}

// Delete removes the product with the given id and reports whether one
// was removed.
func (c *Catalog) Delete(id string) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.products = append(c.products[:i], c.products[i+1:]...)
	return true
}

// Get returns the product with the given id.
func (c *Catalog) Get(id string) (Product, bool) {
	i := c.index(id)
	if i < 0 {
		return Product{}, false
	}
	return c.products[i], true
}

// Filter returns the products of one category in catalog order, or every
// product for CategoryAll. The result is a copy.
func (c *Catalog) Filter(category Category) []Product {
	if category == CategoryAll || category == "" {
		return c.Products()
	}
	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// Products returns a copy of the whole catalog.
func (c *Catalog) Products() []Product {
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}

// Replace swaps in a loaded product list. Records without an id are dropped.
func (c *Catalog) Replace(products []Product) {
	c.products = c.products[:0]
	for _, p := range products {
		if p.ID == "" || c.index(p.ID) >= 0 {
			continue
		}
		c.products = append(c.products, p)
	}
}

// Reset empties the catalog.
func (c *Catalog) Reset() {
	c.products = nil
}

func (c *Catalog) index(id string) int {
	for i, p := range c.products {
		if p.ID == id {
			return i
		}
	}
	return -1
}
