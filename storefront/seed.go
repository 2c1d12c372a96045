package storefront

import (
	"context"

	"github.com/openmarket/marketplace/catalog"
	"github.com/openmarket/marketplace/core"
)

// DemoProducts returns one sample product per category.
func DemoProducts() []catalog.ProductDraft {
	return []catalog.ProductDraft{
		{Name: "Smartphone", Price: "699.00", Emoji: "📱", Category: catalog.CategoryElectronics, Description: "6.1 inch display, 128 GB"},
		{Name: "Laptop", Price: "1299.99", Emoji: "💻", Category: catalog.CategoryElectronics, Description: "14 inch ultrabook"},
		{Name: "T-Shirt", Price: "19.99", Emoji: "👕", Category: catalog.CategoryClothing, Description: "Organic cotton"},
		{Name: "Summer Dress", Price: "49.50", Emoji: "👗", Category: catalog.CategoryClothing},
		{Name: "Running Shoes", Price: "89.00", Emoji: "👟", Category: catalog.CategoryShoes, Description: "Lightweight trainers"},
		{Name: "Burger", Price: "8.50", Emoji: "🍔", Category: catalog.CategoryFood},
		{Name: "Pizza", Price: "12.00", Emoji: "🍕", Category: catalog.CategoryFood, Description: "Margherita"},
		{Name: "Coffee", Price: "3.25", Emoji: "☕", Category: catalog.CategoryFood},
		{Name: "Diamond Ring", Price: "2499.00", Emoji: "💎", Category: catalog.CategoryAccessories},
	}
}

// Seed adds drafts to the catalog and saves every slot. When nobody is
// logged in the seed runs as username, which is then logged in. Every
// draft is validated before any is added.
func (c *Controller) Seed(ctx context.Context, username string, drafts []catalog.ProductDraft) ([]catalog.Product, SaveResult, error) {
	const op = "storefront.Seed"

	ctx, span := c.telemetry.StartSpan(ctx, "storefront.seed")
	defer span.End()

	for _, d := range drafts {
		if _, err := d.Validate(); err != nil {
			span.RecordError(err)
			return nil, SaveResult{}, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.gate.LoggedIn() {
		c.gate.Restore(username)
		if !c.gate.LoggedIn() {
			return nil, SaveResult{}, &core.MarketError{Op: op, Kind: "session", Err: core.ErrNotLoggedIn}
		}
	}

	added := make([]catalog.Product, 0, len(drafts))
	for _, d := range drafts {
		p, err := c.catalog.Add(d)
		if err != nil {
			return added, SaveResult{}, err
		}
		added = append(added, p)
	}

	res := c.save(ctx, allSlots...)
	span.SetAttribute("seeded", len(added))
	c.logger.InfoWithContext(ctx, "Catalog seeded", map[string]interface{}{
		"username": c.gate.Username(),
		"products": len(added),
	})
	return added, res, nil
}
