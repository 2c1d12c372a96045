package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openmarket/marketplace/cart"
	"github.com/openmarket/marketplace/catalog"
	"github.com/openmarket/marketplace/core"
	"github.com/openmarket/marketplace/resilience"
)

// Storage slots. Keys are namespaced by the storage backend.
const (
	SlotAuth     = "auth"
	SlotProducts = "products"
	SlotCart     = "cart"
)

var allSlots = []string{SlotAuth, SlotProducts, SlotCart}

// errNoChange marks a mutation that left state untouched.
var errNoChange = errors.New("no change")

// SaveResult reports the outcome of the save step that follows a mutation.
// The in-memory mutation stands even when Err is set.
type SaveResult struct {
	// Slots lists the slots written, or erased when Erased is set.
	Slots []string `json:"slots,omitempty"`
	// Skipped is set when nobody is logged in and nothing was written.
	Skipped bool  `json:"skipped,omitempty"`
	Erased  bool  `json:"erased,omitempty"`
	Err     error `json:"-"`
}

// OK reports whether every requested slot was persisted.
func (r SaveResult) OK() bool {
	return r.Err == nil
}

// Load restores session, catalog and cart from storage. Missing slots leave
// the matching store empty; malformed slots are logged and treated as empty.
// Only a storage failure is returned.
func (c *Controller) Load(ctx context.Context) error {
	ctx, span := c.telemetry.StartSpan(ctx, "storefront.load")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	raw := make(map[string]string, len(allSlots))
	for _, slot := range allSlots {
		v, err := c.storage.Get(ctx, slot)
		if err != nil {
			span.RecordError(err)
			c.logger.ErrorWithContext(ctx, "Failed to load slot", map[string]interface{}{
				"slot":  slot,
				"error": err.Error(),
			})
			return fmt.Errorf("load %s: %w", slot, err)
		}
		raw[slot] = v
	}

	var products []catalog.Product
	if !c.decode(ctx, SlotProducts, raw[SlotProducts], &products) {
		products = nil
	}
	var items []cart.Item
	if !c.decode(ctx, SlotCart, raw[SlotCart], &items) {
		items = nil
	}

	c.gate.Restore(raw[SlotAuth])
	c.catalog.Replace(products)
	c.cart.Replace(items)

	span.SetAttribute("products", c.catalog.Len())
	span.SetAttribute("cart_lines", c.cart.Len())
	c.logger.InfoWithContext(ctx, "Storefront state loaded", map[string]interface{}{
		"logged_in":  c.gate.LoggedIn(),
		"products":   c.catalog.Len(),
		"cart_lines": c.cart.Len(),
	})
	return nil
}

func (c *Controller) decode(ctx context.Context, slot, raw string, v interface{}) bool {
	if raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		c.logger.WarnWithContext(ctx, "Ignoring malformed stored data", map[string]interface{}{
			"slot":  slot,
			"error": err.Error(),
		})
		return false
	}
	return true
}

// StoredSlots lists the slots currently present in storage.
func (c *Controller) StoredSlots(ctx context.Context) ([]string, error) {
	present := make([]string, 0, len(allSlots))
	for _, slot := range allSlots {
		ok, err := c.storage.Exists(ctx, slot)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", slot, err)
		}
		if ok {
			present = append(present, slot)
		}
	}
	return present, nil
}

// Save writes the given slots, or all of them when none are named.
func (c *Controller) Save(ctx context.Context, slots ...string) SaveResult {
	if len(slots) == 0 {
		slots = allSlots
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save(ctx, slots...)
}

// save must be called with c.mu held. Writes happen only while a user is
// logged in.
func (c *Controller) save(ctx context.Context, slots ...string) SaveResult {
	if !c.gate.LoggedIn() {
		return SaveResult{Skipped: true}
	}

	ctx, span := c.telemetry.StartSpan(ctx, "storefront.save")
	defer span.End()

	var res SaveResult
	var errs []error
	for _, slot := range slots {
		value, err := c.encode(slot)
		if err == nil {
			err = resilience.Retry(ctx, c.retry, func() error {
				return c.guard(ctx, func(ctx context.Context) error {
					return c.storage.Set(ctx, slot, value)
				})
			}, resilience.WithLogger(c.logger, "save."+slot))
		}

		status := "ok"
		if err != nil {
			status = "error"
			errs = append(errs, fmt.Errorf("save %s: %w", slot, err))
			c.logger.ErrorWithContext(ctx, "Failed to save slot", map[string]interface{}{
				"slot":  slot,
				"error": err.Error(),
			})
		} else {
			res.Slots = append(res.Slots, slot)
		}
		c.telemetry.RecordMetric("marketplace.saves", 1, map[string]string{"slot": slot, "status": status})
	}

	if len(errs) > 0 {
		res.Err = errors.Join(errs...)
		span.RecordError(res.Err)
	}
	return res
}

// erase deletes every slot regardless of session state.
func (c *Controller) erase(ctx context.Context) SaveResult {
	err := resilience.Retry(ctx, c.retry, func() error {
		return c.guard(ctx, func(ctx context.Context) error {
			return c.storage.Delete(ctx, allSlots...)
		})
	}, resilience.WithLogger(c.logger, "erase"))

	status := "ok"
	if err != nil {
		status = "error"
		c.logger.ErrorWithContext(ctx, "Failed to erase stored state", map[string]interface{}{
			"error": err.Error(),
		})
	}
	c.telemetry.RecordMetric("marketplace.saves", 1, map[string]string{"slot": "all", "status": status})

	if err != nil {
		return SaveResult{Erased: true, Err: fmt.Errorf("erase: %w", err)}
	}
	return SaveResult{Slots: append([]string(nil), allSlots...), Erased: true}
}

// guard runs a storage write through the circuit breaker when one is set.
func (c *Controller) guard(ctx context.Context, fn func(context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	return c.breaker.Execute(ctx, fn)
}

func (c *Controller) encode(slot string) (string, error) {
	switch slot {
	case SlotAuth:
		return c.gate.Username(), nil
	case SlotProducts:
		b, err := json.Marshal(c.catalog.Products())
		return string(b), err
	case SlotCart:
		b, err := json.Marshal(c.cart.Items())
		return string(b), err
	default:
		return "", fmt.Errorf("unknown slot %q: %w", slot, core.ErrInvalidConfiguration)
	}
}
