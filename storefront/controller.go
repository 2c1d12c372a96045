// Package storefront owns the application state of the marketplace: the
// session gate, the catalog and the cart. Every operation runs under one
// lock, and each successful mutation is followed by an explicit save whose
// outcome is returned to the caller.
package storefront

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openmarket/marketplace/cart"
	"github.com/openmarket/marketplace/catalog"
	"github.com/openmarket/marketplace/core"
	"github.com/openmarket/marketplace/resilience"
	"github.com/openmarket/marketplace/session"
)

// DefaultNotificationTTL is how long a checkout confirmation stays visible.
const DefaultNotificationTTL = 5 * time.Second

// Controller is the single owner of session, catalog and cart state.
type Controller struct {
	mu sync.Mutex

	gate    *session.Gate
	catalog *catalog.Catalog
	cart    *cart.Cart

	storage         core.Storage
	logger          core.Logger
	telemetry       core.Telemetry
	retry           *core.RetryConfig
	breaker         *resilience.CircuitBreaker
	breakerSettings *core.CircuitBreakerConfig

	loginDelay      time.Duration
	notificationTTL time.Duration
	defaultPayment  cart.PaymentMethod
	catalogOpts     []catalog.Option

	notice      *Notification
	noticeTimer *time.Timer
	noticeSeq   uint64
	closed      bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. Component-aware loggers are scoped to
// "storefront".
func WithLogger(logger core.Logger) Option {
	return func(c *Controller) {
		if logger == nil {
			return
		}
		if cal, ok := logger.(core.ComponentAwareLogger); ok {
			c.logger = cal.WithComponent("storefront")
			return
		}
		c.logger = logger
	}
}

// WithTelemetry sets the span and metric sink.
func WithTelemetry(t core.Telemetry) Option {
	return func(c *Controller) {
		if t != nil {
			c.telemetry = t
		}
	}
}

// WithRetry sets the retry policy for storage writes.
func WithRetry(cfg core.RetryConfig) Option {
	return func(c *Controller) {
		c.retry = &cfg
	}
}

// WithCircuitBreaker guards storage writes with cb.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Controller) {
		c.breaker = cb
	}
}

// WithCircuitBreakerSettings builds a storage circuit breaker from the
// service configuration when s.Enabled is set.
func WithCircuitBreakerSettings(s core.CircuitBreakerConfig) Option {
	return func(c *Controller) {
		c.breakerSettings = &s
	}
}

// WithLoginDelay sets the simulated login and signup latency.
func WithLoginDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.loginDelay = d
	}
}

// WithNotificationTTL sets how long a checkout notification is shown.
// Zero or less keeps it until the next checkout or logout.
func WithNotificationTTL(d time.Duration) Option {
	return func(c *Controller) {
		c.notificationTTL = d
	}
}

// WithDefaultPaymentMethod selects the method used when checkout is called
// without one. Unknown methods are ignored.
func WithDefaultPaymentMethod(m cart.PaymentMethod) Option {
	return func(c *Controller) {
		if m.Valid() {
			c.defaultPayment = m
		}
	}
}

// WithCatalogOptions passes options to the underlying catalog.
func WithCatalogOptions(opts ...catalog.Option) Option {
	return func(c *Controller) {
		c.catalogOpts = append(c.catalogOpts, opts...)
	}
}

// FromConfig maps the service configuration onto controller options.
func FromConfig(cfg *core.Config) []Option {
	return []Option{
		WithRetry(cfg.Resilience.Retry),
		WithCircuitBreakerSettings(cfg.Resilience.CircuitBreaker),
		WithLoginDelay(cfg.Session.LoginDelay),
		WithNotificationTTL(cfg.Checkout.NotificationTTL),
		WithDefaultPaymentMethod(cart.PaymentMethod(cfg.Checkout.DefaultPaymentMethod)),
	}
}

// New creates a logged-out controller with empty stores backed by storage.
// Call Load to restore previously saved state.
func New(storage core.Storage, opts ...Option) *Controller {
	c := &Controller{
		storage:         storage,
		logger:          &core.NoOpLogger{},
		telemetry:       &core.NoOpTelemetry{},
		loginDelay:      session.DefaultDelay,
		notificationTTL: DefaultNotificationTTL,
		defaultPayment:  cart.DefaultPaymentMethod,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.breaker == nil && c.breakerSettings != nil && c.breakerSettings.Enabled {
		bc := resilience.FromSettings("storage", *c.breakerSettings)
		bc.Logger = c.logger
		bc.Telemetry = c.telemetry
		cb, err := resilience.NewCircuitBreaker(bc)
		if err != nil {
			c.logger.Warn("Storage circuit breaker disabled", map[string]interface{}{
				"error": err.Error(),
			})
		}
		c.breaker = cb
	}

	c.gate = session.NewGate(c.loginDelay)
	c.catalog = catalog.New(c.catalogOpts...)
	c.cart = cart.New()
	return c
}

// SessionView is the public session state.
type SessionView struct {
	LoggedIn bool   `json:"logged_in"`
	Username string `json:"username,omitempty"`
	Initial  string `json:"initial,omitempty"`
}

// CartLine is a cart item with its line subtotal.
type CartLine struct {
	cart.Item
	Subtotal decimal.Decimal `json:"subtotal"`
}

// CartView is the cart with derived totals.
type CartView struct {
	Items []CartLine      `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// Session returns the current session state.
func (c *Controller) Session() SessionView {
	return SessionView{
		LoggedIn: c.gate.LoggedIn(),
		Username: c.gate.Username(),
		Initial:  c.gate.Initial(),
	}
}

// Login runs the simulated login and, on success, saves all three slots.
// The delay runs without holding the controller lock.
func (c *Controller) Login(ctx context.Context, creds session.LoginCredentials) (SessionView, SaveResult, error) {
	ctx, span := c.telemetry.StartSpan(ctx, "storefront.login")
	defer span.End()

	if err := c.gate.Login(ctx, creds); err != nil {
		span.RecordError(err)
		c.recordOp("login", err)
		return c.Session(), SaveResult{}, err
	}
	return c.afterAuth(ctx, "login")
}

// Signup runs the simulated signup and, on success, saves all three slots.
func (c *Controller) Signup(ctx context.Context, creds session.SignupCredentials) (SessionView, SaveResult, error) {
	ctx, span := c.telemetry.StartSpan(ctx, "storefront.signup")
	defer span.End()

	if err := c.gate.Signup(ctx, creds); err != nil {
		span.RecordError(err)
		c.recordOp("signup", err)
		return c.Session(), SaveResult{}, err
	}
	return c.afterAuth(ctx, "signup")
}

// afterAuth saves the new session. A Logout that won the lock after the
// gate accepted the credentials leaves nothing to save.
func (c *Controller) afterAuth(ctx context.Context, op string) (SessionView, SaveResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.gate.LoggedIn() {
		err := &core.MarketError{Op: "storefront." + op, Kind: "session", Err: core.ErrNotLoggedIn}
		c.recordOp(op, err)
		return c.Session(), SaveResult{}, err
	}

	res := c.save(ctx, allSlots...)
	c.recordOp(op, nil)
	c.logger.InfoWithContext(ctx, "User logged in", map[string]interface{}{
		"username": c.gate.Username(),
		"via":      op,
	})
	return c.Session(), res, nil
}

// Logout ends the session, empties both stores, dismisses any notification
// and erases all three slots from storage.
func (c *Controller) Logout(ctx context.Context) SaveResult {
	ctx, span := c.telemetry.StartSpan(ctx, "storefront.logout")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	username := c.gate.Username()
	c.gate.Logout()
	c.catalog.Reset()
	c.cart.Clear()
	c.clearNotice()

	res := c.erase(ctx)
	if res.Err != nil {
		span.RecordError(res.Err)
	}
	c.recordOp("logout", nil)
	c.logger.InfoWithContext(ctx, "User logged out", map[string]interface{}{
		"username": username,
	})
	return res
}

// Products returns the catalog filtered by category. CategoryAll or an
// empty category returns everything.
func (c *Controller) Products(category catalog.Category) ([]catalog.Product, error) {
	if category != "" && category != catalog.CategoryAll && !category.Valid() {
		return nil, core.NewValidationError("storefront.Products", "category", core.ErrInvalidCategory)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalog.Filter(category), nil
}

// Product returns one product by id.
func (c *Controller) Product(id string) (catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.catalog.Get(id)
	if !ok {
		return catalog.Product{}, &core.MarketError{Op: "storefront.Product", Kind: "catalog", ID: id, Err: core.ErrProductNotFound}
	}
	return p, nil
}

// AddProduct validates the draft, appends the product and saves the catalog.
func (c *Controller) AddProduct(ctx context.Context, draft catalog.ProductDraft) (catalog.Product, SaveResult, error) {
	var p catalog.Product
	res, err := c.mutate(ctx, "add_product", []string{SlotProducts}, func() error {
		var err error
		p, err = c.catalog.Add(draft)
		return err
	})
	return p, res, err
}

// UpdateProduct edits the product with the given id and saves the catalog.
// Cart lines keep the snapshot taken when the product was added.
func (c *Controller) UpdateProduct(ctx context.Context, id string, draft catalog.ProductDraft) (catalog.Product, SaveResult, error) {
	var p catalog.Product
	res, err := c.mutate(ctx, "update_product", []string{SlotProducts}, func() error {
		var err error
		p, err = c.catalog.Update(id, draft)
		return err
	})
	return p, res, err
}

// DeleteProduct removes a product and reports whether it existed. Nothing
// is saved when the id is unknown.
func (c *Controller) DeleteProduct(ctx context.Context, id string) (bool, SaveResult, error) {
	var removed bool
	res, err := c.mutate(ctx, "delete_product", []string{SlotProducts}, func() error {
		removed = c.catalog.Delete(id)
		if !removed {
			return errNoChange
		}
		return nil
	})
	return removed, res, err
}

// Cart returns the cart lines with subtotals and totals.
func (c *Controller) Cart() CartView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cartView()
}

func (c *Controller) cartView() CartView {
	items := c.cart.Items()
	lines := make([]CartLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, CartLine{Item: item, Subtotal: item.Subtotal()})
	}
	t := c.cart.Totals()
	return CartView{Items: lines, Total: t.Total, Count: t.Count}
}

// AddToCart puts one unit of the catalog product into the cart.
func (c *Controller) AddToCart(ctx context.Context, productID string) (cart.Item, SaveResult, error) {
	var item cart.Item
	res, err := c.mutate(ctx, "add_to_cart", []string{SlotCart}, func() error {
		p, ok := c.catalog.Get(productID)
		if !ok {
			return &core.MarketError{Op: "storefront.AddToCart", Kind: "catalog", ID: productID, Err: core.ErrProductNotFound}
		}
		var err error
		item, err = c.cart.Add(p)
		return err
	})
	return item, res, err
}

// RemoveFromCart deletes a cart line and reports whether it existed.
func (c *Controller) RemoveFromCart(ctx context.Context, productID string) (bool, SaveResult, error) {
	var removed bool
	res, err := c.mutate(ctx, "remove_from_cart", []string{SlotCart}, func() error {
		removed = c.cart.Remove(productID)
		if !removed {
			return errNoChange
		}
		return nil
	})
	return removed, res, err
}

// SetQuantity overwrites a line quantity; zero or less removes the line and
// anything above cart.MaxQuantity is rejected. It reports whether a line
// for the id existed.
func (c *Controller) SetQuantity(ctx context.Context, productID string, quantity int) (bool, SaveResult, error) {
	var found bool
	res, err := c.mutate(ctx, "set_quantity", []string{SlotCart}, func() error {
		var err error
		found, err = c.cart.SetQuantity(productID, quantity)
		if err != nil {
			return err
		}
		if !found {
			return errNoChange
		}
		return nil
	})
	return found, res, err
}

// Checkout places the order, empties the cart, saves it and shows the
// confirmation notification. An empty method selects the default.
func (c *Controller) Checkout(ctx context.Context, method cart.PaymentMethod) (cart.Receipt, SaveResult, error) {
	if method == "" {
		method = c.defaultPayment
	}

	var receipt cart.Receipt
	res, err := c.mutate(ctx, "checkout", []string{SlotCart}, func() error {
		var err error
		receipt, err = c.cart.Checkout(method)
		if err != nil {
			return err
		}
		c.showNotice(receipt)
		return nil
	})
	if err != nil {
		return cart.Receipt{}, res, err
	}

	c.telemetry.RecordMetric("marketplace.orders", 1, map[string]string{"payment_method": string(method)})
	total, _ := receipt.Total.Float64()
	c.telemetry.RecordMetric("marketplace.order_value", total, map[string]string{"payment_method": string(method)})
	c.logger.InfoWithContext(ctx, "Order placed", map[string]interface{}{
		"order_id":       receipt.OrderID,
		"payment_method": string(method),
		"total":          receipt.Total.StringFixed(2),
		"items":          receipt.Count,
	})
	return receipt, res, nil
}

// Health checks the storage backend.
func (c *Controller) Health(ctx context.Context) error {
	return c.storage.HealthCheck(ctx)
}

// CircuitState reports the storage circuit breaker state, or "disabled".
func (c *Controller) CircuitState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.GetState()
}

// Close stops the notification timer. The storage is owned by the caller
// and stays open.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.clearNotice()
	return nil
}

// mutate runs fn under the lock for a logged-in user and then saves slots.
// fn returning errNoChange skips the save without reporting an error.
func (c *Controller) mutate(ctx context.Context, op string, slots []string, fn func() error) (SaveResult, error) {
	ctx, span := c.telemetry.StartSpan(ctx, "storefront."+op)
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.gate.Require("storefront." + op); err != nil {
		span.RecordError(err)
		c.recordOp(op, err)
		return SaveResult{}, err
	}

	if err := fn(); err != nil {
		if err == errNoChange {
			c.recordOp(op, nil)
			return SaveResult{}, nil
		}
		span.RecordError(err)
		c.recordOp(op, err)
		c.logger.DebugWithContext(ctx, "Operation rejected", map[string]interface{}{
			"operation": op,
			"error":     err.Error(),
		})
		return SaveResult{}, err
	}

	res := c.save(ctx, slots...)
	if res.Err != nil {
		span.RecordError(res.Err)
	}
	c.recordOp(op, nil)
	return res, nil
}

func (c *Controller) recordOp(op string, err error) {
	status := "ok"
	switch {
	case err == nil:
	case core.IsValidation(err):
		status = "invalid"
	case core.IsNotFound(err):
		status = "not_found"
	case core.IsStateError(err):
		status = "unauthorized"
	default:
		status = "error"
	}
	c.telemetry.RecordMetric("marketplace.operations", 1, map[string]string{
		"operation": op,
		"status":    status,
	})
}
