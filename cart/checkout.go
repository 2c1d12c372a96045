package cart

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openmarket/marketplace/core"
)

// PaymentMethod identifies how an order is (pretend) paid.
type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "credit-card"
	PaymentDebitCard  PaymentMethod = "debit-card"
	PaymentPayPal     PaymentMethod = "paypal"
	PaymentApplePay   PaymentMethod = "apple-pay"

	DefaultPaymentMethod = PaymentCreditCard
)

// PaymentMethods lists the selectable methods in display order.
var PaymentMethods = []PaymentMethod{
	PaymentCreditCard,
	PaymentDebitCard,
	PaymentPayPal,
	PaymentApplePay,
}

var paymentLabels = map[PaymentMethod]string{
	PaymentCreditCard: "Credit Card",
	PaymentDebitCard:  "Debit Card",
	PaymentPayPal:     "PayPal",
	PaymentApplePay:   "Apple Pay",
}

var paymentIcons = map[PaymentMethod]string{
	PaymentCreditCard: "💳",
	PaymentDebitCard:  "💳",
	PaymentPayPal:     "🅿️",
	PaymentApplePay:   "🍎",
}

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	_, ok := paymentLabels[m]
	return ok
}

// Label returns the display name used in the confirmation message.
func (m PaymentMethod) Label() string {
	if l, ok := paymentLabels[m]; ok {
		return l
	}
	return string(m)
}

// Icon returns the glyph shown next to the method.
func (m PaymentMethod) Icon() string {
	return paymentIcons[m]
}

// ParsePaymentMethod maps user input to a method. Empty input selects the
// default method.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	if s == "" {
		return DefaultPaymentMethod, nil
	}
	m := PaymentMethod(s)
	if !m.Valid() {
		return "", core.NewValidationError("cart.ParsePaymentMethod", "payment_method", core.ErrInvalidPayment)
	}
	return m, nil
}

// Receipt is the outcome of a checkout.
type Receipt struct {
	OrderID  string          `json:"order_id"`
	Method   PaymentMethod   `json:"payment_method"`
	Label    string          `json:"payment_label"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
	Items    []Item          `json:"items"`
	Message  string          `json:"message"`
	PlacedAt time.Time       `json:"placed_at"`
}

// ConfirmationMessage formats the order confirmation shown to the user.
func ConfirmationMessage(m PaymentMethod, total decimal.Decimal) string {
	return fmt.Sprintf("Order placed successfully with %s! Total: $%s", m.Label(), total.StringFixed(2))
}

// Checkout places the order with method m: it captures the totals, builds
// the confirmation and empties the cart. An unknown method leaves the cart
// untouched. An empty cart checks out with a zero total.
func (c *Cart) Checkout(m PaymentMethod) (Receipt, error) {
	if !m.Valid() {
		return Receipt{}, core.NewValidationError("cart.Checkout", "payment_method", core.ErrInvalidPayment)
	}

	totals := c.Totals()
	r := Receipt{
		OrderID:  newOrderID(),
		Method:   m,
		Label:    m.Label(),
		Total:    totals.Total,
		Count:    totals.Count,
		Items:    c.Items(),
		Message:  ConfirmationMessage(m, totals.Total),
		PlacedAt: time.Now().UTC(),
	}

	c.Clear()
	return r, nil
}

func newOrderID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
