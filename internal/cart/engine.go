// Package cart holds the in-progress sale for one operator session and turns
// it into an immutable transaction at checkout.
//
// An Engine is not safe for concurrent use. Callers that share one across
// goroutines must serialize access themselves.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"superpos/backend/internal/domain"
	"superpos/backend/internal/xid"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// DefaultTaxRate is the sales tax applied to the subtotal.
var DefaultTaxRate = decimal.RequireFromString("0.08")

// Ledger commits a finished sale: stock for every item and the transaction
// log entry together, or neither. store.SaleRecorder satisfies it.
type Ledger interface {
	RecordSale(ctx context.Context, tx domain.Transaction, checkStock bool) error
}

// CheckoutHook runs after a successful checkout with the new transaction and
// the customer that was associated with the cart, if any.
type CheckoutHook func(ctx context.Context, tx domain.Transaction, customer *domain.Customer) error

type Options struct {
	TaxRate  decimal.Decimal
	Discount decimal.Decimal
	// AllowOversell lets checkout drive stock negative. When false, the ledger
	// checks stock while it commits and checkout fails with
	// store.ErrInsufficientStock if any line exceeds it.
	AllowOversell bool
	Hooks         []CheckoutHook
	Now           func() time.Time
	NewID         func(at time.Time) string
	Logger        *zap.Logger
}

// DefaultOptions mirrors the register's stock behaviour: 8% tax, no discount
// and no stock validation.
func DefaultOptions() Options {
	return Options{
		TaxRate:       DefaultTaxRate,
		Discount:      decimal.Zero,
		AllowOversell: true,
	}
}

type line struct {
	productID string
	name      string
	quantity  int
	unitPrice decimal.Decimal
}

type Engine struct {
	ledger   Ledger
	opts     Options
	lines    map[string]*line
	order    []string
	customer *domain.Customer
}

func New(ledger Ledger, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = xid.Transaction
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		ledger: ledger,
		opts:   opts,
		lines:  make(map[string]*line),
	}
}

// AddItem adds quantity units of product. A product already in the cart keeps
// the unit price captured when it was first added.
func (e *Engine) AddItem(product domain.Product, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if existing, ok := e.lines[product.ID]; ok {
		existing.quantity += quantity
		return nil
	}
	e.lines[product.ID] = &line{
		productID: product.ID,
		name:      product.Name,
		quantity:  quantity,
		unitPrice: product.Price,
	}
	e.order = append(e.order, product.ID)
	return nil
}

// RemoveItem deletes the line for productID. Removing an absent product is a no-op.
func (e *Engine) RemoveItem(productID string) {
	if _, ok := e.lines[productID]; !ok {
		return
	}
	delete(e.lines, productID)
	for i, id := range e.order {
		if id == productID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// SetQuantity replaces a line's quantity; zero or less removes the line.
func (e *Engine) SetQuantity(productID string, quantity int) {
	existing, ok := e.lines[productID]
	if !ok {
		return
	}
	if quantity <= 0 {
		e.RemoveItem(productID)
		return
	}
	existing.quantity = quantity
}

func (e *Engine) Clear() {
	e.lines = make(map[string]*line)
	e.order = nil
	e.customer = nil
}

// SetCustomer associates a customer with the sale, or clears it when nil.
func (e *Engine) SetCustomer(customer *domain.Customer) {
	if customer == nil {
		e.customer = nil
		return
	}
	c := *customer
	e.customer = &c
}

func (e *Engine) Customer() *domain.Customer {
	if e.customer == nil {
		return nil
	}
	c := *e.customer
	return &c
}

// Lines returns a copy of the cart lines in the order they were first added.
func (e *Engine) Lines() []domain.CartLine {
	result := make([]domain.CartLine, 0, len(e.order))
	for _, id := range e.order {
		l := e.lines[id]
		result = append(result, domain.CartLine{
			ProductID: l.productID,
			Name:      l.name,
			Quantity:  l.quantity,
			UnitPrice: l.unitPrice,
		})
	}
	return result
}

func (e *Engine) Len() int {
	return len(e.order)
}

func (e *Engine) IsEmpty() bool {
	return len(e.order) == 0
}

func (e *Engine) ItemCount() int {
	count := 0
	for _, l := range e.lines {
		count += l.quantity
	}
	return count
}

func (e *Engine) Subtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, l := range e.lines {
		subtotal = subtotal.Add(l.unitPrice.Mul(decimal.NewFromInt(int64(l.quantity))))
	}
	return subtotal
}

func (e *Engine) Tax() decimal.Decimal {
	return e.Subtotal().Mul(e.opts.TaxRate)
}

func (e *Engine) Discount() decimal.Decimal {
	return e.opts.Discount
}

func (e *Engine) Total() decimal.Decimal {
	subtotal := e.Subtotal()
	return subtotal.Add(subtotal.Mul(e.opts.TaxRate)).Sub(e.opts.Discount)
}

// Checkout turns the cart into a completed transaction attributed to
// cashierID and commits it through the ledger. Only a committed sale clears
// the cart and reaches the hooks; on any error the cart is left as it was.
func (e *Engine) Checkout(ctx context.Context, paymentMethod string, cashierID string) (domain.Transaction, error) {
	if e.IsEmpty() {
		return domain.Transaction{}, ErrEmptyCart
	}

	subtotal := e.Subtotal()
	tax := subtotal.Mul(e.opts.TaxRate)
	discount := e.opts.Discount
	now := e.opts.Now().UTC()

	items := make([]domain.TransactionItem, 0, len(e.order))
	for _, id := range e.order {
		l := e.lines[id]
		items = append(items, domain.TransactionItem{
			ProductID: l.productID,
			Name:      l.name,
			Quantity:  l.quantity,
			UnitPrice: l.unitPrice,
		})
	}

	tx := domain.Transaction{
		ID:            e.opts.NewID(now),
		Items:         items,
		Subtotal:      subtotal,
		Tax:           tax,
		Discount:      discount,
		Total:         subtotal.Add(tax).Sub(discount),
		PaymentMethod: strings.TrimSpace(paymentMethod),
		CashierID:     cashierID,
		Timestamp:     now,
		Status:        domain.StatusCompleted,
	}
	if e.customer != nil {
		tx.CustomerID = e.customer.ID
	}

	if err := e.ledger.RecordSale(ctx, copyTransaction(tx), !e.opts.AllowOversell); err != nil {
		return domain.Transaction{}, fmt.Errorf("record sale %s: %w", tx.ID, err)
	}

	customer := e.Customer()
	e.Clear()

	for _, hook := range e.opts.Hooks {
		if err := hook(ctx, copyTransaction(tx), customer); err != nil {
			e.opts.Logger.Warn("post-checkout hook failed",
				zap.String("transaction_id", tx.ID),
				zap.Error(err),
			)
		}
	}

	return tx, nil
}

func copyTransaction(tx domain.Transaction) domain.Transaction {
	items := make([]domain.TransactionItem, len(tx.Items))
	copy(items, tx.Items)
	tx.Items = items
	return tx
}
