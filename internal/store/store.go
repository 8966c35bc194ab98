package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"superpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
)

type CatalogStore interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	FindProductByID(ctx context.Context, id string) (*domain.Product, error)
	// FindProductByBarcode returns the first product with an exact barcode match.
	FindProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	SearchProducts(ctx context.Context, text string) ([]domain.Product, error)
	// DecrementStock applies every adjustment or none of them. Unknown product
	// ids are skipped and stock may go negative.
	DecrementStock(ctx context.Context, adjustments []domain.StockAdjustment) error
	SetStock(ctx context.Context, id string, stock int) (*domain.Product, error)
	UpsertProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
}

type CustomerStore interface {
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	FindCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	SearchCustomers(ctx context.Context, text string) ([]domain.Customer, error)
	AdjustLoyaltyPoints(ctx context.Context, id string, delta int) (*domain.Customer, error)
	RecordPurchase(ctx context.Context, id string, amount decimal.Decimal, at time.Time) (*domain.Customer, error)
	UpsertCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	// UpdateCustomerContact changes name, email and phone only; loyalty points
	// and purchase history are left as stored.
	UpdateCustomerContact(ctx context.Context, id string, contact domain.CustomerContact) (*domain.Customer, error)
}

type TransactionLog interface {
	AppendTransaction(ctx context.Context, tx domain.Transaction) error
	// ListTransactions returns transactions in insertion order.
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	FilterTransactions(ctx context.Context, filter TransactionFilter) ([]domain.Transaction, error)
	FindTransactionByID(ctx context.Context, id string) (*domain.Transaction, error)
}

// SaleRecorder commits a completed sale. RecordSale decrements stock for
// every item of tx and appends tx to the log as one unit: either both happen
// or neither does. With checkStock set, an item that exceeds its product's
// current stock, or names an unknown product, fails the whole sale with
// ErrInsufficientStock. A duplicate transaction id is ErrInvalidInput.
type SaleRecorder interface {
	RecordSale(ctx context.Context, tx domain.Transaction, checkStock bool) error
}

type UserStore interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUserPassword(ctx context.Context, id string, password string) error
}

type Repository interface {
	CatalogStore
	CustomerStore
	TransactionLog
	SaleRecorder
	UserStore
}

// TransactionFilter selects log entries. Zero fields match everything; the
// date range is half-open [From, To).
type TransactionFilter struct {
	CashierID  string
	CustomerID string
	Status     domain.TransactionStatus
	From       time.Time
	To         time.Time
}

func (f TransactionFilter) Match(tx domain.Transaction) bool {
	if f.CashierID != "" && tx.CashierID != f.CashierID {
		return false
	}
	if f.CustomerID != "" && tx.CustomerID != f.CustomerID {
		return false
	}
	if f.Status != "" && tx.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && tx.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !tx.Timestamp.Before(f.To) {
		return false
	}
	return true
}

// MatchProduct reports whether a product matches a catalog search: a
// case-insensitive substring of name or category, or a barcode substring.
func MatchProduct(p domain.Product, text string) bool {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), needle) ||
		strings.Contains(strings.ToLower(p.Category), needle) ||
		strings.Contains(p.Barcode, strings.TrimSpace(text))
}

func MatchCustomer(c domain.Customer, text string) bool {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.Name), needle) ||
		strings.Contains(strings.ToLower(c.Email), needle) ||
		strings.Contains(c.Phone, strings.TrimSpace(text))
}

// ValidateAdjustments rejects negative decrements.
func ValidateAdjustments(adjustments []domain.StockAdjustment) error {
	for _, adj := range adjustments {
		if adj.Quantity < 0 {
			return fmt.Errorf("negative decrement for product %s: %w", adj.ProductID, ErrInvalidInput)
		}
	}
	return nil
}

// ValidateProduct checks the fields every catalog entry must carry.
func ValidateProduct(p domain.Product) error {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Category) == "" {
		return ErrInvalidInput
	}
	if p.Price.IsNegative() || p.Stock < 0 || p.LowStockThreshold < 0 {
		return ErrInvalidInput
	}
	return nil
}

func ValidateContact(c domain.CustomerContact) error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrInvalidInput
	}
	return nil
}

func ValidateCustomer(c domain.Customer) error {
	if strings.TrimSpace(c.Name) == "" || c.LoyaltyPoints < 0 || c.TotalPurchases.IsNegative() {
		return ErrInvalidInput
	}
	return nil
}
