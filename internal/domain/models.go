package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

type TransactionStatus string

const (
	StatusCompleted TransactionStatus = "completed"
	StatusRefunded  TransactionStatus = "refunded"
	StatusVoided    TransactionStatus = "voided"
)

// Display rounds a monetary amount to two decimals, half away from zero.
func Display(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

type Product struct {
	ID                string          `json:"id"`
	Barcode           string          `json:"barcode"`
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	Price             decimal.Decimal `json:"price"`
	Stock             int             `json:"stock"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	Supplier          string          `json:"supplier"`
	Description       string          `json:"description"`
}

func (p Product) IsLowStock() bool {
	return p.Stock <= p.LowStockThreshold
}

func (p Product) IsOutOfStock() bool {
	return p.Stock <= 0
}

type StockAdjustment struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CartLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type TransactionItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type Transaction struct {
	ID            string            `json:"id"`
	CustomerID    string            `json:"customer_id,omitempty"`
	Items         []TransactionItem `json:"items"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	Tax           decimal.Decimal   `json:"tax"`
	Discount      decimal.Decimal   `json:"discount"`
	Total         decimal.Decimal   `json:"total"`
	PaymentMethod string            `json:"payment_method"`
	CashierID     string            `json:"cashier_id"`
	Timestamp     time.Time         `json:"timestamp"`
	Status        TransactionStatus `json:"status"`
}

// ItemCount is the number of units sold across all lines.
func (t Transaction) ItemCount() int {
	total := 0
	for _, item := range t.Items {
		total += item.Quantity
	}
	return total
}

// StockAdjustments sums item quantities per product, in first-sold order.
func (t Transaction) StockAdjustments() []StockAdjustment {
	adjustments := make([]StockAdjustment, 0, len(t.Items))
	index := make(map[string]int, len(t.Items))
	for _, item := range t.Items {
		if i, ok := index[item.ProductID]; ok {
			adjustments[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(adjustments)
		adjustments = append(adjustments, StockAdjustment{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return adjustments
}

type Customer struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	LoyaltyPoints  int             `json:"loyalty_points"`
	TotalPurchases decimal.Decimal `json:"total_purchases"`
	LastVisit      time.Time       `json:"last_visit"`
}

// CustomerContact is the editable part of a customer record.
type CustomerContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	EmployeeID string    `json:"employee_id"`
	Phone      string    `json:"phone,omitempty"`
	Shift      string    `json:"shift"`
	Password   string    `json:"-"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

type Actor struct {
	UserID   string
	Username string
	Role     string
}
