package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type AddToCartRequest struct {
	ProductID string `json:"product_id,omitempty"`
	Barcode   string `json:"barcode,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type SetCartCustomerRequest struct {
	CustomerID string `json:"customer_id"`
}

type CheckoutRequest struct {
	PaymentMethod string `json:"payment_method"`
}

type CartView struct {
	Lines    []CartLineView  `json:"lines"`
	Customer *Customer       `json:"customer,omitempty"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
	// DisplayTotal is Total rounded for the receipt.
	DisplayTotal decimal.Decimal `json:"display_total"`
	ItemCount    int             `json:"item_count"`
}

type CartLineView struct {
	CartLine
	LineTotal decimal.Decimal `json:"line_total"`
}

type CheckoutResponse struct {
	Transaction  Transaction     `json:"transaction"`
	DisplayTotal decimal.Decimal `json:"display_total"`
}

type ScanResult struct {
	Found   bool     `json:"found"`
	Barcode string   `json:"barcode"`
	Product *Product `json:"product,omitempty"`
}

type ProductUpsertRequest struct {
	ID                string          `json:"id,omitempty"`
	Barcode           string          `json:"barcode"`
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	Price             decimal.Decimal `json:"price"`
	Stock             int             `json:"stock"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	Supplier          string          `json:"supplier"`
	Description       string          `json:"description"`
}

type SetStockRequest struct {
	Stock int `json:"stock"`
}

type CustomerUpsertRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type GiftPointsRequest struct {
	Points int    `json:"points"`
	Reason string `json:"reason,omitempty"`
}

type CustomerView struct {
	Customer
	Tier string `json:"tier"`
}

type TransactionQuery struct {
	CashierID  string
	CustomerID string
	Status     TransactionStatus
	From       *time.Time
	To         *time.Time
}

type ProductSales struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type CategorySales struct {
	Category string          `json:"category"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type PaymentBreakdown struct {
	Method       string          `json:"method"`
	Transactions int             `json:"transactions"`
	Revenue      decimal.Decimal `json:"revenue"`
}

type CashierSales struct {
	CashierID    string          `json:"cashier_id"`
	Name         string          `json:"name,omitempty"`
	Transactions int             `json:"transactions"`
	Revenue      decimal.Decimal `json:"revenue"`
}

type DailyRevenue struct {
	Date         string          `json:"date"`
	Transactions int             `json:"transactions"`
	Revenue      decimal.Decimal `json:"revenue"`
}

type SalesReport struct {
	From               *time.Time         `json:"from,omitempty"`
	To                 *time.Time         `json:"to,omitempty"`
	Transactions       int                `json:"transactions"`
	ItemsSold          int                `json:"items_sold"`
	Revenue            decimal.Decimal    `json:"revenue"`
	Tax                decimal.Decimal    `json:"tax"`
	Discounts          decimal.Decimal    `json:"discounts"`
	AverageTransaction decimal.Decimal    `json:"average_transaction"`
	TopProducts        []ProductSales     `json:"top_products"`
	Categories         []CategorySales    `json:"categories"`
	PaymentMethods     []PaymentBreakdown `json:"payment_methods"`
	Cashiers           []CashierSales     `json:"cashiers"`
	Daily              []DailyRevenue     `json:"daily"`
	GeneratedAt        time.Time          `json:"generated_at"`
}

type InventoryReport struct {
	Products    int             `json:"products"`
	LowStock    []Product       `json:"low_stock"`
	OutOfStock  []Product       `json:"out_of_stock"`
	StockValue  decimal.Decimal `json:"stock_value"`
	GeneratedAt time.Time       `json:"generated_at"`
}
