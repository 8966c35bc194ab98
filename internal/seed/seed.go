// Package seed loads the demo dataset used by the in-memory store.
package seed

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"superpos/backend/internal/domain"
)

//go:embed seed.yaml
var defaultSeed []byte

type Dataset struct {
	Users        []domain.User
	Products     []domain.Product
	Customers    []domain.Customer
	Transactions []domain.Transaction
}

type file struct {
	Users        []userRecord        `yaml:"users"`
	Products     []productRecord     `yaml:"products"`
	Customers    []customerRecord    `yaml:"customers"`
	Transactions []transactionRecord `yaml:"transactions"`
}

type userRecord struct {
	ID         string `yaml:"id"`
	Email      string `yaml:"email"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	Role       string `yaml:"role"`
	EmployeeID string `yaml:"employee_id"`
	Phone      string `yaml:"phone"`
	Shift      string `yaml:"shift"`
}

type productRecord struct {
	ID                string `yaml:"id"`
	Barcode           string `yaml:"barcode"`
	Name              string `yaml:"name"`
	Category          string `yaml:"category"`
	Price             string `yaml:"price"`
	Stock             int    `yaml:"stock"`
	LowStockThreshold int    `yaml:"low_stock_threshold"`
	Supplier          string `yaml:"supplier"`
	Description       string `yaml:"description"`
}

type customerRecord struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Email          string `yaml:"email"`
	Phone          string `yaml:"phone"`
	LoyaltyPoints  int    `yaml:"loyalty_points"`
	TotalPurchases string `yaml:"total_purchases"`
	LastVisit      string `yaml:"last_visit"`
}

type itemRecord struct {
	ProductID string `yaml:"product_id"`
	Quantity  int    `yaml:"quantity"`
	UnitPrice string `yaml:"unit_price"`
}

type transactionRecord struct {
	ID            string       `yaml:"id"`
	CustomerID    string       `yaml:"customer_id"`
	Items         []itemRecord `yaml:"items"`
	Subtotal      string       `yaml:"subtotal"`
	Tax           string       `yaml:"tax"`
	Discount      string       `yaml:"discount"`
	Total         string       `yaml:"total"`
	PaymentMethod string       `yaml:"payment_method"`
	CashierID     string       `yaml:"cashier_id"`
	Timestamp     string       `yaml:"timestamp"`
	Status        string       `yaml:"status"`
}

// Default returns the embedded demo dataset.
func Default() (Dataset, error) {
	return Parse(defaultSeed)
}

// Load reads a dataset from a YAML file on disk.
func Load(path string) (Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (Dataset, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Dataset{}, fmt.Errorf("decode seed: %w", err)
	}

	ds := Dataset{}
	now := time.Now().UTC()
	for _, u := range f.Users {
		ds.Users = append(ds.Users, domain.User{
			ID:         u.ID,
			Email:      u.Email,
			Password:   u.Password,
			Name:       u.Name,
			Role:       u.Role,
			EmployeeID: u.EmployeeID,
			Phone:      u.Phone,
			Shift:      u.Shift,
			Active:     true,
			CreatedAt:  now,
		})
	}

	names := make(map[string]string, len(f.Products))
	for _, p := range f.Products {
		price, err := money(p.Price)
		if err != nil {
			return Dataset{}, fmt.Errorf("product %s price: %w", p.ID, err)
		}
		names[p.ID] = p.Name
		ds.Products = append(ds.Products, domain.Product{
			ID:                p.ID,
			Barcode:           p.Barcode,
			Name:              p.Name,
			Category:          p.Category,
			Price:             price,
			Stock:             p.Stock,
			LowStockThreshold: p.LowStockThreshold,
			Supplier:          p.Supplier,
			Description:       p.Description,
		})
	}

	for _, c := range f.Customers {
		purchases, err := money(c.TotalPurchases)
		if err != nil {
			return Dataset{}, fmt.Errorf("customer %s total purchases: %w", c.ID, err)
		}
		var lastVisit time.Time
		if c.LastVisit != "" {
			lastVisit, err = time.Parse(time.DateOnly, c.LastVisit)
			if err != nil {
				return Dataset{}, fmt.Errorf("customer %s last visit: %w", c.ID, err)
			}
		}
		ds.Customers = append(ds.Customers, domain.Customer{
			ID:             c.ID,
			Name:           c.Name,
			Email:          c.Email,
			Phone:          c.Phone,
			LoyaltyPoints:  c.LoyaltyPoints,
			TotalPurchases: purchases,
			LastVisit:      lastVisit,
		})
	}

	for _, t := range f.Transactions {
		tx, err := t.toDomain(names)
		if err != nil {
			return Dataset{}, fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		ds.Transactions = append(ds.Transactions, tx)
	}

	return ds, nil
}

func (t transactionRecord) toDomain(names map[string]string) (domain.Transaction, error) {
	amounts := make([]decimal.Decimal, 4)
	for i, raw := range []string{t.Subtotal, t.Tax, t.Discount, t.Total} {
		value, err := money(raw)
		if err != nil {
			return domain.Transaction{}, err
		}
		amounts[i] = value
	}
	ts, err := time.Parse(time.RFC3339, t.Timestamp)
	if err != nil {
		return domain.Transaction{}, err
	}

	items := make([]domain.TransactionItem, 0, len(t.Items))
	for _, item := range t.Items {
		price, err := money(item.UnitPrice)
		if err != nil {
			return domain.Transaction{}, err
		}
		items = append(items, domain.TransactionItem{
			ProductID: item.ProductID,
			Name:      names[item.ProductID],
			Quantity:  item.Quantity,
			UnitPrice: price,
		})
	}

	status := domain.TransactionStatus(t.Status)
	if status == "" {
		status = domain.StatusCompleted
	}

	return domain.Transaction{
		ID:            t.ID,
		CustomerID:    t.CustomerID,
		Items:         items,
		Subtotal:      amounts[0],
		Tax:           amounts[1],
		Discount:      amounts[2],
		Total:         amounts[3],
		PaymentMethod: t.PaymentMethod,
		CashierID:     t.CashierID,
		Timestamp:     ts.UTC(),
		Status:        status,
	}, nil
}

func money(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
