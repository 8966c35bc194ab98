// Package report aggregates the transaction log and catalog into sales and
// inventory summaries.
package report

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"superpos/backend/internal/domain"
)

// TopProductLimit caps the top products list.
const TopProductLimit = 5

// Sales summarises completed transactions. Refunded and voided transactions
// are excluded from revenue. Category sales use each product's current
// category; items whose product no longer exists are grouped as "Unknown".
func Sales(txs []domain.Transaction, products []domain.Product, users []domain.User, now time.Time) domain.SalesReport {
	categoryOf := make(map[string]string, len(products))
	for _, p := range products {
		categoryOf[p.ID] = p.Category
	}
	userName := make(map[string]string, len(users))
	for _, u := range users {
		userName[u.ID] = u.Name
	}

	report := domain.SalesReport{
		Revenue:            decimal.Zero,
		Tax:                decimal.Zero,
		Discounts:          decimal.Zero,
		AverageTransaction: decimal.Zero,
		GeneratedAt:        now.UTC(),
	}

	byProduct := map[string]*domain.ProductSales{}
	byCategory := map[string]*domain.CategorySales{}
	byPayment := map[string]*domain.PaymentBreakdown{}
	byCashier := map[string]*domain.CashierSales{}
	byDay := map[string]*domain.DailyRevenue{}

	for _, tx := range txs {
		if tx.Status != domain.StatusCompleted {
			continue
		}
		report.Transactions++
		report.Revenue = report.Revenue.Add(tx.Total)
		report.Tax = report.Tax.Add(tx.Tax)
		report.Discounts = report.Discounts.Add(tx.Discount)

		payment := lookup(byPayment, tx.PaymentMethod, func() *domain.PaymentBreakdown {
			return &domain.PaymentBreakdown{Method: tx.PaymentMethod, Revenue: decimal.Zero}
		})
		payment.Transactions++
		payment.Revenue = payment.Revenue.Add(tx.Total)

		cashier := lookup(byCashier, tx.CashierID, func() *domain.CashierSales {
			return &domain.CashierSales{CashierID: tx.CashierID, Name: userName[tx.CashierID], Revenue: decimal.Zero}
		})
		cashier.Transactions++
		cashier.Revenue = cashier.Revenue.Add(tx.Total)

		date := tx.Timestamp.UTC().Format(time.DateOnly)
		day := lookup(byDay, date, func() *domain.DailyRevenue {
			return &domain.DailyRevenue{Date: date, Revenue: decimal.Zero}
		})
		day.Transactions++
		day.Revenue = day.Revenue.Add(tx.Total)

		for _, item := range tx.Items {
			report.ItemsSold += item.Quantity
			lineRevenue := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))

			product := lookup(byProduct, item.ProductID, func() *domain.ProductSales {
				return &domain.ProductSales{ProductID: item.ProductID, Name: item.Name, Revenue: decimal.Zero}
			})
			product.Quantity += item.Quantity
			product.Revenue = product.Revenue.Add(lineRevenue)

			name, ok := categoryOf[item.ProductID]
			if !ok || name == "" {
				name = "Unknown"
			}
			category := lookup(byCategory, name, func() *domain.CategorySales {
				return &domain.CategorySales{Category: name, Revenue: decimal.Zero}
			})
			category.Quantity += item.Quantity
			category.Revenue = category.Revenue.Add(lineRevenue)
		}
	}

	if report.Transactions > 0 {
		report.AverageTransaction = report.Revenue.Div(decimal.NewFromInt(int64(report.Transactions)))
	}

	report.TopProducts = sortedValues(byProduct, func(a, b domain.ProductSales) int {
		return cmp.Or(cmp.Compare(b.Quantity, a.Quantity), cmp.Compare(a.ProductID, b.ProductID))
	})
	if len(report.TopProducts) > TopProductLimit {
		report.TopProducts = report.TopProducts[:TopProductLimit]
	}
	report.Categories = sortedValues(byCategory, func(a, b domain.CategorySales) int {
		return cmp.Or(b.Revenue.Cmp(a.Revenue), cmp.Compare(a.Category, b.Category))
	})
	report.PaymentMethods = sortedValues(byPayment, func(a, b domain.PaymentBreakdown) int {
		return cmp.Or(b.Revenue.Cmp(a.Revenue), cmp.Compare(a.Method, b.Method))
	})
	report.Cashiers = sortedValues(byCashier, func(a, b domain.CashierSales) int {
		return cmp.Or(b.Revenue.Cmp(a.Revenue), cmp.Compare(a.CashierID, b.CashierID))
	})
	report.Daily = sortedValues(byDay, func(a, b domain.DailyRevenue) int {
		return cmp.Compare(a.Date, b.Date)
	})

	return report
}

// Inventory lists products at or below their reorder threshold, those with
// nothing on the shelf, and values the remaining stock at current prices.
func Inventory(products []domain.Product, now time.Time) domain.InventoryReport {
	report := domain.InventoryReport{
		Products:    len(products),
		LowStock:    []domain.Product{},
		OutOfStock:  []domain.Product{},
		StockValue:  decimal.Zero,
		GeneratedAt: now.UTC(),
	}
	for _, p := range products {
		if p.IsLowStock() {
			report.LowStock = append(report.LowStock, p)
		}
		if p.IsOutOfStock() {
			report.OutOfStock = append(report.OutOfStock, p)
		}
		if p.Stock > 0 {
			report.StockValue = report.StockValue.Add(p.Price.Mul(decimal.NewFromInt(int64(p.Stock))))
		}
	}
	return report
}

func lookup[T any](m map[string]*T, key string, create func() *T) *T {
	if v, ok := m[key]; ok {
		return v
	}
	v := create()
	m[key] = v
	return v
}

func sortedValues[T any](m map[string]*T, compare func(a, b T) int) []T {
	result := make([]T, 0, len(m))
	for _, v := range m {
		result = append(result, *v)
	}
	slices.SortFunc(result, compare)
	return result
}
