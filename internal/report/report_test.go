package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superpos/backend/internal/domain"
	"superpos/backend/internal/seed"
)

var reportTime = time.Date(2024, 1, 16, 8, 0, 0, 0, time.UTC)

func seeded(t *testing.T) seed.Dataset {
	t.Helper()
	ds, err := seed.Default()
	require.NoError(t, err)
	return ds
}

func TestSalesOverSeedTransactions(t *testing.T) {
	ds := seeded(t)

	r := Sales(ds.Transactions, ds.Products, ds.Users, reportTime)

	assert.Equal(t, 2, r.Transactions)
	assert.Equal(t, 8, r.ItemsSold)
	assert.Equal(t, "27.68", r.Revenue.String())
	assert.Equal(t, "13.84", r.AverageTransaction.String())
	assert.Equal(t, "1.5", r.Discounts.String())

	require.Len(t, r.TopProducts, 4)
	assert.Equal(t, []string{"5", "1", "3", "2"}, []string{
		r.TopProducts[0].ProductID, r.TopProducts[1].ProductID, r.TopProducts[2].ProductID, r.TopProducts[3].ProductID,
	})
	assert.Equal(t, "14.97", r.TopProducts[0].Revenue.String())

	require.Len(t, r.Categories, 4)
	assert.Equal(t, "Beverages", r.Categories[0].Category)
	assert.Equal(t, "Produce", r.Categories[3].Category)

	require.Len(t, r.PaymentMethods, 2)
	assert.Equal(t, "Cash", r.PaymentMethods[0].Method)

	require.Len(t, r.Cashiers, 1)
	assert.Equal(t, "John Cashier", r.Cashiers[0].Name)
	assert.Equal(t, 2, r.Cashiers[0].Transactions)

	require.Len(t, r.Daily, 1)
	assert.Equal(t, "2024-01-15", r.Daily[0].Date)
}

func TestSalesSkipsNonCompletedAndUnknownProducts(t *testing.T) {
	txs := []domain.Transaction{
		{ID: "A", Status: domain.StatusVoided, Total: decimal.NewFromInt(100), Timestamp: reportTime},
		{ID: "B", Status: domain.StatusCompleted, Total: decimal.NewFromInt(4), Timestamp: reportTime,
			Items: []domain.TransactionItem{{ProductID: "gone", Quantity: 2, UnitPrice: decimal.NewFromInt(2)}}},
	}

	r := Sales(txs, nil, nil, reportTime)

	assert.Equal(t, 1, r.Transactions)
	assert.Equal(t, "4", r.Revenue.String())
	require.Len(t, r.Categories, 1)
	assert.Equal(t, "Unknown", r.Categories[0].Category)
}

func TestSalesEmptyLog(t *testing.T) {
	r := Sales(nil, nil, nil, reportTime)
	assert.Zero(t, r.Transactions)
	assert.True(t, r.AverageTransaction.IsZero())
	assert.Empty(t, r.TopProducts)
}

func TestTopProductsAreCapped(t *testing.T) {
	var items []domain.TransactionItem
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		items = append(items, domain.TransactionItem{ProductID: id, Quantity: 1, UnitPrice: decimal.NewFromInt(1)})
	}
	r := Sales([]domain.Transaction{{Status: domain.StatusCompleted, Items: items, Total: decimal.NewFromInt(7)}}, nil, nil, reportTime)
	assert.Len(t, r.TopProducts, TopProductLimit)
	assert.Equal(t, "a", r.TopProducts[0].ProductID)
}

func TestInventory(t *testing.T) {
	products := []domain.Product{
		{ID: "1", Price: decimal.RequireFromString("2.99"), Stock: 45, LowStockThreshold: 10},
		{ID: "2", Price: decimal.RequireFromString("3.49"), Stock: 10, LowStockThreshold: 15},
		{ID: "3", Price: decimal.RequireFromString("1.29"), Stock: 0, LowStockThreshold: 20},
		{ID: "4", Price: decimal.RequireFromString("5.99"), Stock: -2, LowStockThreshold: 8},
	}

	r := Inventory(products, reportTime)

	assert.Equal(t, 4, r.Products)
	assert.Len(t, r.LowStock, 3)
	assert.Len(t, r.OutOfStock, 2)
	assert.Equal(t, "169.45", r.StockValue.String())
}

func TestWriteTransactionsCSV(t *testing.T) {
	ds := seeded(t)
	var buf bytes.Buffer

	require.NoError(t, WriteTransactionsCSV(&buf, ds.Transactions))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "id", records[0][0])
	assert.Equal(t, []string{"TXN001", "2024-01-15T10:30:00Z", "3", "1", "3", "Credit Card", "9.47", "0.76", "0.00", "10.23", "completed"}, records[1])
}

func TestWriteInventoryCSVQuotesNames(t *testing.T) {
	var buf bytes.Buffer
	products := []domain.Product{{ID: "9", Name: `Chips, "Salted"`, Category: "Snacks", Price: decimal.RequireFromString("1.5"), Stock: 0}}

	require.NoError(t, WriteInventoryCSV(&buf, products))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, `Chips, "Salted"`, records[1][2])
	assert.Equal(t, "1.50", records[1][4])
	assert.Equal(t, "out_of_stock", records[1][7])
}

func TestWriteSalesCSVAndHTML(t *testing.T) {
	ds := seeded(t)
	r := Sales(ds.Transactions, ds.Products, ds.Users, reportTime)

	var csvBuf bytes.Buffer
	require.NoError(t, WriteSalesCSV(&csvBuf, r))
	assert.Contains(t, csvBuf.String(), "summary,revenue,27.68")
	assert.Contains(t, csvBuf.String(), "top_product,Coca Cola - 12 Pack,3")

	var htmlBuf bytes.Buffer
	require.NoError(t, WriteSalesHTML(&htmlBuf, r))
	out := htmlBuf.String()
	assert.True(t, strings.HasPrefix(out, "<!doctype html>"))
	assert.Contains(t, out, "John Cashier")
	assert.Contains(t, out, "Revenue: 27.68")
}
