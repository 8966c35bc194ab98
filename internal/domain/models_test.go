package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDisplayRoundsHalfUp(t *testing.T) {
	assert.Equal(t, "10.23", Display(decimal.RequireFromString("10.2276")).StringFixed(2))
	assert.Equal(t, "0.76", Display(decimal.RequireFromString("0.7576")).StringFixed(2))
	assert.Equal(t, "1.01", Display(decimal.RequireFromString("1.005")).StringFixed(2))
}

func TestProductStockFlags(t *testing.T) {
	p := Product{Stock: 10, LowStockThreshold: 10}
	assert.True(t, p.IsLowStock())
	assert.False(t, p.IsOutOfStock())

	p.Stock = -2
	assert.True(t, p.IsOutOfStock())
}

func TestCartLineTotalAndItemCount(t *testing.T) {
	line := CartLine{ProductID: "1", Quantity: 2, UnitPrice: decimal.RequireFromString("2.99")}
	assert.True(t, line.LineTotal().Equal(decimal.RequireFromString("5.98")))

	tx := Transaction{Items: []TransactionItem{{Quantity: 2}, {Quantity: 1}}}
	assert.Equal(t, 3, tx.ItemCount())
}

func TestStockAdjustmentsMergeRepeatedProducts(t *testing.T) {
	tx := Transaction{Items: []TransactionItem{
		{ProductID: "5", Quantity: 1},
		{ProductID: "1", Quantity: 2},
		{ProductID: "5", Quantity: 3},
	}}

	assert.Equal(t, []StockAdjustment{
		{ProductID: "5", Quantity: 4},
		{ProductID: "1", Quantity: 2},
	}, tx.StockAdjustments())
}
