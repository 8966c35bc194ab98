package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superpos/backend/internal/domain"
)

func TestDefaultDataset(t *testing.T) {
	ds, err := Default()
	require.NoError(t, err)

	assert.Len(t, ds.Users, 3)
	assert.Len(t, ds.Products, 8)
	assert.Len(t, ds.Customers, 3)
	require.Len(t, ds.Transactions, 2)

	bread := ds.Products[0]
	assert.Equal(t, "Bread - Whole Wheat", bread.Name)
	assert.Equal(t, "2.99", bread.Price.String())
	assert.Equal(t, 45, bread.Stock)

	first := ds.Transactions[0]
	assert.Equal(t, "TXN001", first.ID)
	assert.Equal(t, "10.23", first.Total.String())
	assert.Equal(t, domain.StatusCompleted, first.Status)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "Bread - Whole Wheat", first.Items[0].Name)

	assert.Equal(t, "1.5", ds.Transactions[1].Discount.String())
	assert.Equal(t, 2024, ds.Customers[0].LastVisit.Year())
	assert.Equal(t, domain.RoleEmployee, ds.Users[2].Role)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
products:
  - id: "p1"
    barcode: "111"
    name: Rice 5kg
    category: Grocery
    price: "8.50"
    stock: 3
    low_stock_threshold: 5
`), 0o600))

	ds, err := Load(path)
	require.NoError(t, err)
	require.Len(t, ds.Products, 1)
	assert.True(t, ds.Products[0].IsLowStock())
	assert.Empty(t, ds.Users)
}

func TestParseRejectsBadMoney(t *testing.T) {
	_, err := Parse([]byte(`
products:
  - id: "p1"
    price: "abc"
`))
	require.Error(t, err)
}
