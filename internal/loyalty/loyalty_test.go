package loyalty

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superpos/backend/internal/cart"
	"superpos/backend/internal/domain"
	"superpos/backend/internal/seed"
	"superpos/backend/internal/store/memory"
)

func TestTierFor(t *testing.T) {
	cases := map[string]string{
		"1245.67": TierPlatinum,
		"1000":    TierPlatinum,
		"567.89":  TierGold,
		"200":     TierSilver,
		"199.99":  TierBronze,
		"0":       TierBronze,
	}
	for amount, want := range cases {
		assert.Equal(t, want, TierFor(decimal.RequireFromString(amount)), amount)
	}
}

func TestPointsFloorsTotal(t *testing.T) {
	a := NewAccrual(nil, 1, nil)
	assert.Equal(t, 10, a.Points(decimal.RequireFromString("10.2276")))
	assert.Equal(t, 0, a.Points(decimal.RequireFromString("0.99")))
	assert.Equal(t, 0, a.Points(decimal.RequireFromString("-3")))

	double := NewAccrual(nil, 2, nil)
	assert.Equal(t, 34, double.Points(decimal.RequireFromString("17.45")))
}

func TestAccrualHookAfterCheckout(t *testing.T) {
	ctx := context.Background()
	s, err := memory.New(seed.Dataset{
		Products: []domain.Product{
			{ID: "1", Name: "Bread - Whole Wheat", Category: "Bakery", Price: decimal.RequireFromString("2.99"), Stock: 45},
			{ID: "2", Name: "Milk - 2% 1 Gallon", Category: "Dairy", Price: decimal.RequireFromString("3.49"), Stock: 23},
		},
		Customers: []domain.Customer{
			{ID: "1", Name: "Sarah Johnson", LoyaltyPoints: 2450, TotalPurchases: decimal.RequireFromString("1245.67")},
		},
	})
	require.NoError(t, err)

	accrual := NewAccrual(s, 1, nil)
	opts := cart.DefaultOptions()
	opts.Hooks = []cart.CheckoutHook{accrual.Apply}
	opts.Now = func() time.Time { return time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC) }
	engine := cart.New(s, opts)

	bread, _ := s.FindProductByID(ctx, "1")
	milk, _ := s.FindProductByID(ctx, "2")
	require.NoError(t, engine.AddItem(*bread, 2))
	require.NoError(t, engine.AddItem(*milk, 1))
	customer, _ := s.FindCustomerByID(ctx, "1")
	engine.SetCustomer(customer)

	_, err = engine.Checkout(ctx, "Cash", "3")
	require.NoError(t, err)

	updated, err := s.FindCustomerByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 2460, updated.LoyaltyPoints)
	assert.Equal(t, "1255.8976", updated.TotalPurchases.String())
	assert.Equal(t, 2024, updated.LastVisit.Year())
}

func TestAccrualIgnoresAnonymousSales(t *testing.T) {
	a := NewAccrual(nil, 1, nil)
	err := a.Apply(context.Background(), domain.Transaction{Total: decimal.RequireFromString("5")}, nil)
	assert.NoError(t, err)
}

func TestAccrualReportsUnknownCustomer(t *testing.T) {
	s, err := memory.New(seed.Dataset{})
	require.NoError(t, err)

	a := NewAccrual(s, 1, nil)
	err = a.Apply(context.Background(), domain.Transaction{Total: decimal.RequireFromString("5")}, &domain.Customer{ID: "ghost"})
	assert.Error(t, err)
}
