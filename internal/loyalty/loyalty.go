// Package loyalty awards points and purchase totals to customers after checkout.
package loyalty

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"superpos/backend/internal/domain"
)

const (
	TierBronze   = "Bronze"
	TierSilver   = "Silver"
	TierGold     = "Gold"
	TierPlatinum = "Platinum"
)

var (
	platinumFloor = decimal.NewFromInt(1000)
	goldFloor     = decimal.NewFromInt(500)
	silverFloor   = decimal.NewFromInt(200)
)

// TierFor maps lifetime spend to a customer tier.
func TierFor(totalPurchases decimal.Decimal) string {
	switch {
	case totalPurchases.GreaterThanOrEqual(platinumFloor):
		return TierPlatinum
	case totalPurchases.GreaterThanOrEqual(goldFloor):
		return TierGold
	case totalPurchases.GreaterThanOrEqual(silverFloor):
		return TierSilver
	default:
		return TierBronze
	}
}

type CustomerStore interface {
	AdjustLoyaltyPoints(ctx context.Context, id string, delta int) (*domain.Customer, error)
	RecordPurchase(ctx context.Context, id string, amount decimal.Decimal, at time.Time) (*domain.Customer, error)
}

type Accrual struct {
	customers     CustomerStore
	pointsPerUnit int
	logger        *zap.Logger
}

func NewAccrual(customers CustomerStore, pointsPerUnit int, logger *zap.Logger) *Accrual {
	if pointsPerUnit < 0 {
		pointsPerUnit = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accrual{customers: customers, pointsPerUnit: pointsPerUnit, logger: logger}
}

// Points returns the points earned for a transaction total: one batch of
// pointsPerUnit for every whole currency unit spent.
func (a *Accrual) Points(total decimal.Decimal) int {
	if total.IsNegative() {
		return 0
	}
	return int(total.Floor().IntPart()) * a.pointsPerUnit
}

// Apply has the cart.CheckoutHook signature. Sales without a customer are ignored.
func (a *Accrual) Apply(ctx context.Context, tx domain.Transaction, customer *domain.Customer) error {
	if customer == nil || customer.ID == "" {
		return nil
	}

	if _, err := a.customers.RecordPurchase(ctx, customer.ID, tx.Total, tx.Timestamp); err != nil {
		return fmt.Errorf("record purchase for customer %s: %w", customer.ID, err)
	}

	points := a.Points(tx.Total)
	if points == 0 {
		return nil
	}
	updated, err := a.customers.AdjustLoyaltyPoints(ctx, customer.ID, points)
	if err != nil {
		return fmt.Errorf("award %d points to customer %s: %w", points, customer.ID, err)
	}

	a.logger.Info("loyalty points awarded",
		zap.String("customer_id", customer.ID),
		zap.String("transaction_id", tx.ID),
		zap.Int("points", points),
		zap.Int("balance", updated.LoyaltyPoints),
	)
	return nil
}
