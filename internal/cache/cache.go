package cache

import (
	"context"
	"time"

	"superpos/backend/internal/domain"
)

type ReportCache interface {
	GetSalesReport(ctx context.Context, key string) (*domain.SalesReport, bool, error)
	SetSalesReport(ctx context.Context, key string, report *domain.SalesReport, ttl time.Duration) error
	// InvalidateSalesReports drops every cached sales report.
	InvalidateSalesReports(ctx context.Context) error
}

type NoopReportCache struct{}

func (NoopReportCache) GetSalesReport(_ context.Context, _ string) (*domain.SalesReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) SetSalesReport(_ context.Context, _ string, _ *domain.SalesReport, _ time.Duration) error {
	return nil
}

func (NoopReportCache) InvalidateSalesReports(_ context.Context) error {
	return nil
}
