package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"superpos/backend/internal/domain"
	"superpos/backend/internal/report"
	"superpos/backend/internal/store"
)

// ListTransactions returns the log filtered by query. Employees only see
// sales they rang up themselves.
func (s *Service) ListTransactions(ctx context.Context, query domain.TransactionQuery) ([]domain.Transaction, error) {
	actor, err := requireRole(ctx)
	if err != nil {
		return nil, err
	}
	filter, err := filterFromQuery(query)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleEmployee {
		filter.CashierID = actor.UserID
	}
	return s.repo.FilterTransactions(ctx, filter)
}

func (s *Service) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	actor, err := requireRole(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := s.repo.FindTransactionByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleEmployee && tx.CashierID != actor.UserID {
		return nil, store.ErrNotFound
	}
	return tx, nil
}

// SalesReport summarises completed transactions in [from, to). Results are
// cached per range for the configured TTL.
func (s *Service) SalesReport(ctx context.Context, from *time.Time, to *time.Time) (domain.SalesReport, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.SalesReport{}, err
	}
	filter, err := filterFromQuery(domain.TransactionQuery{From: from, To: to})
	if err != nil {
		return domain.SalesReport{}, err
	}

	key := salesCacheKey(filter)
	if cached, ok, err := s.reports.GetSalesReport(ctx, key); err != nil {
		s.logger.Warn("sales report cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		return *cached, nil
	}

	txs, err := s.repo.FilterTransactions(ctx, filter)
	if err != nil {
		return domain.SalesReport{}, err
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.SalesReport{}, err
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return domain.SalesReport{}, err
	}

	result := report.Sales(txs, products, users, s.now())
	result.From = from
	result.To = to

	if err := s.reports.SetSalesReport(ctx, key, &result, s.settings.ReportCacheTTL); err != nil {
		s.logger.Warn("sales report cache write failed", zap.String("key", key), zap.Error(err))
	}
	return result, nil
}

func (s *Service) InventoryReport(ctx context.Context) (domain.InventoryReport, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.InventoryReport{}, err
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.InventoryReport{}, err
	}
	return report.Inventory(products, s.now()), nil
}

// ListEmployees returns staff accounts with password material removed.
func (s *Service) ListEmployees(ctx context.Context) ([]domain.User, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return nil, err
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Password = ""
	}
	return users, nil
}

func filterFromQuery(q domain.TransactionQuery) (store.TransactionFilter, error) {
	filter := store.TransactionFilter{
		CashierID:  strings.TrimSpace(q.CashierID),
		CustomerID: strings.TrimSpace(q.CustomerID),
		Status:     q.Status,
	}
	switch filter.Status {
	case "", domain.StatusCompleted, domain.StatusRefunded, domain.StatusVoided:
	default:
		return store.TransactionFilter{}, fmt.Errorf("unknown status %q: %w", q.Status, store.ErrInvalidInput)
	}
	if q.From != nil {
		filter.From = q.From.UTC()
	}
	if q.To != nil {
		filter.To = q.To.UTC()
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.From.Before(filter.To) {
		return store.TransactionFilter{}, fmt.Errorf("from must be before to: %w", store.ErrInvalidInput)
	}
	return filter, nil
}

func salesCacheKey(f store.TransactionFilter) string {
	bound := func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format(time.RFC3339)
	}
	return fmt.Sprintf("sales:%s:%s", bound(f.From), bound(f.To))
}
