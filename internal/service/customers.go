package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"superpos/backend/internal/domain"
	"superpos/backend/internal/loyalty"
	"superpos/backend/internal/store"
)

func (s *Service) ListCustomers(ctx context.Context, query string) ([]domain.CustomerView, error) {
	if _, err := requireRole(ctx); err != nil {
		return nil, err
	}

	var (
		customers []domain.Customer
		err       error
	)
	if strings.TrimSpace(query) == "" {
		customers, err = s.repo.ListCustomers(ctx)
	} else {
		customers, err = s.repo.SearchCustomers(ctx, query)
	}
	if err != nil {
		return nil, err
	}

	views := make([]domain.CustomerView, 0, len(customers))
	for _, c := range customers {
		views = append(views, customerView(c))
	}
	return views, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.CustomerView, error) {
	if _, err := requireRole(ctx); err != nil {
		return domain.CustomerView{}, err
	}
	customer, err := s.repo.FindCustomerByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.CustomerView{}, err
	}
	return customerView(*customer), nil
}

// CreateCustomer registers a new loyalty member with no points or purchases.
func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerUpsertRequest) (domain.CustomerView, error) {
	if _, err := requireRole(ctx); err != nil {
		return domain.CustomerView{}, err
	}
	customer, err := customerFromRequest(req)
	if err != nil {
		return domain.CustomerView{}, err
	}
	customer.TotalPurchases = decimal.Zero

	saved, err := s.repo.UpsertCustomer(ctx, customer)
	if err != nil {
		return domain.CustomerView{}, err
	}
	s.audit(ctx, "create", "customer", saved.ID)
	return customerView(*saved), nil
}

// UpdateCustomer changes contact details and keeps loyalty history intact.
func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpsertRequest) (domain.CustomerView, error) {
	if _, err := requireRole(ctx); err != nil {
		return domain.CustomerView{}, err
	}
	changes, err := customerFromRequest(req)
	if err != nil {
		return domain.CustomerView{}, err
	}

	saved, err := s.repo.UpdateCustomerContact(ctx, strings.TrimSpace(id), domain.CustomerContact{
		Name:  changes.Name,
		Email: changes.Email,
		Phone: changes.Phone,
	})
	if err != nil {
		return domain.CustomerView{}, err
	}
	s.audit(ctx, "update", "customer", saved.ID)
	return customerView(*saved), nil
}

// GiftLoyaltyPoints credits points outside a purchase. Managers and admins only.
func (s *Service) GiftLoyaltyPoints(ctx context.Context, id string, req domain.GiftPointsRequest) (domain.CustomerView, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.CustomerView{}, err
	}
	if req.Points <= 0 {
		return domain.CustomerView{}, fmt.Errorf("points must be positive: %w", store.ErrInvalidInput)
	}

	customer, err := s.repo.AdjustLoyaltyPoints(ctx, strings.TrimSpace(id), req.Points)
	if err != nil {
		return domain.CustomerView{}, err
	}
	s.audit(ctx, "gift_points", "customer", customer.ID,
		zap.Int("points", req.Points),
		zap.String("reason", strings.TrimSpace(req.Reason)),
	)
	return customerView(*customer), nil
}

func customerFromRequest(req domain.CustomerUpsertRequest) (domain.Customer, error) {
	customer := domain.Customer{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.ToLower(strings.TrimSpace(req.Email)),
		Phone: strings.TrimSpace(req.Phone),
	}
	if customer.Name == "" {
		return domain.Customer{}, fmt.Errorf("name is required: %w", store.ErrInvalidInput)
	}
	if customer.Email != "" && !strings.Contains(customer.Email, "@") {
		return domain.Customer{}, fmt.Errorf("email is invalid: %w", store.ErrInvalidInput)
	}
	return customer, nil
}

func customerView(c domain.Customer) domain.CustomerView {
	return domain.CustomerView{Customer: c, Tier: loyalty.TierFor(c.TotalPurchases)}
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
