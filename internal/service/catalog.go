package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"superpos/backend/internal/domain"
	"superpos/backend/internal/store"
)

// ListProducts returns the catalog, filtered by query when it is not blank.
func (s *Service) ListProducts(ctx context.Context, query string) ([]domain.Product, error) {
	if _, err := requireRole(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return s.repo.ListProducts(ctx)
	}
	return s.repo.SearchProducts(ctx, query)
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if _, err := requireRole(ctx); err != nil {
		return nil, err
	}
	return s.repo.FindProductByID(ctx, strings.TrimSpace(id))
}

// ScanBarcode looks up a scanned code. An unknown barcode is reported as not
// found rather than as an error so the register can prompt for manual entry.
func (s *Service) ScanBarcode(ctx context.Context, barcode string) (domain.ScanResult, error) {
	if _, err := requireRole(ctx); err != nil {
		return domain.ScanResult{}, err
	}
	code := strings.TrimSpace(barcode)
	if code == "" {
		return domain.ScanResult{}, fmt.Errorf("barcode is required: %w", store.ErrInvalidInput)
	}

	product, err := s.repo.FindProductByBarcode(ctx, code)
	if err != nil {
		if isNotFound(err) {
			return domain.ScanResult{Barcode: code}, nil
		}
		return domain.ScanResult{}, err
	}
	return domain.ScanResult{Found: true, Barcode: code, Product: product}, nil
}

func (s *Service) UpsertProduct(ctx context.Context, req domain.ProductUpsertRequest) (*domain.Product, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return nil, err
	}

	product := domain.Product{
		ID:                strings.TrimSpace(req.ID),
		Barcode:           strings.TrimSpace(req.Barcode),
		Name:              strings.TrimSpace(req.Name),
		Category:          strings.TrimSpace(req.Category),
		Price:             req.Price,
		Stock:             req.Stock,
		LowStockThreshold: req.LowStockThreshold,
		Supplier:          strings.TrimSpace(req.Supplier),
		Description:       strings.TrimSpace(req.Description),
	}
	if product.Name == "" || product.Category == "" {
		return nil, fmt.Errorf("name and category are required: %w", store.ErrInvalidInput)
	}
	if product.Price.IsNegative() || product.Stock < 0 || product.LowStockThreshold < 0 {
		return nil, fmt.Errorf("price, stock and threshold must not be negative: %w", store.ErrInvalidInput)
	}

	saved, err := s.repo.UpsertProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, "upsert", "product", saved.ID, zap.String("price", saved.Price.String()), zap.Int("stock", saved.Stock))
	return saved, nil
}

// SetStock overwrites the on-hand count, used for receiving and stock takes.
func (s *Service) SetStock(ctx context.Context, id string, req domain.SetStockRequest) (*domain.Product, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return nil, err
	}
	if req.Stock < 0 {
		return nil, fmt.Errorf("stock must not be negative: %w", store.ErrInvalidInput)
	}

	product, err := s.repo.SetStock(ctx, strings.TrimSpace(id), req.Stock)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, "set_stock", "product", product.ID, zap.Int("stock", product.Stock))
	return product, nil
}
