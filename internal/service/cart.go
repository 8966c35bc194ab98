package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"superpos/backend/internal/cart"
	"superpos/backend/internal/domain"
	"superpos/backend/internal/store"
)

// session returns the cart session of the acting operator, creating it on
// first use.
func (s *Service) session(ctx context.Context) (*session, domain.Actor, error) {
	actor, err := requireRole(ctx)
	if err != nil {
		return nil, domain.Actor{}, err
	}
	sess := s.sessions.get(actor.UserID, func() *cart.Engine {
		return cart.New(s.repo, s.settings.Cart)
	})
	return sess, actor, nil
}

func (s *Service) CartView(ctx context.Context) (domain.CartView, error) {
	sess, _, err := s.session(ctx)
	if err != nil {
		return domain.CartView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return viewOf(sess.engine), nil
}

// AddToCart resolves the product by id or barcode and adds it at its current
// catalog price. A zero quantity means one unit.
func (s *Service) AddToCart(ctx context.Context, req domain.AddToCartRequest) (domain.CartView, error) {
	sess, _, err := s.session(ctx)
	if err != nil {
		return domain.CartView{}, err
	}

	product, err := s.resolveProduct(ctx, req.ProductID, req.Barcode)
	if err != nil {
		return domain.CartView{}, err
	}
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.engine.AddItem(*product, qty); err != nil {
		return domain.CartView{}, err
	}
	return viewOf(sess.engine), nil
}

func (s *Service) UpdateCartItem(ctx context.Context, productID string, req domain.UpdateCartItemRequest) (domain.CartView, error) {
	sess, _, err := s.session(ctx)
	if err != nil {
		return domain.CartView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.engine.SetQuantity(strings.TrimSpace(productID), req.Quantity)
	return viewOf(sess.engine), nil
}

func (s *Service) RemoveCartItem(ctx context.Context, productID string) (domain.CartView, error) {
	sess, _, err := s.session(ctx)
	if err != nil {
		return domain.CartView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.engine.RemoveItem(strings.TrimSpace(productID))
	return viewOf(sess.engine), nil
}

func (s *Service) ClearCart(ctx context.Context) (domain.CartView, error) {
	sess, _, err := s.session(ctx)
	if err != nil {
		return domain.CartView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.engine.Clear()
	return viewOf(sess.engine), nil
}

// SetCartCustomer attaches a customer to the cart. An empty id detaches it.
func (s *Service) SetCartCustomer(ctx context.Context, req domain.SetCartCustomerRequest) (domain.CartView, error) {
	sess, _, err := s.session(ctx)
	if err != nil {
		return domain.CartView{}, err
	}

	var customer *domain.Customer
	if id := strings.TrimSpace(req.CustomerID); id != "" {
		customer, err = s.repo.FindCustomerByID(ctx, id)
		if err != nil {
			return domain.CartView{}, err
		}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.engine.SetCustomer(customer)
	return viewOf(sess.engine), nil
}

// Checkout completes the operator's cart. Stock and the log entry are
// committed together by the repository before the cart is cleared.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	sess, actor, err := s.session(ctx)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		return domain.CheckoutResponse{}, fmt.Errorf("payment_method is required: %w", store.ErrInvalidInput)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	tx, err := sess.engine.Checkout(ctx, method, actor.UserID)
	if err != nil {
		if !errors.Is(err, cart.ErrEmptyCart) && !errors.Is(err, store.ErrInsufficientStock) {
			s.logger.Error("checkout failed", zap.String("cashier_id", actor.UserID), zap.Error(err))
		}
		return domain.CheckoutResponse{}, err
	}

	if err := s.reports.InvalidateSalesReports(ctx); err != nil {
		s.logger.Warn("sales report cache invalidation failed", zap.String("transaction_id", tx.ID), zap.Error(err))
	}

	s.audit(ctx, "checkout", "transaction", tx.ID,
		zap.String("total", tx.Total.StringFixed(2)),
		zap.String("payment_method", tx.PaymentMethod),
		zap.Int("items", tx.ItemCount()),
	)
	return domain.CheckoutResponse{Transaction: tx, DisplayTotal: domain.Display(tx.Total)}, nil
}

func (s *Service) resolveProduct(ctx context.Context, productID string, barcode string) (*domain.Product, error) {
	if id := strings.TrimSpace(productID); id != "" {
		return s.repo.FindProductByID(ctx, id)
	}
	if code := strings.TrimSpace(barcode); code != "" {
		return s.repo.FindProductByBarcode(ctx, code)
	}
	return nil, fmt.Errorf("product_id or barcode is required: %w", store.ErrInvalidInput)
}

func viewOf(e *cart.Engine) domain.CartView {
	lines := e.Lines()
	views := make([]domain.CartLineView, 0, len(lines))
	for _, l := range lines {
		views = append(views, domain.CartLineView{CartLine: l, LineTotal: l.LineTotal()})
	}
	total := e.Total()
	return domain.CartView{
		Lines:        views,
		Customer:     e.Customer(),
		Subtotal:     e.Subtotal(),
		Tax:          e.Tax(),
		Discount:     e.Discount(),
		Total:        total,
		DisplayTotal: domain.Display(total),
		ItemCount:    e.ItemCount(),
	}
}
