package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"superpos/backend/internal/domain"
	"superpos/backend/internal/seed"
	"superpos/backend/internal/store"
	"superpos/backend/internal/xid"
)

type Store struct {
	mu           sync.RWMutex
	products     map[string]domain.Product
	productOrder []string
	customers    map[string]domain.Customer
	customerOrd  []string
	transactions []domain.Transaction
	txIndex      map[string]int
	users        map[string]domain.User
	userOrder    []string
}

var _ store.Repository = (*Store)(nil)

// New builds a store from a dataset. Plain-text seed passwords are hashed.
func New(ds seed.Dataset) (*Store, error) {
	s := &Store{
		products:  make(map[string]domain.Product, len(ds.Products)),
		customers: make(map[string]domain.Customer, len(ds.Customers)),
		txIndex:   make(map[string]int, len(ds.Transactions)),
		users:     make(map[string]domain.User, len(ds.Users)),
	}

	for _, p := range ds.Products {
		if _, exists := s.products[p.ID]; !exists {
			s.productOrder = append(s.productOrder, p.ID)
		}
		s.products[p.ID] = p
	}
	for _, c := range ds.Customers {
		if _, exists := s.customers[c.ID]; !exists {
			s.customerOrd = append(s.customerOrd, c.ID)
		}
		s.customers[c.ID] = c
	}
	for _, tx := range ds.Transactions {
		if _, exists := s.txIndex[tx.ID]; exists {
			return nil, fmt.Errorf("duplicate seed transaction %s: %w", tx.ID, store.ErrInvalidInput)
		}
		s.txIndex[tx.ID] = len(s.transactions)
		s.transactions = append(s.transactions, cloneTransaction(tx))
	}
	for _, u := range ds.Users {
		if u.Password != "" && !isPasswordHash(u.Password) {
			hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("hash seed password for %s: %w", u.Email, err)
			}
			u.Password = string(hash)
		}
		key := strings.ToLower(strings.TrimSpace(u.Email))
		if _, exists := s.users[key]; !exists {
			s.userOrder = append(s.userOrder, key)
		}
		s.users[key] = u
	}

	return s, nil
}

// NewSeeded returns a store loaded with the embedded demo dataset.
func NewSeeded() *Store {
	ds, err := seed.Default()
	if err != nil {
		panic(fmt.Sprintf("memory: embedded seed is invalid: %v", err))
	}
	s, err := New(ds)
	if err != nil {
		panic(fmt.Sprintf("memory: build seeded store: %v", err))
	}
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, len(s.productOrder))
	for _, id := range s.productOrder {
		result = append(result, s.products[id])
	}
	return result, nil
}

func (s *Store) FindProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) FindProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, store.ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.productOrder {
		p := s.products[id]
		if p.Barcode == barcode {
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) SearchProducts(_ context.Context, text string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0)
	for _, id := range s.productOrder {
		p := s.products[id]
		if store.MatchProduct(p, text) {
			result = append(result, p)
		}
	}
	return result, nil
}

func (s *Store) DecrementStock(_ context.Context, adjustments []domain.StockAdjustment) error {
	if err := store.ValidateAdjustments(adjustments); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.decrementLocked(adjustments)
	return nil
}

// RecordSale checks, decrements and appends under one write lock.
func (s *Store) RecordSale(_ context.Context, tx domain.Transaction, checkStock bool) error {
	if tx.ID == "" {
		return store.ErrInvalidInput
	}
	adjustments := tx.StockAdjustments()
	if err := store.ValidateAdjustments(adjustments); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.txIndex[tx.ID]; exists {
		return fmt.Errorf("duplicate transaction %s: %w", tx.ID, store.ErrInvalidInput)
	}
	if checkStock {
		for _, adj := range adjustments {
			p, ok := s.products[adj.ProductID]
			if !ok {
				return fmt.Errorf("product %s no longer exists: %w", adj.ProductID, store.ErrInsufficientStock)
			}
			if p.Stock < adj.Quantity {
				return fmt.Errorf("product %s has %d in stock, %d requested: %w", adj.ProductID, p.Stock, adj.Quantity, store.ErrInsufficientStock)
			}
		}
	}

	s.decrementLocked(adjustments)
	s.appendLocked(tx)
	return nil
}

func (s *Store) decrementLocked(adjustments []domain.StockAdjustment) {
	for _, adj := range adjustments {
		p, ok := s.products[adj.ProductID]
		if !ok {
			continue
		}
		p.Stock -= adj.Quantity
		s.products[adj.ProductID] = p
	}
}

func (s *Store) SetStock(_ context.Context, id string, stock int) (*domain.Product, error) {
	if stock < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p.Stock = stock
	s.products[id] = p
	return &p, nil
}

func (s *Store) UpsertProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if err := store.ValidateProduct(product); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if _, exists := s.products[product.ID]; !exists {
		s.productOrder = append(s.productOrder, product.ID)
	}
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Customer, 0, len(s.customerOrd))
	for _, id := range s.customerOrd {
		result = append(result, s.customers[id])
	}
	return result, nil
}

func (s *Store) FindCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) SearchCustomers(_ context.Context, text string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Customer, 0)
	for _, id := range s.customerOrd {
		c := s.customers[id]
		if store.MatchCustomer(c, text) {
			result = append(result, c)
		}
	}
	return result, nil
}

func (s *Store) AdjustLoyaltyPoints(_ context.Context, id string, delta int) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if c.LoyaltyPoints+delta < 0 {
		return nil, fmt.Errorf("loyalty points cannot go below zero: %w", store.ErrInvalidInput)
	}
	c.LoyaltyPoints += delta
	s.customers[id] = c
	return &c, nil
}

func (s *Store) RecordPurchase(_ context.Context, id string, amount decimal.Decimal, at time.Time) (*domain.Customer, error) {
	if amount.IsNegative() {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c.TotalPurchases = c.TotalPurchases.Add(amount)
	if at.After(c.LastVisit) {
		c.LastVisit = at.UTC()
	}
	s.customers[id] = c
	return &c, nil
}

func (s *Store) UpsertCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if err := store.ValidateCustomer(customer); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if _, exists := s.customers[customer.ID]; !exists {
		s.customerOrd = append(s.customerOrd, customer.ID)
	}
	s.customers[customer.ID] = customer
	return &customer, nil
}

func (s *Store) UpdateCustomerContact(_ context.Context, id string, contact domain.CustomerContact) (*domain.Customer, error) {
	if err := store.ValidateContact(contact); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c.Name = contact.Name
	c.Email = contact.Email
	c.Phone = contact.Phone
	s.customers[id] = c
	return &c, nil
}

func (s *Store) AppendTransaction(_ context.Context, tx domain.Transaction) error {
	if tx.ID == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.txIndex[tx.ID]; exists {
		return fmt.Errorf("duplicate transaction %s: %w", tx.ID, store.ErrInvalidInput)
	}
	s.appendLocked(tx)
	return nil
}

func (s *Store) appendLocked(tx domain.Transaction) {
	s.txIndex[tx.ID] = len(s.transactions)
	s.transactions = append(s.transactions, cloneTransaction(tx))
}

func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.FilterTransactions(ctx, store.TransactionFilter{})
}

func (s *Store) FilterTransactions(_ context.Context, filter store.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		if filter.Match(tx) {
			result = append(result, cloneTransaction(tx))
		}
	}
	return result, nil
}

func (s *Store) FindTransactionByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.txIndex[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	tx := cloneTransaction(s.transactions[idx])
	return &tx, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.User, 0, len(s.userOrder))
	for _, key := range s.userOrder {
		result = append(result, s.users[key])
	}
	return result, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, id string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, u := range s.users {
		if u.ID == id {
			u.Password = password
			s.users[key] = u
			return nil
		}
	}
	return store.ErrNotFound
}

func cloneTransaction(tx domain.Transaction) domain.Transaction {
	tx.Items = slices.Clone(tx.Items)
	return tx
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
