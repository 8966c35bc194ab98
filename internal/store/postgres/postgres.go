package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"superpos/backend/internal/domain"
	"superpos/backend/internal/seed"
	"superpos/backend/internal/store"
	"superpos/backend/internal/xid"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

var _ store.Repository = (*Store)(nil)

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates missing tables. It is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Seed loads ds into an empty database. It does nothing once any product
// exists. User passwords are stored as given; plaintext ones are upgraded to
// bcrypt hashes on first login.
func (s *Store) Seed(ctx context.Context, ds seed.Dataset) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM products`).Scan(&count); err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, u := range ds.Users {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, name, role, employee_id, phone, shift, password, active, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now())
			ON CONFLICT (id) DO NOTHING
		`, u.ID, strings.ToLower(u.Email), u.Name, u.Role, u.EmployeeID, u.Phone, u.Shift, u.Password, u.Active)
		if err != nil {
			return false, fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}
	for _, p := range ds.Products {
		if _, err := upsertProduct(ctx, tx, p); err != nil {
			return false, fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}
	for _, c := range ds.Customers {
		if _, err := upsertCustomer(ctx, tx, c); err != nil {
			return false, fmt.Errorf("seed customer %s: %w", c.ID, err)
		}
	}
	for _, t := range ds.Transactions {
		if err := insertTransaction(ctx, tx, t); err != nil {
			return false, fmt.Errorf("seed transaction %s: %w", t.ID, err)
		}
	}

	return true, tx.Commit()
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const productColumns = `id, barcode, name, category, price, stock, low_stock_threshold, supplier, description`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Barcode, &p.Name, &p.Category, &p.Price, &p.Stock, &p.LowStockThreshold, &p.Supplier, &p.Description)
	return p, err
}

func (s *Store) queryProducts(ctx context.Context, where string, args ...any) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products `+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.queryProducts(ctx, "")
}

func (s *Store) FindProductByID(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) FindProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, store.ErrNotFound
	}
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE barcode = $1 ORDER BY seq LIMIT 1
	`, barcode))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) SearchProducts(ctx context.Context, text string) ([]domain.Product, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return s.ListProducts(ctx)
	}
	pattern := "%" + escapeLike(text) + "%"
	return s.queryProducts(ctx, `WHERE name ILIKE $1 OR category ILIKE $1 OR barcode LIKE $1`, pattern)
}

// DecrementStock applies all adjustments in one transaction. Rows for unknown
// products are simply not matched, and stock may go negative.
func (s *Store) DecrementStock(ctx context.Context, adjustments []domain.StockAdjustment) error {
	if err := store.ValidateAdjustments(adjustments); err != nil {
		return err
	}
	if len(adjustments) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, adj := range adjustments {
		if err := decrementStock(ctx, tx, adj, false); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecordSale decrements stock and inserts the transaction in one SQL
// transaction. In checked mode the guarded UPDATE matches no row when stock is
// short or the product is gone, and the whole sale is rolled back.
func (s *Store) RecordSale(ctx context.Context, t domain.Transaction, checkStock bool) error {
	if t.ID == "" {
		return store.ErrInvalidInput
	}
	adjustments := t.StockAdjustments()
	if err := store.ValidateAdjustments(adjustments); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, adj := range adjustments {
		if err := decrementStock(ctx, tx, adj, checkStock); err != nil {
			return err
		}
	}
	if err := insertTransaction(ctx, tx, t); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("duplicate transaction %s: %w", t.ID, store.ErrInvalidInput)
		}
		return err
	}

	return tx.Commit()
}

func decrementStock(ctx context.Context, q queryer, adj domain.StockAdjustment, checkStock bool) error {
	if !checkStock {
		_, err := q.ExecContext(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1
		`, adj.ProductID, adj.Quantity)
		return err
	}

	res, err := q.ExecContext(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1 AND stock >= $2
	`, adj.ProductID, adj.Quantity)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("product %s cannot cover %d units: %w", adj.ProductID, adj.Quantity, store.ErrInsufficientStock)
	}
	return nil
}

func (s *Store) SetStock(ctx context.Context, id string, stock int) (*domain.Product, error) {
	if stock < 0 {
		return nil, store.ErrInvalidInput
	}
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products SET stock = $2, updated_at = now() WHERE id = $1
		RETURNING `+productColumns, id, stock))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpsertProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := store.ValidateProduct(product); err != nil {
		return nil, err
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	return upsertProduct(ctx, s.db, product)
}

func upsertProduct(ctx context.Context, q queryer, p domain.Product) (*domain.Product, error) {
	saved, err := scanProduct(q.QueryRowContext(ctx, `
		INSERT INTO products (id, barcode, name, category, price, stock, low_stock_threshold, supplier, description, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now())
		ON CONFLICT (id) DO UPDATE SET
			barcode = EXCLUDED.barcode,
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			low_stock_threshold = EXCLUDED.low_stock_threshold,
			supplier = EXCLUDED.supplier,
			description = EXCLUDED.description,
			updated_at = now()
		RETURNING `+productColumns,
		p.ID, p.Barcode, p.Name, p.Category, p.Price, p.Stock, p.LowStockThreshold, p.Supplier, p.Description))
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

const customerColumns = `id, name, email, phone, loyalty_points, total_purchases, last_visit`

func scanCustomer(row rowScanner) (domain.Customer, error) {
	var c domain.Customer
	var lastVisit sql.NullTime
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.LoyaltyPoints, &c.TotalPurchases, &lastVisit); err != nil {
		return domain.Customer{}, err
	}
	if lastVisit.Valid {
		c.LastVisit = lastVisit.Time.UTC()
	}
	return c, nil
}

func (s *Store) queryCustomers(ctx context.Context, where string, args ...any) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers `+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.queryCustomers(ctx, "")
}

func (s *Store) FindCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) SearchCustomers(ctx context.Context, text string) ([]domain.Customer, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return s.ListCustomers(ctx)
	}
	pattern := "%" + escapeLike(text) + "%"
	return s.queryCustomers(ctx, `WHERE name ILIKE $1 OR email ILIKE $1 OR phone LIKE $1`, pattern)
}

func (s *Store) AdjustLoyaltyPoints(ctx context.Context, id string, delta int) (*domain.Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx, `
		UPDATE customers SET loyalty_points = loyalty_points + $2
		WHERE id = $1 AND loyalty_points + $2 >= 0
		RETURNING `+customerColumns, id, delta))
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if _, findErr := s.FindCustomerByID(ctx, id); findErr != nil {
		return nil, findErr
	}
	return nil, fmt.Errorf("loyalty points cannot go below zero: %w", store.ErrInvalidInput)
}

func (s *Store) RecordPurchase(ctx context.Context, id string, amount decimal.Decimal, at time.Time) (*domain.Customer, error) {
	if amount.IsNegative() {
		return nil, store.ErrInvalidInput
	}
	c, err := scanCustomer(s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET total_purchases = total_purchases + $2,
			last_visit = GREATEST(COALESCE(last_visit, $3), $3)
		WHERE id = $1
		RETURNING `+customerColumns, id, amount, at.UTC()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) UpsertCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if err := store.ValidateCustomer(customer); err != nil {
		return nil, err
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	return upsertCustomer(ctx, s.db, customer)
}

func upsertCustomer(ctx context.Context, q queryer, c domain.Customer) (*domain.Customer, error) {
	saved, err := scanCustomer(q.QueryRowContext(ctx, `
		INSERT INTO customers (id, name, email, phone, loyalty_points, total_purchases, last_visit)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			loyalty_points = EXCLUDED.loyalty_points,
			total_purchases = EXCLUDED.total_purchases,
			last_visit = EXCLUDED.last_visit
		RETURNING `+customerColumns,
		c.ID, c.Name, c.Email, c.Phone, c.LoyaltyPoints, c.TotalPurchases, nullTime(c.LastVisit)))
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *Store) UpdateCustomerContact(ctx context.Context, id string, contact domain.CustomerContact) (*domain.Customer, error) {
	if err := store.ValidateContact(contact); err != nil {
		return nil, err
	}
	c, err := scanCustomer(s.db.QueryRowContext(ctx, `
		UPDATE customers SET name = $2, email = $3, phone = $4
		WHERE id = $1
		RETURNING `+customerColumns, id, contact.Name, contact.Email, contact.Phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) AppendTransaction(ctx context.Context, t domain.Transaction) error {
	if t.ID == "" {
		return store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertTransaction(ctx, tx, t); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("duplicate transaction %s: %w", t.ID, store.ErrInvalidInput)
		}
		return err
	}
	return tx.Commit()
}

func insertTransaction(ctx context.Context, q queryer, t domain.Transaction) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO transactions (id, customer_id, subtotal, tax, discount, total, payment_method, cashier_id, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, t.ID, nullIfEmpty(t.CustomerID), t.Subtotal, t.Tax, t.Discount, t.Total, t.PaymentMethod, t.CashierID, string(t.Status), t.Timestamp.UTC())
	if err != nil {
		return err
	}

	for _, item := range t.Items {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO transaction_items (transaction_id, product_id, name, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5)
		`, t.ID, item.ProductID, item.Name, item.Quantity, item.UnitPrice); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.FilterTransactions(ctx, store.TransactionFilter{})
}

func (s *Store) FilterTransactions(ctx context.Context, filter store.TransactionFilter) ([]domain.Transaction, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.CashierID != "" {
		add("cashier_id = $%d", filter.CashierID)
	}
	if filter.CustomerID != "" {
		add("customer_id = $%d", filter.CustomerID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		add("created_at < $%d", filter.To.UTC())
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	return s.queryTransactions(ctx, where, args...)
}

func (s *Store) FindTransactionByID(ctx context.Context, id string) (*domain.Transaction, error) {
	txs, err := s.queryTransactions(ctx, "WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, store.ErrNotFound
	}
	return &txs[0], nil
}

func (s *Store) queryTransactions(ctx context.Context, where string, args ...any) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(customer_id, ''), subtotal, tax, discount, total, payment_method, cashier_id, status, created_at
		FROM transactions `+where+`
		ORDER BY seq
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]domain.Transaction, 0, 32)
	index := make(map[string]int)
	for rows.Next() {
		var t domain.Transaction
		var status string
		if err := rows.Scan(&t.ID, &t.CustomerID, &t.Subtotal, &t.Tax, &t.Discount, &t.Total, &t.PaymentMethod, &t.CashierID, &status, &t.Timestamp); err != nil {
			return nil, err
		}
		t.Status = domain.TransactionStatus(status)
		t.Timestamp = t.Timestamp.UTC()
		t.Items = []domain.TransactionItem{}
		index[t.ID] = len(txs)
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return txs, nil
	}

	ids := make([]string, 0, len(txs))
	for _, t := range txs {
		ids = append(ids, t.ID)
	}
	itemRows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, product_id, name, quantity, unit_price
		FROM transaction_items
		WHERE transaction_id = ANY($1)
		ORDER BY id ASC
	`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var txID string
		var item domain.TransactionItem
		if err := itemRows.Scan(&txID, &item.ProductID, &item.Name, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		if i, ok := index[txID]; ok {
			txs[i].Items = append(txs[i].Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, name, role, employee_id, phone, shift, password, active, created_at
		FROM users
		ORDER BY seq
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, 16)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.EmployeeID, &u.Phone, &u.Shift, &u.Password, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, role, employee_id, phone, shift, password, active, created_at
		FROM users
		WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email))).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.EmployeeID, &u.Phone, &u.Shift, &u.Password, &u.Active, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, id string, password string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password = $2 WHERE id = $1`, id, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func escapeLike(text string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(text)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val time.Time) any {
	if val.IsZero() {
		return nil
	}
	return val.UTC()
}
