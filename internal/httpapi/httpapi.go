package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"superpos/backend/internal/cart"
	"superpos/backend/internal/domain"
	"superpos/backend/internal/report"
	"superpos/backend/internal/service"
	"superpos/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	logger        *zap.Logger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		logger:        logger,
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

var (
	anyRole  = []string{domain.RoleAdmin, domain.RoleManager, domain.RoleEmployee}
	managers = []string{domain.RoleAdmin, domain.RoleManager}
)

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)

	mux.HandleFunc("GET /api/v1/products", a.requireAuth(a.handleListProducts, anyRole...))
	mux.HandleFunc("POST /api/v1/products", a.requireAuth(a.handleUpsertProduct, managers...))
	mux.HandleFunc("GET /api/v1/products/{id}", a.requireAuth(a.handleGetProduct, anyRole...))
	mux.HandleFunc("PUT /api/v1/products/{id}", a.requireAuth(a.handleUpsertProduct, managers...))
	mux.HandleFunc("PATCH /api/v1/products/{id}/stock", a.requireAuth(a.handleSetStock, managers...))
	mux.HandleFunc("GET /api/v1/products/barcode/{barcode}", a.requireAuth(a.handleScanBarcode, anyRole...))

	mux.HandleFunc("GET /api/v1/customers", a.requireAuth(a.handleListCustomers, anyRole...))
	mux.HandleFunc("POST /api/v1/customers", a.requireAuth(a.handleCreateCustomer, anyRole...))
	mux.HandleFunc("GET /api/v1/customers/{id}", a.requireAuth(a.handleGetCustomer, anyRole...))
	mux.HandleFunc("PUT /api/v1/customers/{id}", a.requireAuth(a.handleUpdateCustomer, anyRole...))
	mux.HandleFunc("POST /api/v1/customers/{id}/loyalty-points", a.requireAuth(a.handleGiftPoints, managers...))

	mux.HandleFunc("GET /api/v1/cart", a.requireAuth(a.handleCart, anyRole...))
	mux.HandleFunc("DELETE /api/v1/cart", a.requireAuth(a.handleClearCart, anyRole...))
	mux.HandleFunc("POST /api/v1/cart/items", a.requireAuth(a.handleAddToCart, anyRole...))
	mux.HandleFunc("PATCH /api/v1/cart/items/{productID}", a.requireAuth(a.handleUpdateCartItem, anyRole...))
	mux.HandleFunc("DELETE /api/v1/cart/items/{productID}", a.requireAuth(a.handleRemoveCartItem, anyRole...))
	mux.HandleFunc("PUT /api/v1/cart/customer", a.requireAuth(a.handleSetCartCustomer, anyRole...))
	mux.HandleFunc("POST /api/v1/cart/checkout", a.requireAuth(a.handleCheckout, anyRole...))

	mux.HandleFunc("GET /api/v1/transactions", a.requireAuth(a.handleListTransactions, anyRole...))
	mux.HandleFunc("GET /api/v1/transactions/{id}", a.requireAuth(a.handleGetTransaction, anyRole...))

	mux.HandleFunc("GET /api/v1/reports/sales", a.requireAuth(a.handleSalesReport, managers...))
	mux.HandleFunc("GET /api/v1/reports/inventory", a.requireAuth(a.handleInventoryReport, managers...))
	mux.HandleFunc("GET /api/v1/employees", a.requireAuth(a.handleEmployees, managers...))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			a.writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			a.writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !slices.Contains(roles, actor.Role) {
			a.writeError(w, http.StatusForbidden, service.ErrForbidden)
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		a.writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrInactiveAccount) {
			status = http.StatusUnauthorized
		}
		a.writeError(w, status, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

// handleUpsertProduct serves both create and full replace; the path id wins
// over any id in the body.
func (a *API) handleUpsertProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	status := http.StatusCreated
	if id := r.PathValue("id"); id != "" {
		req.ID = id
		status = http.StatusOK
	}

	product, err := a.service.UpsertProduct(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, status, map[string]any{"product": product})
}

func (a *API) handleSetStock(w http.ResponseWriter, r *http.Request) {
	var req domain.SetStockRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	product, err := a.service.SetStock(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleScanBarcode(w http.ResponseWriter, r *http.Request) {
	result, err := a.service.ScanBarcode(r.Context(), r.PathValue("barcode"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := a.service.ListCustomers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (a *API) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := a.service.GetCustomer(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
}

func (a *API) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerUpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	customer, err := a.service.CreateCustomer(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"customer": customer})
}

func (a *API) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerUpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	customer, err := a.service.UpdateCustomer(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
}

func (a *API) handleGiftPoints(w http.ResponseWriter, r *http.Request) {
	var req domain.GiftPointsRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	customer, err := a.service.GiftLoyaltyPoints(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
}

func (a *API) handleCart(w http.ResponseWriter, r *http.Request) {
	a.writeCart(w, http.StatusOK)(a.service.CartView(r.Context()))
}

func (a *API) handleClearCart(w http.ResponseWriter, r *http.Request) {
	a.writeCart(w, http.StatusOK)(a.service.ClearCart(r.Context()))
}

func (a *API) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var req domain.AddToCartRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	a.writeCart(w, http.StatusOK)(a.service.AddToCart(r.Context(), req))
}

func (a *API) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	a.writeCart(w, http.StatusOK)(a.service.UpdateCartItem(r.Context(), r.PathValue("productID"), req))
}

func (a *API) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	a.writeCart(w, http.StatusOK)(a.service.RemoveCartItem(r.Context(), r.PathValue("productID")))
}

func (a *API) handleSetCartCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.SetCartCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	a.writeCart(w, http.StatusOK)(a.service.SetCartCustomer(r.Context(), req))
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.Checkout(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := domain.TransactionQuery{
		CashierID:  q.Get("cashier_id"),
		CustomerID: q.Get("customer_id"),
		Status:     domain.TransactionStatus(strings.ToLower(strings.TrimSpace(q.Get("status")))),
	}
	var err error
	if query.From, query.To, err = parseRange(r); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	txs, err := a.service.ListTransactions(r.Context(), query)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	switch format(r) {
	case "csv":
		writeAttachment(w, "text/csv; charset=utf-8", "transactions.csv")
		if err := report.WriteTransactionsCSV(w, txs); err != nil {
			a.logger.Error("write transactions csv failed", zap.Error(err))
		}
	default:
		writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
	}
}

func (a *API) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := a.service.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": tx})
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	sales, err := a.service.SalesReport(r.Context(), from, to)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	switch format(r) {
	case "csv":
		writeAttachment(w, "text/csv; charset=utf-8", "sales-report.csv")
		err = report.WriteSalesCSV(w, sales)
	case "html", "pdf":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err = report.WriteSalesHTML(w, sales)
	default:
		writeJSON(w, http.StatusOK, sales)
	}
	if err != nil {
		a.logger.Error("write sales report failed", zap.Error(err))
	}
}

func (a *API) handleInventoryReport(w http.ResponseWriter, r *http.Request) {
	switch format(r) {
	case "csv":
		products, err := a.service.ListProducts(r.Context(), "")
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeAttachment(w, "text/csv; charset=utf-8", "inventory.csv")
		if err := report.WriteInventoryCSV(w, products); err != nil {
			a.logger.Error("write inventory csv failed", zap.Error(err))
		}
	default:
		inventory, err := a.service.InventoryReport(r.Context())
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, inventory)
	}
}

func (a *API) handleEmployees(w http.ResponseWriter, r *http.Request) {
	users, err := a.service.ListEmployees(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"employees": users})
}

func (a *API) writeCart(w http.ResponseWriter, status int) func(domain.CartView, error) {
	return func(view domain.CartView, err error) {
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, status, view)
	}
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(startedAt)),
		)
	})
}

// statusFor maps service and store errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidInput), errors.Is(err, cart.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, cart.ErrEmptyCart):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrInsufficientStock):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	a.writeError(w, statusFor(err), err)
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	// 5xx details stay in the log.
	msg := err.Error()
	if status >= 500 {
		a.logger.Error("internal error", zap.Int("status", status), zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAttachment(w http.ResponseWriter, contentType string, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func format(r *http.Request) string {
	return strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
}

// parseRange reads optional from/to query bounds as RFC 3339 timestamps or
// plain dates. A plain "to" date includes that whole day.
func parseRange(r *http.Request) (*time.Time, *time.Time, error) {
	from, err := parseBound(r.URL.Query().Get("from"), false)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid from: %w", err)
	}
	to, err := parseBound(r.URL.Query().Get("to"), true)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid to: %w", err)
	}
	return from, to, nil
}

func parseBound(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		day = day.AddDate(0, 0, 1)
	}
	return &day, nil
}
