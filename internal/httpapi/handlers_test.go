package httpapi

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superpos/backend/internal/domain"
	"superpos/backend/internal/service"
	"superpos/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, service.DefaultSettings(), nil)
	auth := NewAuthManager("test-secret-key-with-32-characters", time.Hour, repo, nil)

	return New(svc, auth, "*", nil)
}

func tokenFor(t *testing.T, api *API, userID, email, role string) string {
	t.Helper()
	token, err := api.auth.sign(userID, email, role, time.Now().Add(time.Hour))
	require.NoError(t, err)
	return token
}

func cashierToken(t *testing.T, api *API) string {
	return tokenFor(t, api, "3", "cashier@group1.com", domain.RoleEmployee)
}

func managerToken(t *testing.T, api *API) string {
	return tokenFor(t, api, "2", "manager@group1.com", domain.RoleManager)
}

func do(t *testing.T, api *API, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	rec := do(t, api, http.MethodGet, "/healthz", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, body["ok"])
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)

	rec := do(t, api, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Email: "cashier@group1.com", Password: "cashier123"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[domain.LoginResponse](t, rec)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "3", resp.UserID)
	assert.Equal(t, domain.RoleEmployee, resp.Role)

	actor, err := api.auth.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "cashier@group1.com", actor.Username)
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)

	rec := do(t, api, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Email: "cashier@group1.com", Password: "nope"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleLogin_RejectsUnknownFields(t *testing.T) {
	api := newTestAPI(t)

	rec := do(t, api, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "admin"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductsRequireAuth(t *testing.T) {
	api := newTestAPI(t)

	rec := do(t, api, http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, api, http.MethodGet, "/api/v1/products", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProductsListAndSearch(t *testing.T) {
	api := newTestAPI(t)
	token := cashierToken(t, api)

	rec := do(t, api, http.MethodGet, "/api/v1/products?q=bakery", token, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[struct {
		Products []domain.Product `json:"products"`
	}](t, rec)
	require.Len(t, body.Products, 1)
	assert.Equal(t, "1", body.Products[0].ID)

	rec = do(t, api, http.MethodGet, "/api/v1/products/404", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScanBarcodeEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := cashierToken(t, api)

	rec := do(t, api, http.MethodGet, "/api/v1/products/barcode/6789012345678", token, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeBody[domain.ScanResult](t, rec)
	assert.True(t, result.Found)
	assert.Equal(t, "Tide Detergent - 50oz", result.Product.Name)
}

func TestProductWritesRequireManager(t *testing.T) {
	api := newTestAPI(t)
	req := map[string]any{"name": "Eggs - Dozen", "category": "Dairy", "price": "3.19", "stock": 40, "low_stock_threshold": 12}

	rec := do(t, api, http.MethodPost, "/api/v1/products", cashierToken(t, api), req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, api, http.MethodPost, "/api/v1/products", managerToken(t, api), req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, api, http.MethodPatch, "/api/v1/products/2/stock", managerToken(t, api), domain.SetStockRequest{Stock: 99})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[struct {
		Product domain.Product `json:"product"`
	}](t, rec)
	assert.Equal(t, 99, body.Product.Stock)
}

func TestCartFlowThroughCheckout(t *testing.T) {
	api := newTestAPI(t)
	token := cashierToken(t, api)

	rec := do(t, api, http.MethodPost, "/api/v1/cart/items", token, domain.AddToCartRequest{ProductID: "1", Quantity: 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, api, http.MethodPost, "/api/v1/cart/items", token, domain.AddToCartRequest{Barcode: "2345678901234"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, api, http.MethodPut, "/api/v1/cart/customer", token, domain.SetCartCustomerRequest{CustomerID: "1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, api, http.MethodGet, "/api/v1/cart", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeBody[domain.CartView](t, rec)
	assert.Equal(t, 3, view.ItemCount)
	assert.Equal(t, "10.23", view.DisplayTotal.StringFixed(2))

	rec = do(t, api, http.MethodPost, "/api/v1/cart/checkout", token, domain.CheckoutRequest{PaymentMethod: "Cash"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody[domain.CheckoutResponse](t, rec)
	assert.Equal(t, "1", resp.Transaction.CustomerID)
	assert.Equal(t, "3", resp.Transaction.CashierID)

	rec = do(t, api, http.MethodGet, "/api/v1/transactions/"+resp.Transaction.ID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, api, http.MethodPost, "/api/v1/cart/checkout", token, domain.CheckoutRequest{PaymentMethod: "Cash"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCartItemEditing(t *testing.T) {
	api := newTestAPI(t)
	token := cashierToken(t, api)

	do(t, api, http.MethodPost, "/api/v1/cart/items", token, domain.AddToCartRequest{ProductID: "3"})

	rec := do(t, api, http.MethodPatch, "/api/v1/cart/items/3", token, domain.UpdateCartItemRequest{Quantity: 6})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 6, decodeBody[domain.CartView](t, rec).ItemCount)

	rec = do(t, api, http.MethodDelete, "/api/v1/cart/items/3", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decodeBody[domain.CartView](t, rec).ItemCount)

	rec = do(t, api, http.MethodPost, "/api/v1/cart/items", token, domain.AddToCartRequest{ProductID: "3", Quantity: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, api, http.MethodDelete, "/api/v1/cart", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCustomerEndpoints(t *testing.T) {
	api := newTestAPI(t)
	token := cashierToken(t, api)

	rec := do(t, api, http.MethodPost, "/api/v1/customers", token, domain.CustomerUpsertRequest{Name: "Dana Lee", Email: "dana@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, api, http.MethodGet, "/api/v1/customers/3", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[struct {
		Customer domain.CustomerView `json:"customer"`
	}](t, rec)
	assert.Equal(t, "Gold", body.Customer.Tier)

	rec = do(t, api, http.MethodPost, "/api/v1/customers/3/loyalty-points", token, domain.GiftPointsRequest{Points: 5})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, api, http.MethodPost, "/api/v1/customers/3/loyalty-points", managerToken(t, api), domain.GiftPointsRequest{Points: 5})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTransactionsCSVExport(t *testing.T) {
	api := newTestAPI(t)

	rec := do(t, api, http.MethodGet, "/api/v1/transactions?format=csv&from=2024-01-15&to=2024-01-15", managerToken(t, api), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestTransactionsRejectBadRange(t *testing.T) {
	api := newTestAPI(t)

	rec := do(t, api, http.MethodGet, "/api/v1/transactions?from=yesterday", managerToken(t, api), nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportsRequireManager(t *testing.T) {
	api := newTestAPI(t)

	rec := do(t, api, http.MethodGet, "/api/v1/reports/sales", cashierToken(t, api), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, api, http.MethodGet, "/api/v1/reports/sales", managerToken(t, api), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sales := decodeBody[domain.SalesReport](t, rec)
	assert.Equal(t, 2, sales.Transactions)
}

func TestSalesReportFormats(t *testing.T) {
	api := newTestAPI(t)
	token := managerToken(t, api)

	rec := do(t, api, http.MethodGet, "/api/v1/reports/sales?format=csv", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "summary,revenue,27.68")

	rec = do(t, api, http.MethodGet, "/api/v1/reports/sales?format=html", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestInventoryReportFormats(t *testing.T) {
	api := newTestAPI(t)
	token := managerToken(t, api)

	rec := do(t, api, http.MethodGet, "/api/v1/reports/inventory", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	inv := decodeBody[domain.InventoryReport](t, rec)
	assert.Equal(t, 8, inv.Products)

	rec = do(t, api, http.MethodGet, "/api/v1/reports/inventory?format=csv", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 9)
}

func TestEmployeesHidePasswords(t *testing.T) {
	api := newTestAPI(t)

	rec := do(t, api, http.MethodGet, "/api/v1/employees", managerToken(t, api), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "$2a$")
	assert.Contains(t, rec.Body.String(), "EMP001")
}
