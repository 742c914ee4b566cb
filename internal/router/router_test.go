package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ugmart/internal/checkout"
	"ugmart/internal/config"
	"ugmart/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "router-test-secret"

type testEnv struct {
	r  *gin.Engine
	db *gorm.DB
}

// newTestEnv 起一套完整路由：真 gin + 内存 SQLite。Redis 指向不可达
// 地址，限流与展示缓存按降级路径放行。
func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Address{}, &model.Product{}, &model.Coupon{},
		&model.Cart{}, &model.CartItem{},
		&model.Order{}, &model.OrderItem{}, &model.Payment{},
	))

	rdb := rd.NewClient(&rd.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { rdb.Close() })

	svc := checkout.NewService(db, nil, nil, time.Second)

	cfg := config.AppConfig{
		JWTSecret:          testSecret,
		CheckoutRateLimit:  100,
		CheckoutRateWindow: time.Second,
		StockCacheTTL:      time.Hour,
	}

	r := gin.New()
	Setup(r, db, rdb, svc, nil, cfg)
	return testEnv{r: r, db: db}
}

func bearer(t *testing.T, userID uint, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"id":   float64(userID),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func (e testEnv) do(t *testing.T, method, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func seedCheckout(t *testing.T, db *gorm.DB, stock int64) (model.User, model.Address, model.Product) {
	t.Helper()
	user := model.User{Name: "Ritah", Email: fmt.Sprintf("%s@test.local", t.Name()), Password: "x", Role: model.RoleCustomer}
	require.NoError(t, db.Create(&user).Error)
	addr := model.Address{UserID: user.ID, FullName: "Ritah", Street: "Plot 12", City: "Kampala"}
	require.NoError(t, db.Create(&addr).Error)
	product := model.Product{Name: "Matooke Bunch", Category: "grocery", Price: 15000, Stock: stock}
	require.NoError(t, db.Create(&product).Error)
	return user, addr, product
}

func checkoutBody(addr model.Address, p model.Product, qty int) map[string]any {
	return map[string]any{
		"items": []map[string]any{{
			"product_id": p.ID,
			"name":       p.Name,
			"category":   p.Category,
			"price":      p.Price,
			"quantity":   qty,
		}},
		"address_id":     addr.ID,
		"total_amount":   p.Price * int64(qty),
		"payment_method": "paypal",
		"transaction_id": "TX-ROUTER",
	}
}

func TestPing(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPlaceOrderEndpoint(t *testing.T) {
	env := newTestEnv(t)
	user, addr, product := seedCheckout(t, env.db, 5)
	auth := bearer(t, user.ID, model.RoleCustomer)

	w := env.do(t, http.MethodPost, "/api/orders", auth, checkoutBody(addr, product, 2))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			OrderNo       string `json:"order_no"`
			TotalAmount   int64  `json:"total_amount"`
			PaymentStatus string `json:"payment_status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Data.OrderNo)
	assert.Equal(t, product.Price*2, resp.Data.TotalAmount)
	assert.Equal(t, string(model.PaymentPaid), resp.Data.PaymentStatus)

	var got model.Product
	require.NoError(t, env.db.First(&got, product.ID).Error)
	assert.Equal(t, int64(3), got.Stock)
}

func TestPlaceOrderRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	_, addr, product := seedCheckout(t, env.db, 5)

	w := env.do(t, http.MethodPost, "/api/orders", "", checkoutBody(addr, product, 1))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPlaceOrderInsufficientStockMessage(t *testing.T) {
	env := newTestEnv(t)
	user, addr, product := seedCheckout(t, env.db, 1)
	auth := bearer(t, user.ID, model.RoleCustomer)

	w := env.do(t, http.MethodPost, "/api/orders", auth, checkoutBody(addr, product, 3))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Matooke Bunch")
	assert.Contains(t, w.Body.String(), "Available: 1")
	assert.Contains(t, w.Body.String(), "Requested: 3")
}

func TestPlaceOrderBadPayload(t *testing.T) {
	env := newTestEnv(t)
	user, _, _ := seedCheckout(t, env.db, 5)
	auth := bearer(t, user.ID, model.RoleCustomer)

	w := env.do(t, http.MethodPost, "/api/orders", auth, map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStockFallsBackToDB(t *testing.T) {
	env := newTestEnv(t)
	_, _, product := seedCheckout(t, env.db, 7)

	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/products/%d/stock", product.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"stock":7`)

	w = env.do(t, http.MethodGet, "/api/products/99999/stock", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRoutesRequireRole(t *testing.T) {
	env := newTestEnv(t)
	user, _, _ := seedCheckout(t, env.db, 5)
	customer := bearer(t, user.ID, model.RoleCustomer)
	admin := bearer(t, user.ID, model.RoleSuperAdmin)

	productReq := map[string]any{"name": "Gomesi", "category": "fashion", "price": 80000, "stock": 4}

	w := env.do(t, http.MethodPost, "/api/products", customer, productReq)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/products", admin, productReq)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/orders", customer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/orders", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateCouponEndpoint(t *testing.T) {
	env := newTestEnv(t)
	user, _, _ := seedCheckout(t, env.db, 5)
	admin := bearer(t, user.ID, model.RoleSuperAdmin)

	body := map[string]any{
		"code":        "NEWYEAR20",
		"percentage":  20,
		"start_date":  time.Now().Format(time.RFC3339),
		"end_date":    time.Now().Add(72 * time.Hour).Format(time.RFC3339),
		"usage_limit": 100,
	}

	w := env.do(t, http.MethodPost, "/api/coupons", admin, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// 重复 code 冲突
	w = env.do(t, http.MethodPost, "/api/coupons", admin, body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdateOrderStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	user, addr, product := seedCheckout(t, env.db, 5)
	customer := bearer(t, user.ID, model.RoleCustomer)
	admin := bearer(t, user.ID, model.RoleSuperAdmin)

	w := env.do(t, http.MethodPost, "/api/orders", customer, checkoutBody(addr, product, 1))
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data struct {
			ID uint `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	path := fmt.Sprintf("/api/orders/%d/status", resp.Data.ID)
	w = env.do(t, http.MethodPatch, path, admin, map[string]any{"status": "SHIPPED"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPatch, path, admin, map[string]any{"status": "BOGUS"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPatch, path, customer, map[string]any{"status": "DELIVERED"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetOrderOwnershipEndpoint(t *testing.T) {
	env := newTestEnv(t)
	user, addr, product := seedCheckout(t, env.db, 5)
	owner := bearer(t, user.ID, model.RoleCustomer)

	w := env.do(t, http.MethodPost, "/api/orders", owner, checkoutBody(addr, product, 1))
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data struct {
			ID uint `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	path := fmt.Sprintf("/api/orders/%d", resp.Data.ID)

	w = env.do(t, http.MethodGet, path, owner, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	stranger := bearer(t, user.ID+50, model.RoleCustomer)
	w = env.do(t, http.MethodGet, path, stranger, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
