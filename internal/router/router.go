package router

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"ugmart/internal/checkout"
	"ugmart/internal/config"
	"ugmart/internal/middleware"
	"ugmart/internal/model"
	"ugmart/internal/paypal"
	rediskey "ugmart/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, db *gorm.DB, rdb *rd.Client, svc *checkout.Service, pp *paypal.Client, cfg config.AppConfig) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	auth := middleware.Auth(cfg.JWTSecret)
	admin := middleware.RequireAdmin()

	// Products
	r.GET("/api/products", listProducts(db))
	r.POST("/api/products", auth, admin, createProduct(db))
	r.GET("/api/products/:product_id/stock", getStock(db, rdb, cfg.StockCacheTTL))
	r.POST("/api/products/:product_id/stock/preload", auth, admin, preloadStock(db, rdb, cfg.StockCacheTTL))

	// Coupons（管理端最小 CRUD，消费发生在下单事务内）
	r.POST("/api/coupons", auth, admin, createCoupon(db))

	// Orders
	r.POST("/api/orders", auth,
		middleware.RedisRateLimit(rdb, cfg.CheckoutRateLimit, cfg.CheckoutRateWindow),
		placeOrder(svc, rdb))
	r.GET("/api/orders", auth, admin, listAllOrders(svc))
	r.GET("/api/orders/user", auth, listUserOrders(svc))
	r.GET("/api/orders/:order_id", auth, getOrder(svc))
	r.PATCH("/api/orders/:order_id/status", auth, admin, updateOrderStatus(svc))

	// PayPal：建单与捕获。捕获成功后前端才携带 transaction_id 调 /api/orders。
	r.POST("/api/payments/paypal/orders", auth, createPaypalOrder(pp))
	r.POST("/api/payments/paypal/capture", auth, capturePaypalOrder(pp))
}

// listProducts 查询商品列表。
func listProducts(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var list []model.Product
		if err := db.Find(&list).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error occurred"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": list})
	}
}

// createProduct 管理端创建商品。
func createProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name     string `json:"name" binding:"required"`
			Category string `json:"category"`
			Price    int64  `json:"price" binding:"required,min=1"`
			Stock    int64  `json:"stock" binding:"min=0"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
			return
		}
		p := &model.Product{
			Name:     req.Name,
			Category: req.Category,
			Price:    req.Price,
			Stock:    req.Stock,
		}
		if err := db.Create(p).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error occurred"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "data": p})
	}
}

// getStock 查询商品库存：优先 Redis 展示缓存，未命中回源 DB 并回填。
func getStock(db *gorm.DB, rdb *rd.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseUintParam(c, "product_id")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid product id"})
			return
		}

		if stock, ok, err := rediskey.GetStock(c.Request.Context(), rdb, id); err == nil && ok {
			c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"stock": stock}})
			return
		}

		var p model.Product
		if err := db.First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "product not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error occurred"})
			return
		}
		_ = rediskey.PreloadStock(c.Request.Context(), rdb, id, p.Stock, ttl)
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"stock": p.Stock}})
	}
}

// preloadStock 将 DB 库存预热到 Redis 展示缓存。
func preloadStock(db *gorm.DB, rdb *rd.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseUintParam(c, "product_id")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid product id"})
			return
		}
		var p model.Product
		if err := db.First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "product not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error occurred"})
			return
		}
		if err := rediskey.PreloadStock(c.Request.Context(), rdb, id, p.Stock, ttl); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error occurred"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "stock cache preloaded"})
	}
}

// createCoupon 管理端创建优惠券。
func createCoupon(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Code       string `json:"code" binding:"required"`
			Percentage int    `json:"percentage" binding:"required,min=1,max=100"`
			StartDate  string `json:"start_date" binding:"required"`
			EndDate    string `json:"end_date" binding:"required"`
			UsageLimit int    `json:"usage_limit" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
			return
		}
		start, err := time.Parse(time.RFC3339, req.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "start_date must be RFC3339"})
			return
		}
		end, err := time.Parse(time.RFC3339, req.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "end_date must be RFC3339"})
			return
		}
		if !end.After(start) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "end_date must be after start_date"})
			return
		}

		var exists model.Coupon
		err = db.Where("code = ?", req.Code).First(&exists).Error
		if err == nil {
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": "coupon code already exists"})
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error occurred"})
			return
		}

		coupon := &model.Coupon{
			Code:       req.Code,
			Percentage: req.Percentage,
			StartDate:  start,
			EndDate:    end,
			UsageLimit: req.UsageLimit,
		}
		if err := db.Create(coupon).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error occurred"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "data": coupon})
	}
}

// placeOrderItem 下单行项请求体。
type placeOrderItem struct {
	ProductID uint   `json:"product_id" binding:"required,min=1"`
	Name      string `json:"name" binding:"required"`
	Category  string `json:"category"`
	Price     int64  `json:"price" binding:"required,min=1"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

// placeOrder 下单入口：身份来自会话中间件，支付已在调用前完成捕获。
func placeOrder(svc *checkout.Service, rdb *rd.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := middleware.GetIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not authenticated"})
			return
		}

		var req struct {
			Items         []placeOrderItem `json:"items" binding:"required,min=1,dive"`
			AddressID     uint             `json:"address_id" binding:"required,min=1"`
			CouponID      *uint            `json:"coupon_id"`
			TotalAmount   int64            `json:"total_amount" binding:"required,min=1"`
			PaymentMethod string           `json:"payment_method" binding:"required"`
			TransactionID string           `json:"transaction_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
			return
		}

		in := checkout.PlaceOrderInput{
			UserID:        id.UserID,
			AddressID:     req.AddressID,
			CouponID:      req.CouponID,
			TotalAmount:   req.TotalAmount,
			PaymentMethod: req.PaymentMethod,
			TransactionID: req.TransactionID,
		}
		for _, it := range req.Items {
			in.Items = append(in.Items, checkout.ItemInput{
				ProductID: it.ProductID,
				Name:      it.Name,
				Category:  it.Category,
				Price:     it.Price,
				Quantity:  it.Quantity,
				Size:      it.Size,
				Color:     it.Color,
			})
		}

		order, err := svc.PlaceOrder(c.Request.Context(), in)
		if err != nil {
			status, msg := orderErrorResponse(err)
			c.JSON(status, gin.H{"success": false, "message": msg})
			return
		}

		// 库存已变化，失效展示缓存（尽力而为）。
		ids := make([]uint, 0, len(order.Items))
		for _, it := range order.Items {
			ids = append(ids, it.ProductID)
		}
		_ = rediskey.InvalidateStock(c.Request.Context(), rdb, ids)

		c.JSON(http.StatusCreated, gin.H{
			"success": true,
			"message": "order created successfully",
			"data":    order,
		})
	}
}

// getOrder owner 维度订单详情。
func getOrder(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := middleware.GetIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not authenticated"})
			return
		}
		orderID, err := parseUintParam(c, "order_id")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "valid order id is required"})
			return
		}
		order, err := svc.GetOrder(c.Request.Context(), id.UserID, orderID)
		if err != nil {
			status, msg := orderErrorResponse(err)
			c.JSON(status, gin.H{"success": false, "message": msg})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": order})
	}
}

// listUserOrders 当前用户订单列表。
func listUserOrders(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := middleware.GetIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not authenticated"})
			return
		}
		orders, err := svc.ListOrdersForUser(c.Request.Context(), id.UserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error occurred"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": orders})
	}
}

// listAllOrders 管理端全量订单列表。
func listAllOrders(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := svc.ListAllOrders(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error occurred"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": orders})
	}
}

// updateOrderStatus 管理端改履约状态。
func updateOrderStatus(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := parseUintParam(c, "order_id")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "valid order id is required"})
			return
		}
		var req struct {
			Status model.OrderStatus `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
			return
		}
		if err := svc.UpdateOrderStatus(c.Request.Context(), orderID, req.Status); err != nil {
			status, msg := orderErrorResponse(err)
			c.JSON(status, gin.H{"success": false, "message": msg})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "order status updated successfully"})
	}
}

// createPaypalOrder 在网关创建订单，返回网关订单号。
func createPaypalOrder(pp *paypal.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Items []struct {
				ProductID   uint   `json:"product_id" binding:"required,min=1"`
				Name        string `json:"name" binding:"required"`
				Description string `json:"description"`
				Price       int64  `json:"price" binding:"required,min=1"`
				Quantity    int    `json:"quantity" binding:"required,min=1"`
			} `json:"items" binding:"required,min=1,dive"`
			Total int64 `json:"total" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
			return
		}

		items := make([]paypal.LineItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, paypal.LineItem{
				ProductID:   it.ProductID,
				Name:        it.Name,
				Description: it.Description,
				Price:       it.Price,
				Quantity:    it.Quantity,
			})
		}

		remoteID, err := pp.CreateOrder(c.Request.Context(), items, req.Total, "")
		if err != nil {
			status, msg := gatewayErrorResponse(err, "failed to create paypal order")
			c.JSON(status, gin.H{"success": false, "message": msg})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": remoteID})
	}
}

// capturePaypalOrder 捕获已获批准的网关订单。
func capturePaypalOrder(pp *paypal.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			OrderID string `json:"order_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "valid order id is required"})
			return
		}

		res, err := pp.CaptureOrder(c.Request.Context(), req.OrderID)
		if err != nil {
			status, msg := gatewayErrorResponse(err, "failed to capture paypal order")
			c.JSON(status, gin.H{"success": false, "message": msg})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"order_id":       res.OrderID,
				"status":         res.Status,
				"transaction_id": res.TransactionID,
				"payer_email":    res.PayerEmail,
				"amount": gin.H{
					"value":         res.AmountValue,
					"currency_code": res.AmountCode,
				},
			},
		})
	}
}

// orderErrorResponse 把下单域错误映射为 HTTP 状态与用户可读消息。
// 基础设施错误统一收敛为 500 + 通用消息，不向外泄露内部细节。
func orderErrorResponse(err error) (int, string) {
	var stockErr *checkout.InsufficientStockError
	switch {
	case errors.Is(err, checkout.ErrUnauthenticated):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, checkout.ErrInvalidRequest),
		errors.Is(err, checkout.ErrCouponExpired),
		errors.Is(err, checkout.ErrCouponExhausted),
		errors.Is(err, checkout.ErrInvalidStatus),
		errors.Is(err, checkout.ErrTerminalStatus):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &stockErr):
		return http.StatusBadRequest, stockErr.Error()
	case errors.Is(err, checkout.ErrAddressNotFound),
		errors.Is(err, checkout.ErrCouponNotFound),
		errors.Is(err, checkout.ErrProductNotFound),
		errors.Is(err, checkout.ErrOrderNotFound):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, "failed to create order"
	}
}

// gatewayErrorResponse 网关错误映射：结构化错误给出语义化提示，
// 其余透传网关状态码或退回 500。
func gatewayErrorResponse(err error, fallback string) (int, string) {
	var reqErr *paypal.RequestError
	var authErr *paypal.AuthError
	switch {
	case errors.Is(err, paypal.ErrMalformedOrderID):
		return http.StatusBadRequest, "invalid order id format"
	case errors.Is(err, paypal.ErrTotalMismatch):
		return http.StatusBadRequest, "total amount does not match sum of items"
	case errors.Is(err, paypal.ErrAlreadyCaptured):
		return http.StatusBadRequest, "this order has already been captured"
	case errors.Is(err, paypal.ErrNotApproved):
		return http.StatusBadRequest, "order has not been approved by the payer yet"
	case errors.Is(err, paypal.ErrOrderExpired):
		return http.StatusBadRequest, "this order has expired"
	case errors.As(err, &authErr):
		return http.StatusInternalServerError, fallback
	case errors.As(err, &reqErr):
		if reqErr.Status >= 400 {
			return reqErr.Status, fallback
		}
		return http.StatusInternalServerError, fallback
	default:
		return http.StatusInternalServerError, fallback
	}
}

// parseUintParam 解析路径上的十进制 ID。
func parseUintParam(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}
