package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// orderIDPattern 网关订单号只允许大写字母和数字。
var orderIDPattern = regexp.MustCompile(`^[A-Z0-9]+$`)

// Config 网关客户端配置。
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	// FXRate 多少 UGX 兑换 1 USD
	FXRate      int64
	FrontendURL string
	Timeout     time.Duration
	// FallbackTTL 网关未返回 expires_in 时的兜底有效期
	FallbackTTL time.Duration
	// ExpiryMargin 在网关声明的有效期基础上提前失效
	ExpiryMargin time.Duration
}

// Client 封装网关三个操作：认证、建单、捕获。
// 所有请求带 Config.Timeout 的有界超时。
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger

	cache tokenCache
	// refreshMu 保证同一时刻只有一个刷新在途（single-flight）
	refreshMu sync.Mutex

	now func() time.Time
}

// New 创建网关客户端。
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FallbackTTL <= 0 {
		cfg.FallbackTTL = 8 * time.Hour
	}
	if cfg.ExpiryMargin <= 0 {
		cfg.ExpiryMargin = time.Minute
	}
	if cfg.FXRate <= 0 {
		cfg.FXRate = 3600
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		now:    time.Now,
	}
}

// GetAccessToken 返回缓存令牌，过期时用 client_credentials 换取新令牌。
// 认证失败不自动重试，由调用方决定重试策略。
func (c *Client) GetAccessToken(ctx context.Context) (string, error) {
	if tok, ok := c.cache.get(c.now()); ok {
		return tok, nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// 拿到刷新锁后再查一次，前一个刷新可能已经写入。
	if tok, ok := c.cache.get(c.now()); ok {
		return tok, nil
	}

	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return "", &AuthError{Err: ErrCredentialsUnset}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	c.logger.Info("requesting new paypal access token")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &AuthError{Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &AuthError{Status: resp.StatusCode, Err: fmt.Errorf("token exchange rejected: %s", string(body))}
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &AuthError{Status: resp.StatusCode, Err: err}
	}
	if out.AccessToken == "" {
		return "", &AuthError{Status: resp.StatusCode, Err: fmt.Errorf("empty access_token in response")}
	}

	ttl := c.cfg.FallbackTTL
	if out.ExpiresIn > 0 {
		ttl = time.Duration(out.ExpiresIn) * time.Second
	}
	if ttl > c.cfg.ExpiryMargin {
		ttl -= c.cfg.ExpiryMargin
	}
	c.cache.put(out.AccessToken, c.now().Add(ttl))

	return out.AccessToken, nil
}

// InvalidateToken 主动作废缓存令牌（例如网关返回 401 后）。
func (c *Client) InvalidateToken() { c.cache.invalidate() }

// LineItem 建单行项，价格为 UGX 单价。
type LineItem struct {
	ProductID   uint
	Name        string
	Description string
	Price       int64
	Quantity    int
}

// CreateOrder 在网关创建 CAPTURE 意图的订单并返回网关订单号。
// requestID 作为幂等键写入 PayPal-Request-Id，同键重试不会重复建单；
// 为空时生成新的 uuid。
func (c *Client) CreateOrder(ctx context.Context, items []LineItem, totalUGX int64, requestID string) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("paypal: items must not be empty")
	}
	for _, it := range items {
		if it.Name == "" || it.Price <= 0 || it.Quantity <= 0 || it.ProductID == 0 {
			return "", fmt.Errorf("paypal: invalid item data for %q", it.Name)
		}
	}
	if totalUGX <= 0 {
		return "", fmt.Errorf("paypal: total must be positive")
	}
	if requestID == "" {
		requestID = uuid.New().String()
	}

	// UGX -> USD，按行项单价换算为美分后求和。
	type puItem struct {
		Name       string `json:"name"`
		Desc       string `json:"description"`
		SKU        string `json:"sku"`
		UnitAmount struct {
			CurrencyCode string `json:"currency_code"`
			Value        string `json:"value"`
		} `json:"unit_amount"`
		Quantity string `json:"quantity"`
		Category string `json:"category"`
	}

	puItems := make([]puItem, 0, len(items))
	var itemCents int64
	for _, it := range items {
		unitCents := toUSDCents(it.Price, c.cfg.FXRate)
		itemCents += unitCents * int64(it.Quantity)

		p := puItem{
			Name:     it.Name,
			Desc:     it.Description,
			SKU:      fmt.Sprintf("%d", it.ProductID),
			Quantity: fmt.Sprintf("%d", it.Quantity),
			Category: "PHYSICAL_GOODS",
		}
		if p.Desc == "" {
			p.Desc = "Product"
		}
		p.UnitAmount.CurrencyCode = "USD"
		p.UnitAmount.Value = centsString(unitCents)
		puItems = append(puItems, p)
	}

	// 独立核算行项合计并与提交总额比对。每行换算各自取整，
	// 容差按行数放宽到每行 1 美分。
	submittedCents := toUSDCents(totalUGX, c.cfg.FXRate)
	diff := itemCents - submittedCents
	if diff < 0 {
		diff = -diff
	}
	if diff > int64(len(items)) {
		c.logger.Warn("paypal order total mismatch",
			zap.Int64("item_cents", itemCents),
			zap.Int64("submitted_cents", submittedCents))
		return "", fmt.Errorf("%w: items=%s submitted=%s",
			ErrTotalMismatch, centsString(itemCents), centsString(submittedCents))
	}

	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{
			{
				"amount": map[string]any{
					"currency_code": "USD",
					"value":         centsString(itemCents),
					"breakdown": map[string]any{
						"item_total": map[string]any{
							"currency_code": "USD",
							"value":         centsString(itemCents),
						},
					},
				},
				"items": puItems,
			},
		},
		"application_context": map[string]any{
			"brand_name":   "UGMART",
			"landing_page": "NO_PREFERENCE",
			"user_action":  "PAY_NOW",
			"return_url":   c.cfg.FrontendURL + "/payment/success",
			"cancel_url":   c.cfg.FrontendURL + "/payment/cancel",
		},
	}

	var out struct {
		ID string `json:"id"`
	}
	headers := map[string]string{"PayPal-Request-Id": requestID}
	if err := c.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", payload, headers, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("paypal: create order response missing id")
	}

	c.logger.Info("paypal order created",
		zap.String("remote_order_id", out.ID),
		zap.Int("item_count", len(items)),
		zap.String("usd_total", centsString(itemCents)))

	return out.ID, nil
}

// CaptureResult 捕获成功后的关键字段。
type CaptureResult struct {
	OrderID       string
	TransactionID string
	PayerEmail    string
	Status        string
	AmountValue   string
	AmountCode    string
}

// CaptureOrder 捕获一笔已获买家批准的网关订单。
// 订单号先做格式校验，非法输入不产生网络调用。
// 网关结构化错误映射为 ErrAlreadyCaptured / ErrNotApproved / ErrOrderExpired。
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (CaptureResult, error) {
	if orderID == "" || !orderIDPattern.MatchString(orderID) {
		return CaptureResult{}, fmt.Errorf("%w: %q", ErrMalformedOrderID, orderID)
	}

	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Payer  struct {
			Email string `json:"email_address"`
		} `json:"payer"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
					Amount struct {
						CurrencyCode string `json:"currency_code"`
						Value        string `json:"value"`
					} `json:"amount"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}

	err := c.doJSON(ctx, http.MethodPost, "/v2/checkout/orders/"+orderID+"/capture",
		map[string]any{}, nil, &out)
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			switch reqErr.Issue() {
			case "ORDER_ALREADY_CAPTURED":
				return CaptureResult{}, fmt.Errorf("capture %s: %w: %w", orderID, ErrAlreadyCaptured, reqErr)
			case "ORDER_NOT_APPROVED":
				return CaptureResult{}, fmt.Errorf("capture %s: %w: %w", orderID, ErrNotApproved, reqErr)
			case "ORDER_EXPIRED":
				return CaptureResult{}, fmt.Errorf("capture %s: %w: %w", orderID, ErrOrderExpired, reqErr)
			}
		}
		return CaptureResult{}, err
	}

	res := CaptureResult{
		OrderID:    out.ID,
		Status:     out.Status,
		PayerEmail: out.Payer.Email,
	}
	if len(out.PurchaseUnits) > 0 && len(out.PurchaseUnits[0].Payments.Captures) > 0 {
		capture := out.PurchaseUnits[0].Payments.Captures[0]
		res.TransactionID = capture.ID
		res.AmountValue = capture.Amount.Value
		res.AmountCode = capture.Amount.CurrencyCode
	}

	c.logger.Info("paypal order captured",
		zap.String("remote_order_id", orderID),
		zap.String("transaction_id", res.TransactionID),
		zap.String("status", res.Status))

	return res, nil
}

// doJSON 发送 JSON 请求并解析 2xx 响应；非 2xx 返回 *RequestError。
func (c *Client) doJSON(ctx context.Context, method, path string, payload any, headers map[string]string, out any) error {
	tok, err := c.GetAccessToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("paypal request rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("payload", respBody))
		return &RequestError{Status: resp.StatusCode, Payload: json.RawMessage(respBody)}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// toUSDCents 将 UGX 金额按汇率换算为美分，四舍五入。
func toUSDCents(ugx, rate int64) int64 {
	return (ugx*100 + rate/2) / rate
}

// centsString 将美分格式化为两位小数字符串。
func centsString(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
