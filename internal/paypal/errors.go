package paypal

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrCredentialsUnset 网关凭证未配置，直接失败不重试。
	ErrCredentialsUnset = errors.New("paypal: client credentials are not configured")
	// ErrMalformedOrderID 订单号格式非法，拒绝发起网络调用。
	ErrMalformedOrderID = errors.New("paypal: malformed order id")
	// ErrTotalMismatch 行项合计与提交总额不一致。
	ErrTotalMismatch = errors.New("paypal: item total does not match submitted total")

	// capture 阶段按网关 issue 映射出的领域语义
	ErrAlreadyCaptured = errors.New("paypal: order already captured")
	ErrNotApproved     = errors.New("paypal: order has not been approved by the payer")
	ErrOrderExpired    = errors.New("paypal: order expired")
)

// AuthError 表示访问令牌获取失败。
type AuthError struct {
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("paypal auth failed (status=%d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("paypal auth failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RequestError 表示网关返回非 2xx，保留原始错误体便于排查。
type RequestError struct {
	Status  int
	Payload json.RawMessage
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("paypal request failed (status=%d): %s", e.Status, string(e.Payload))
}

// Issue 提取网关结构化错误里的第一个 issue 代码，没有则返回空串。
func (e *RequestError) Issue() string {
	var body struct {
		Details []struct {
			Issue string `json:"issue"`
		} `json:"details"`
	}
	if err := json.Unmarshal(e.Payload, &body); err != nil {
		return ""
	}
	if len(body.Details) == 0 {
		return ""
	}
	return body.Details[0].Issue
}
