package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("user not authenticated")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrAddressNotFound = errors.New("address not found or does not belong to you")
	ErrCouponNotFound  = errors.New("coupon not found")
	ErrCouponExpired   = errors.New("coupon has expired")
	ErrCouponExhausted = errors.New("coupon usage limit reached")
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	// ErrTerminalStatus 终态订单不允许再改履约状态。
	ErrTerminalStatus = errors.New("order is in a terminal status")
	ErrInvalidStatus  = errors.New("unknown order status")
)

// InsufficientStockError 携带补救信息，用于给用户精确提示。
type InsufficientStockError struct {
	ProductName string
	Available   int64
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s. Available: %d, Requested: %d",
		e.ProductName, e.Available, e.Requested)
}
