package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ugmart/internal/model"
	"ugmart/internal/queue"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventPublisher 下单成功后的事件出口。发布失败只记日志，不影响已提交的订单。
type EventPublisher interface {
	Publish(ctx context.Context, evt queue.OrderCreatedEvent) error
}

// Service 下单编排器：前置校验 + 单事务内建单/扣库存/核销券/清购物车。
// 不在此处发起任何网关调用；capture 必须在调用 PlaceOrder 之前完成。
type Service struct {
	db        *gorm.DB
	logger    *zap.Logger
	events    EventPublisher // 可为 nil
	txTimeout time.Duration
}

// NewService 创建下单服务。txTimeout 约束整个事务的等待上限。
func NewService(db *gorm.DB, logger *zap.Logger, events EventPublisher, txTimeout time.Duration) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if txTimeout <= 0 {
		txTimeout = 10 * time.Second
	}
	return &Service{db: db, logger: logger, events: events, txTimeout: txTimeout}
}

// ItemInput 客户端提交的行项（价格/名称为下单时刻快照）。
type ItemInput struct {
	ProductID uint
	Name      string
	Category  string
	Price     int64
	Quantity  int
	Size      string
	Color     string
}

// PlaceOrderInput 下单请求。TransactionID 为网关捕获返回的交易号，可选。
type PlaceOrderInput struct {
	UserID        uint
	Items         []ItemInput
	AddressID     uint
	CouponID      *uint
	TotalAmount   int64
	PaymentMethod string
	TransactionID string
}

// PlaceOrder 执行下单。
// 事务外：身份、行项、地址归属、优惠券、总额的前置校验。
// 事务内：逐项复核库存 → 建单（含行项快照与支付记录）→ 条件扣减库存
// → 清空购物车 → 核销优惠券。任意一步失败整体回滚。
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*model.Order, error) {
	if in.UserID == 0 {
		return nil, ErrUnauthenticated
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: order must have at least one item", ErrInvalidRequest)
	}
	for _, it := range in.Items {
		if it.ProductID == 0 || it.Name == "" || it.Price <= 0 {
			return nil, fmt.Errorf("%w: item requires product id, name and price", ErrInvalidRequest)
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: invalid quantity for %s", ErrInvalidRequest, it.Name)
		}
	}
	if in.AddressID == 0 {
		return nil, fmt.Errorf("%w: valid address id is required", ErrInvalidRequest)
	}
	if in.TotalAmount <= 0 {
		return nil, fmt.Errorf("%w: valid total amount is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		return nil, fmt.Errorf("%w: payment method is required", ErrInvalidRequest)
	}

	// 地址必须存在且归属下单人。
	var addr model.Address
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", in.AddressID, in.UserID).
		First(&addr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAddressNotFound
		}
		return nil, err
	}

	// 优惠券前置校验；事务内还会对用量做条件递增兜底。
	if in.CouponID != nil {
		var coupon model.Coupon
		err := s.db.WithContext(ctx).First(&coupon, *in.CouponID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrCouponNotFound
			}
			return nil, err
		}
		if coupon.EndDate.Before(time.Now()) {
			return nil, ErrCouponExpired
		}
		if coupon.UsageCount >= coupon.UsageLimit {
			return nil, ErrCouponExhausted
		}
	}

	// 行项合计与提交总额不一致时仅告警（总额可能含券后价），不拦截。
	var subtotal int64
	for _, it := range in.Items {
		subtotal += it.Price * int64(it.Quantity)
	}
	if in.CouponID == nil && subtotal != in.TotalAmount {
		s.logger.Warn("order total differs from item subtotal",
			zap.Uint("user_id", in.UserID),
			zap.Int64("subtotal", subtotal),
			zap.Int64("total_amount", in.TotalAmount))
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var order *model.Order
	err = s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		// a. 事务内复核每个商品的当前库存，按提交顺序第一个不足即中止。
		for _, it := range in.Items {
			var p model.Product
			if err := tx.First(&p, it.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: %s", ErrProductNotFound, it.Name)
				}
				return err
			}
			if p.Stock < int64(it.Quantity) {
				return &InsufficientStockError{
					ProductName: p.Name,
					Available:   p.Stock,
					Requested:   it.Quantity,
				}
			}
		}

		// b. 建单：行项为不可变快照，支付记录随单创建。
		o := &model.Order{
			OrderNo:       newOrderNo(),
			UserID:        in.UserID,
			AddressID:     in.AddressID,
			CouponID:      in.CouponID,
			TotalAmount:   in.TotalAmount,
			PaymentStatus: model.PaymentPaid,
			Status:        model.OrderPending,
			Payment: &model.Payment{
				Amount:        in.TotalAmount,
				PaymentMethod: in.PaymentMethod,
				TransactionID: in.TransactionID,
				Status:        model.PaymentPaid,
			},
		}
		for _, it := range in.Items {
			o.Items = append(o.Items, model.OrderItem{
				ProductID:   it.ProductID,
				ProductName: it.Name,
				Category:    it.Category,
				Price:       it.Price,
				Quantity:    it.Quantity,
				Size:        it.Size,
				Color:       it.Color,
			})
		}
		if err := tx.Create(o).Error; err != nil {
			return err
		}

		// c. 条件 UPDATE 扣库存并累加销量；并发竞争导致扣减失败时重新读出
		// 实际余量再报错，保证同一件商品不会被两单同时扣空。
		for _, it := range in.Items {
			res := tx.Model(&model.Product{}).
				Where("id = ? AND stock >= ?", it.ProductID, it.Quantity).
				Updates(map[string]any{
					"stock":      gorm.Expr("stock - ?", it.Quantity),
					"sold_count": gorm.Expr("sold_count + ?", it.Quantity),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				var p model.Product
				if err := tx.First(&p, it.ProductID).Error; err != nil {
					return fmt.Errorf("%w: %s", ErrProductNotFound, it.Name)
				}
				return &InsufficientStockError{
					ProductName: p.Name,
					Available:   p.Stock,
					Requested:   it.Quantity,
				}
			}
		}

		// d. 清空购物车：与建单同事务，库存失败时购物车原样保留。
		var cart model.Cart
		err := tx.Where("user_id = ?", in.UserID).First(&cart).Error
		if err == nil {
			if err := tx.Where("cart_id = ?", cart.ID).Delete(&model.CartItem{}).Error; err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// e. 条件递增券用量，并发下超限的请求在这里失败回滚。
		if in.CouponID != nil {
			res := tx.Model(&model.Coupon{}).
				Where("id = ? AND usage_count < usage_limit", *in.CouponID).
				Update("usage_count", gorm.Expr("usage_count + 1"))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrCouponExhausted
			}
		}

		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		zap.String("order_no", order.OrderNo),
		zap.Uint("user_id", in.UserID),
		zap.Int64("total_amount", in.TotalAmount),
		zap.Int("item_count", len(in.Items)))

	// 提交后发布事件，失败不回滚订单。
	if s.events != nil {
		evt := queue.OrderCreatedEvent{
			OrderNo:     order.OrderNo,
			OrderID:     order.ID,
			UserID:      order.UserID,
			TotalAmount: order.TotalAmount,
			ItemCount:   len(order.Items),
			CreatedAt:   order.CreatedAt,
		}
		if err := s.events.Publish(ctx, evt); err != nil {
			s.logger.Error("publish order created event",
				zap.String("order_no", order.OrderNo), zap.Error(err))
		}
	}

	return order, nil
}

// GetOrder owner 维度查询：不属于该用户的订单与不存在的订单同样返回 ErrOrderNotFound，
// 避免通过错误区分泄露订单是否存在。
func (s *Service) GetOrder(ctx context.Context, userID, orderID uint) (*model.Order, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	var order model.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Payment").
		Preload("Address").
		Preload("Coupon").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// ListOrdersForUser 查询用户自己的订单，按创建时间倒序。
func (s *Service) ListOrdersForUser(ctx context.Context, userID uint) ([]model.Order, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	var orders []model.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Address").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ListAllOrders 管理端全量订单列表。
func (s *Service) ListAllOrders(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Address").
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrderStatus 管理端改履约状态。终态（DELIVERED/CANCELLED）不可再覆盖。
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID uint, status model.OrderStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	var order model.Order
	err := s.db.WithContext(ctx).First(&order, orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		return err
	}
	if order.Status.Terminal() && order.Status != status {
		return fmt.Errorf("%w: %s", ErrTerminalStatus, order.Status)
	}
	return s.db.WithContext(ctx).Model(&order).Update("status", status).Error
}

// newOrderNo 生成订单号：OD + uuid 前 12 位（去连字符，大写）。
func newOrderNo() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "OD" + raw[:12]
}
