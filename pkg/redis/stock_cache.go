package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// PreloadStock 将 DB 库存写入展示缓存。缓存只服务商品页读取，
// 下单扣减始终走数据库事务，不以缓存为准。
func PreloadStock(ctx context.Context, rdb *rd.Client, productID uint, stock int64, ttl time.Duration) error {
	return rdb.Set(ctx, StockKey(productID), stock, ttl).Err()
}

// GetStock 读取缓存库存。found=false 表示缓存未命中。
func GetStock(ctx context.Context, rdb *rd.Client, productID uint) (int64, bool, error) {
	val, err := rdb.Get(ctx, StockKey(productID)).Int64()
	if err != nil {
		if err == rd.Nil {
			return 0, false, nil
		}
		return 0, false, err
	}
	return val, true, nil
}

// InvalidateStock 下单成功后使缓存失效，下次读取回源 DB。
func InvalidateStock(ctx context.Context, rdb *rd.Client, productIDs []uint) error {
	if len(productIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, StockKey(id))
	}
	return rdb.Del(ctx, keys...).Err()
}
