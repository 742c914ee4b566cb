package redis

import "fmt"

// StockKey 统一约定商品库存展示缓存的键名。
func StockKey(productID uint) string {
	return fmt.Sprintf("ugmart:stock:%d", productID)
}

// RateLimitUserKey 按用户维度的下单限流键。
func RateLimitUserKey(userID uint) string {
	return fmt.Sprintf("rate_limit:checkout:user:%d", userID)
}

// RateLimitIPKey 未识别用户时按 IP 降级限流。
func RateLimitIPKey(ip string) string {
	return fmt.Sprintf("rate_limit:checkout:ip:%s", ip)
}
