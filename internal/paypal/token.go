package paypal

import (
	"sync"
	"time"
)

// tokenCache 进程级单例凭证缓存。只存内存，绝不落盘。
type tokenCache struct {
	mu     sync.Mutex
	token  string
	expiry time.Time
}

// get 返回未过期的缓存令牌。
func (c *tokenCache) get(now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || !now.Before(c.expiry) {
		return "", false
	}
	return c.token, true
}

// put 写入新令牌。若缓存中已有更晚过期的令牌则保留原值，
// 避免并发刷新时旧响应覆盖更新的令牌。
func (c *tokenCache) put(token string, expiry time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if expiry.Before(c.expiry) {
		return
	}
	c.token = token
	c.expiry = expiry
}

// invalidate 清空缓存，下一次获取会触发重新认证。
func (c *tokenCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiry = time.Time{}
}
