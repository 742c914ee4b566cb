package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Body   string
	Err    error
}

// 压测工具假定环境已按约定播种：用户 1..N 存在，且每个用户拥有
// 一条 id 与其 user id 相同的地址。
func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	productID := flag.Int("product", 1, "product id")
	price := flag.Int64("price", 1000, "unit price (UGX)")
	jwtSecret := flag.String("jwt-secret", "dev-secret", "secret used to mint session tokens")
	stockCheck := flag.Bool("stock", true, "check stock endpoint after test")

	// 超卖测试参数：200 个用户并发抢最后的库存
	nUsers := flag.Int("users", 200, "distinct users")
	concurrency := flag.Int("c", 50, "max concurrency")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	// 1) 不超卖测试：不同 user 并发
	fmt.Printf("start oversell test: product=%d users=%d concurrency=%d\n", *productID, *nUsers, *concurrency)
	results := runCheckout(client, *baseURL, *jwtSecret, *productID, *price, *nUsers, *concurrency)
	printSummary("oversell", results)

	if *stockCheck {
		stock, err := getStock(client, *baseURL, *productID)
		if err != nil {
			fmt.Println("stock check err:", err)
		} else {
			fmt.Println("final stock:", stock)
		}
	}

	// 2) 限流测试：同一个 user 重复下单（更容易触发 429）
	fmt.Println("\nstart rate limit test: same user (10001), 50 requests, concurrency 50")
	results2 := runCheckoutSameUser(client, *baseURL, *jwtSecret, *productID, *price, 10001, 50, 50)
	printSummary("rate_limit", results2)
}

func runCheckout(client *http.Client, baseURL, secret string, productID int, price int64, nUsers, concurrency int) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, nUsers)

	for i := 0; i < nUsers; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			userID := uint(idx + 1)
			results[idx] = checkoutOnce(client, baseURL, secret, userID, userID, productID, price)
		}(i)
	}

	wg.Wait()
	return results
}

func runCheckoutSameUser(client *http.Client, baseURL, secret string, productID int, price int64, userID uint, total, concurrency int) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			results[idx] = checkoutOnce(client, baseURL, secret, userID, userID, productID, price)
		}(i)
	}

	wg.Wait()
	return results
}

func checkoutOnce(client *http.Client, baseURL, secret string, userID, addressID uint, productID int, price int64) Result {
	body := map[string]any{
		"items": []map[string]any{
			{
				"product_id": productID,
				"name":       "loadtest item",
				"price":      price,
				"quantity":   1,
			},
		},
		"address_id":     addressID,
		"total_amount":   price,
		"payment_method": "COD",
	}

	b, _ := json.Marshal(body)
	url := fmt.Sprintf("%s/api/orders", baseURL)
	httpReq, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+mintToken(secret, userID))

	resp, err := client.Do(httpReq)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(respBody)}
}

// mintToken 用服务端同款密钥签发短期会话令牌。
func mintToken(secret string, userID uint) string {
	claims := jwt.MapClaims{
		"id":   float64(userID),
		"role": "CUSTOMER",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := token.SignedString([]byte(secret))
	return signed
}

// printSummary 聚合输出不同状态码分布。
func printSummary(name string, results []Result) {
	count := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		count[r.Status]++
	}
	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range []int{201, 400, 401, 404, 429, 500} {
		if count[code] > 0 {
			fmt.Printf("  %d -> %d\n", code, count[code])
		}
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}

// getStock 查询当前库存，用于压测后校验是否出现超卖。
func getStock(client *http.Client, baseURL string, productID int) (int64, error) {
	url := fmt.Sprintf("%s/api/products/%d/stock", baseURL, productID)
	resp, err := client.Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}

	var out struct {
		Success bool `json:"success"`
		Data    struct {
			Stock int64 `json:"stock"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return 0, err
	}
	return out.Data.Stock, nil
}
