package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// APIStatusError API返回的非2xx状态
type APIStatusError struct {
	StatusCode int
	Body       string
}

func (e *APIStatusError) Error() string {
	return fmt.Sprintf("API状态码异常: %d, %s", e.StatusCode, e.Body)
}

// apiDoer 带限速的JSON API请求器
type apiDoer struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	headers    map[string]string
}

func newAPIDoer(headers map[string]string) *apiDoer {
	return &apiDoer{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		// 限制请求节奏, 避免触发API配额
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		headers: headers,
	}
}

func (d *apiDoer) doJSON(ctx context.Context, method, url string, body any, out any) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求体失败: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range d.headers {
		req.Header.Set(k, v)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &APIStatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}

// decodeRows 将通用结果行转换为具体类型
func decodeRows[T any](rows []map[string]any) ([]T, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("序列化结果行失败: %w", err)
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("解析结果行失败: %w", err)
	}
	return out, nil
}
