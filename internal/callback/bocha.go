package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"knowrag-backend/internal/utils"
	"knowrag-backend/pkg/logger"
)

// BochaSearchParams AI 搜索参数。Freshness 为空时不限时间范围。
type BochaSearchParams struct {
	Query     string `json:"query"`
	Count     int    `json:"count,omitempty"`
	Freshness string `json:"freshness,omitempty"`
	Answer    bool   `json:"answer"`
	Stream    bool   `json:"stream"`
}

// BochaClient 博查 AI 搜索转发客户端，只做参数封装与透传
type BochaClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewBochaClient(baseURL string, timeout time.Duration) *BochaClient {
	return &BochaClient{
		baseURL:    baseURL,
		httpClient: utils.NewHTTPClient(timeout),
	}
}

// Search 执行 AI 搜索并原样返回响应体
func (c *BochaClient) Search(ctx context.Context, apiKey string, params *BochaSearchParams) (json.RawMessage, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode bocha request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/ai-search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build bocha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	logger.Infof("发送博查搜索请求,query=%s", params.Query)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request bocha: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read bocha response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bocha status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
