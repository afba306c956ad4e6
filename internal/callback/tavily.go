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
)

// 搜索深度
const (
	TavilyDepthBasic    = "basic"
	TavilyDepthAdvanced = "advanced"
)

// TavilyNewsParams 新闻搜索参数
type TavilyNewsParams struct {
	Query         string `json:"query"`
	Topic         string `json:"topic"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results,omitempty"`
	Days          int    `json:"days,omitempty"`
	IncludeAnswer bool   `json:"include_answer"`
	IncludeImages bool   `json:"include_images"`
}

// TavilyClient Tavily 新闻搜索转发客户端
type TavilyClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewTavilyClient(baseURL string, timeout time.Duration) *TavilyClient {
	return &TavilyClient{
		baseURL:    baseURL,
		httpClient: utils.NewHTTPClient(timeout),
	}
}

// SearchNews 按关键词搜索新闻，深度由 search_depth 控制
func (c *TavilyClient) SearchNews(ctx context.Context, apiKey string, params *TavilyNewsParams) (json.RawMessage, error) {
	if params.Topic == "" {
		params.Topic = "news"
	}
	if params.SearchDepth == "" {
		params.SearchDepth = TavilyDepthBasic
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tavily request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request tavily: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tavily response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
