package modelprovider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"knowrag-backend/internal/model"
	"knowrag-backend/internal/utils"
	"knowrag-backend/pkg/logger"
)

// Client 模型注册中心客户端，按模型 ID 拉取模型配置
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: utils.NewHTTPClient(timeout),
	}
}

// GetModelConfig 查询模型配置。只接受 llm 类型的模型。
func (c *Client) GetModelConfig(ctx context.Context, modelID string) (*model.LLMConfig, error) {
	url := fmt.Sprintf("%s/callback/v1/model/%s", c.baseURL, modelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build model config request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request model provider: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read model config response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model provider status %d: %s", resp.StatusCode, string(body))
	}

	cfg, err := model.ParseLLMConfig(body)
	if err != nil {
		logger.Errorf("Failed to fetch model config for ID %s: %v", modelID, err)
		return nil, fmt.Errorf("failed to get model configuration: %w", err)
	}
	return cfg, nil
}
