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

// AliImageParams 文生图任务参数
type AliImageParams struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Size           string `json:"size,omitempty"`
	N              int    `json:"n,omitempty"`
}

// AliVideoParams 图生视频任务参数
type AliVideoParams struct {
	Model    string `json:"model"`
	Prompt   string `json:"prompt"`
	ImageURL string `json:"img_url,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

// AliClient 阿里云百炼生成任务转发客户端。任务是异步的，
// 返回体里携带 task_id，由调用方自行轮询任务状态。
type AliClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAliClient(baseURL string, timeout time.Duration) *AliClient {
	return &AliClient{
		baseURL:    baseURL,
		httpClient: utils.NewHTTPClient(timeout),
	}
}

// SubmitImageTask 提交文生图任务
func (c *AliClient) SubmitImageTask(ctx context.Context, apiKey string, params *AliImageParams) (json.RawMessage, error) {
	payload := map[string]any{
		"model": params.Model,
		"input": map[string]any{
			"prompt":          params.Prompt,
			"negative_prompt": params.NegativePrompt,
		},
		"parameters": map[string]any{
			"size": params.Size,
			"n":    params.N,
		},
	}
	return c.submit(ctx, apiKey, "/api/v1/services/aigc/text2image/image-synthesis", payload)
}

// SubmitVideoTask 提交图生视频任务
func (c *AliClient) SubmitVideoTask(ctx context.Context, apiKey string, params *AliVideoParams) (json.RawMessage, error) {
	payload := map[string]any{
		"model": params.Model,
		"input": map[string]any{
			"prompt":  params.Prompt,
			"img_url": params.ImageURL,
		},
		"parameters": map[string]any{
			"duration": params.Duration,
		},
	}
	return c.submit(ctx, apiKey, "/api/v1/services/aigc/video-generation/video-synthesis", payload)
}

// TaskStatus 查询异步任务状态
func (c *AliClient) TaskStatus(ctx context.Context, apiKey, taskID string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/tasks/"+taskID, nil)
	if err != nil {
		return nil, fmt.Errorf("build task status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return c.do(req)
}

func (c *AliClient) submit(ctx context.Context, apiKey, path string, payload map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode generation request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("X-DashScope-Async", "enable")

	logger.Infof("提交生成任务,path=%s,model=%v", path, payload["model"])
	return c.do(req)
}

func (c *AliClient) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request dashscope: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read dashscope response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dashscope status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
