package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"knowrag-backend/internal/model"
	"knowrag-backend/internal/utils"
	"knowrag-backend/pkg/logger"
)

// SearchParams 知识召回请求参数，原样透传给召回服务
type SearchParams struct {
	KnowledgeBaseInfo map[string][]model.KnowledgeBase `json:"knowledge_base_info"`
	Question          string                           `json:"question"`
	Threshold         float64                          `json:"threshold"`
	TopK              int                              `json:"topK"`
	ChunkContent      int                              `json:"chunk_conent"`
	ChunkSize         int                              `json:"chunk_size"`
	ReturnMeta        bool                             `json:"return_meta"`
	PromptTemplate    string                           `json:"prompt_template"`
	SearchField       string                           `json:"search_field"`
	DefaultAnswer     string                           `json:"default_answer"`
	AutoCitation      bool                             `json:"auto_citation"`
	RetrieveMethod    string                           `json:"retrieve_method"`
	RerankModelID     string                           `json:"rerank_model_id"`
	RerankMod         string                           `json:"rerank_mod"`
	Weights           map[string]any                   `json:"weights"`
	MetadataFiltering []map[string]any                 `json:"metadata_filtering_conditions"`
	UseGraph          bool                             `json:"use_graph"`
	EnableVision      bool                             `json:"enable_vision"`
	AttachmentFiles   []map[string]string              `json:"attachment_files"`
}

// Client 知识召回服务客户端
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

// Search 执行知识召回，返回召回服务的原始应答结构
func (c *Client) Search(ctx context.Context, params *SearchParams) (*model.RetrievalResult, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode retrieval request: %w", err)
	}

	url := c.baseURL + "/knowledge/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build retrieval request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request retrieval service: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read retrieval response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("retrieval service status %d: %s", resp.StatusCode, string(respBody))
	}

	var result model.RetrievalResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode retrieval response: %w", err)
	}
	logger.Infof("======知识召回使用时间：%v", time.Since(start))
	return &result, nil
}
