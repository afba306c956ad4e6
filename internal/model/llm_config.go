package model

import (
	"encoding/json"
	"fmt"
)

// 模型注册中心返回的默认值
const (
	DefaultContextWindow = 8000
	DefaultMaxToken      = 8000
)

// LLMConfig 大模型配置，按请求从模型注册中心解析一次，请求期间不可变
type LLMConfig struct {
	ModelID         string
	ModelName       string
	Provider        string
	APIKey          string
	EndpointURL     string
	ContextSize     int
	MaxTokens       int
	IsMultimodal    bool
	IsVisionSupport bool
	FunctionCalling string
}

// modelConfigResponse 注册中心 /callback/v1/model/{id} 的返回结构
type modelConfigResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

type modelConfigData struct {
	ModelID   string `json:"modelId"`
	Model     string `json:"model"`
	Provider  string `json:"provider"`
	ModelType string `json:"modelType"`
	Config    struct {
		APIKey          string `json:"apiKey"`
		EndpointURL     string `json:"endpointUrl"`
		ContextWindow   int    `json:"context_window"`
		MaxToken        int    `json:"max_token"`
		IsMultimodal    bool   `json:"isMultimodal"`
		VisionSupport   bool   `json:"visionSupport"`
		FunctionCalling string `json:"functionCalling"`
	} `json:"config"`
}

// ParseLLMConfig 解析注册中心返回体。只接受 llm 类型的模型，
// 缺省的上下文长度、max_token 按默认值补齐。
func ParseLLMConfig(body []byte) (*LLMConfig, error) {
	var resp modelConfigResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode model config response: %w", err)
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil, fmt.Errorf("no model data returned")
	}

	var data modelConfigData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("decode model config data: %w", err)
	}
	if data.ModelType != "" && data.ModelType != "llm" {
		return nil, fmt.Errorf("model %s is not llm model, got type %s", data.ModelID, data.ModelType)
	}

	cfg := &LLMConfig{
		ModelID:         data.ModelID,
		ModelName:       data.Model,
		Provider:        data.Provider,
		APIKey:          data.Config.APIKey,
		EndpointURL:     data.Config.EndpointURL,
		ContextSize:     data.Config.ContextWindow,
		MaxTokens:       data.Config.MaxToken,
		IsMultimodal:    data.Config.IsMultimodal,
		IsVisionSupport: data.Config.VisionSupport,
		FunctionCalling: data.Config.FunctionCalling,
	}
	if cfg.ContextSize <= 0 {
		cfg.ContextSize = DefaultContextWindow
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxToken
	}
	if cfg.FunctionCalling == "" {
		cfg.FunctionCalling = "noSupport"
	}
	return cfg, nil
}
