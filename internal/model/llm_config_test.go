package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLLMConfig(t *testing.T) {
	body := []byte(`{
		"code": 0,
		"msg": "success",
		"data": {
			"modelId": "m-1",
			"model": "qwen-max",
			"provider": "tongyi",
			"modelType": "llm",
			"config": {
				"apiKey": "sk-xxx",
				"endpointUrl": "http://llm:8000/v1",
				"context_window": 32000,
				"max_token": 4096,
				"visionSupport": true
			}
		}
	}`)

	cfg, err := ParseLLMConfig(body)
	require.NoError(t, err)
	assert.Equal(t, "m-1", cfg.ModelID)
	assert.Equal(t, "qwen-max", cfg.ModelName)
	assert.Equal(t, "http://llm:8000/v1", cfg.EndpointURL)
	assert.Equal(t, 32000, cfg.ContextSize)
	assert.Equal(t, 4096, cfg.MaxTokens)
	assert.True(t, cfg.IsVisionSupport)
	assert.Equal(t, "noSupport", cfg.FunctionCalling)
}

func TestParseLLMConfigDefaults(t *testing.T) {
	body := []byte(`{"code":0,"data":{"modelId":"m-2","model":"glm-4","modelType":"llm","config":{}}}`)
	cfg, err := ParseLLMConfig(body)
	require.NoError(t, err)
	assert.Equal(t, DefaultContextWindow, cfg.ContextSize)
	assert.Equal(t, DefaultMaxToken, cfg.MaxTokens)
	assert.False(t, cfg.IsMultimodal)
}

func TestParseLLMConfigRejectsNonLLM(t *testing.T) {
	body := []byte(`{"code":0,"data":{"modelId":"e-1","model":"bge","modelType":"embedding","config":{}}}`)
	_, err := ParseLLMConfig(body)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not llm model")
}

func TestParseLLMConfigNoData(t *testing.T) {
	_, err := ParseLLMConfig([]byte(`{"code":0,"data":null}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no model data returned")
}

func TestRetrievalResultValid(t *testing.T) {
	assert.False(t, (&RetrievalResult{}).Valid())
	assert.False(t, (&RetrievalResult{Data: &RetrievalData{}}).Valid())
	assert.True(t, (&RetrievalResult{Data: &RetrievalData{SearchList: []SearchItem{{"snippet": "x"}}}}).Valid())
}

func TestSearchItemAccessors(t *testing.T) {
	item := SearchItem{
		"snippet": "片段",
		"rerank_info": []any{
			map[string]any{"type": "image", "file_url": "https://x/a.png"},
			map[string]any{"type": "text"},
		},
	}
	assert.Equal(t, "片段", item.Snippet())
	infos := item.RerankInfos()
	require.Len(t, infos, 2)
	assert.Equal(t, "image", infos[0].Type)
	assert.Equal(t, "https://x/a.png", infos[0].FileURL)
}

func TestStreamEventFinished(t *testing.T) {
	assert.False(t, (&StreamEvent{}).Finished())
	assert.False(t, (&StreamEvent{Finish: FinishOf(FinishStreaming)}).Finished())
	assert.True(t, (&StreamEvent{Finish: FinishOf(FinishStop)}).Finished())
	assert.True(t, (&StreamEvent{Finish: FinishOf(FinishSensitive)}).Finished())
}
