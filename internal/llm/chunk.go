package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"knowrag-backend/internal/model"
)

// UpstreamError 上游模型在流数据中携带的业务错误
type UpstreamError struct {
	Code    int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream model error: code=%d, msg=%s", e.Code, e.Message)
}

// InvalidChunkError 流数据结构不合法
type InvalidChunkError struct {
	Reason string
}

func (e *InvalidChunkError) Error() string {
	return "invalid stream chunk: " + e.Reason
}

// chunk 单条增量数据的解析结果
type chunk struct {
	Content      string
	FinishReason string
}

// rawChunk 上游增量数据的外层结构。choices 与 data 用 RawMessage
// 延迟解析，以区分平铺与嵌套两种返回形态。
type rawChunk struct {
	Code    *int            `json:"code"`
	Msg     string          `json:"msg"`
	Choices json.RawMessage `json:"choices"`
	Data    json.RawMessage `json:"data"`
}

type flatChoice struct {
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

type nestedChoice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// parseChunk 解析一条增量数据。兼容两种返回形态：
// 平铺 {choices:[{delta:{content}}]} 与嵌套 {data:{choices:[{message:{content}}]}}。
// data 字段存在但不是对象时返回 InvalidChunkError 而不是崩溃。
func parseChunk(line []byte) (*chunk, error) {
	var raw rawChunk
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("decode stream chunk: %w", err)
	}

	// 优先检查上游错误码，防御 code 非 0 且 data 为 null 的情况
	if raw.Code != nil && *raw.Code != 0 {
		return nil, &UpstreamError{Code: *raw.Code, Message: raw.Msg}
	}

	if raw.Choices != nil {
		var choices []flatChoice
		if err := json.Unmarshal(raw.Choices, &choices); err != nil {
			return nil, fmt.Errorf("decode choices: %w", err)
		}
		if len(choices) == 0 {
			return &chunk{}, nil
		}
		return &chunk{
			Content:      choices[0].Delta.Content,
			FinishReason: choices[0].FinishReason,
		}, nil
	}

	trimmed := bytes.TrimSpace(raw.Data)
	if len(trimmed) == 0 || !bytes.HasPrefix(trimmed, []byte("{")) {
		return nil, &InvalidChunkError{Reason: "'data' field is not an object"}
	}
	var data struct {
		Choices []nestedChoice `json:"choices"`
	}
	if err := json.Unmarshal(raw.Data, &data); err != nil {
		return nil, fmt.Errorf("decode nested data: %w", err)
	}
	if len(data.Choices) == 0 {
		return &chunk{}, nil
	}
	return &chunk{
		Content:      data.Choices[0].Message.Content,
		FinishReason: data.Choices[0].FinishReason,
	}, nil
}

// mapFinish 上游结束原因到 finish 状态码的映射
func mapFinish(reason string) int {
	switch reason {
	case "stop":
		return model.FinishStop
	case "sensitive_cancel":
		return model.FinishSensitive
	default:
		return model.FinishStreaming
	}
}
