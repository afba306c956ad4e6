package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"knowrag-backend/internal/model"
	"knowrag-backend/internal/utils"
	"knowrag-backend/pkg/logger"
)

// ErrEmptyStream 上游返回空流
var ErrEmptyStream = errors.New("response body is empty (no stream data received)")

// 单条流数据的扫描上限，防止超长行撑爆默认缓冲
const maxLineSize = 1 << 20

// EventContext 生成事件时回显给调用方的请求上下文
type EventContext struct {
	Question   string
	History    []model.History
	SearchList []model.SearchItem
	Score      *[]float64
	MsgID      string
}

// Client 上游大模型流式客户端
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{httpClient: utils.NewHTTPClient(timeout)}
}

// Stream 向上游发起流式对话请求，把增量输出装配为统一事件写入返回通道。
// 通道在终态事件或错误事件之后关闭；调用方取消 ctx 时生产端在下一次
// 发送点停止读取上游并释放连接。
func (c *Client) Stream(ctx context.Context, llmURL, apiKey string, payload *model.ChatRequest, evCtx *EventContext) <-chan model.StreamEvent {
	out := make(chan model.StreamEvent, 8)
	go c.run(ctx, llmURL, apiKey, payload, evCtx, out)
	return out
}

func (c *Client) run(ctx context.Context, llmURL, apiKey string, payload *model.ChatRequest, evCtx *EventContext, out chan<- model.StreamEvent) {
	defer close(out)

	startTime := time.Now()
	finish := model.FinishStreaming
	answer := ""
	firstOutput := true
	currentLine := ""

	err := func() error {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode llm request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, llmURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build llm request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+apiKey)

		logger.Infof("%s ====== 大模型开始流式输出，发送到大模型参数：%s", llmURL, string(body))
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request llm: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			errText, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
			return fmt.Errorf("HTTP Error %d: %s", resp.StatusCode, string(errText))
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)

		hasStreamData := false
		for scanner.Scan() {
			hasStreamData = true
			line := scanner.Text()
			currentLine = line
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			line = strings.TrimPrefix(line, "data:")
			if strings.TrimSpace(line) == "[DONE]" {
				continue
			}

			ck, err := parseChunk([]byte(line))
			if err != nil {
				return err
			}

			finish = mapFinish(ck.FinishReason)
			answer += ck.Content

			historyTmp := make([]model.History, 0, len(evCtx.History)+1)
			historyTmp = append(historyTmp, evCtx.History...)
			historyTmp = append(historyTmp, model.History{
				Query:       evCtx.Question,
				Response:    answer,
				NeedHistory: true,
			})

			event := model.StreamEvent{
				Code:    0,
				Message: "success",
				MsgID:   evCtx.MsgID,
				Data: &model.EventData{
					Output:     ck.Content,
					SearchList: evCtx.SearchList,
					Score:      evCtx.Score,
				},
				History: historyTmp,
				Finish:  model.FinishOf(finish),
			}

			select {
			case out <- event:
			case <-ctx.Done():
				return ctx.Err()
			}

			if firstOutput {
				logger.Infof("question:%s。开始流式第一个词返回时间：%v", evCtx.Question, time.Since(startTime))
				firstOutput = false
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read llm stream: %w", err)
		}
		if !hasStreamData {
			return ErrEmptyStream
		}
		return nil
	}()

	if err != nil {
		logger.Errorf("LLM Error url:%s, current parsed stream data: %s, err: %v", llmURL, currentLine, err)
		// 已经下发过终态事件时只记日志，避免客户端收到矛盾的第二个终态
		if finish != model.FinishStop && finish != model.FinishSensitive {
			errEvent := model.StreamEvent{
				Code:    1,
				Message: fmt.Sprintf("LLM Error:%v", err),
			}
			select {
			case out <- errEvent:
			case <-ctx.Done():
			}
		}
	}

	logger.Infof("question:%s。流式最后一个词返回时间：%v", evCtx.Question, time.Since(startTime))
}
