package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"knowrag-backend/internal/model"
	"knowrag-backend/internal/service"
	"knowrag-backend/internal/utils"
	"knowrag-backend/pkg/logger"
)

// RAGHandler 知识库流式问答入口
type RAGHandler struct {
	query         *service.QueryService
	streamTimeout time.Duration
}

func NewRAGHandler(query *service.QueryService, streamTimeout time.Duration) *RAGHandler {
	return &RAGHandler{
		query:         query,
		streamTimeout: streamTimeout,
	}
}

// StreamSearch 知识库流式问答。事件以 SSE data 帧逐条下发，
// 客户端断开或超时后停止消费并通知生产端取消。
func (h *RAGHandler) StreamSearch(c *gin.Context) {
	var req model.StreamSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Errorf("请求解析失败: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": 1, "message": err.Error()})
		return
	}

	// 非流式调用不受支持，维持固定错误返回
	if !req.Stream {
		c.JSON(http.StatusOK, gin.H{
			"code":    1,
			"message": "fail",
			"data":    gin.H{"output": "parameter stream need to be true"},
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.streamTimeout)
	defer cancel()

	events := h.query.StreamSearch(ctx, &req)
	sseWriter := utils.NewSSEWriter(c.Writer)

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := sseWriter.WriteJSON(event); err != nil {
				logger.Errorf("写入 SSE 失败: %v", err)
				cancel()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
