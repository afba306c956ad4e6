package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"knowrag-backend/internal/callback"
	"knowrag-backend/pkg/logger"
)

// CallbackHandler 第三方搜索与生成服务的转发入口。
// API Key 由调用方通过 Bearer 头透传，服务端不保管密钥。
type CallbackHandler struct {
	bocha  *callback.BochaClient
	tavily *callback.TavilyClient
	ali    *callback.AliClient
}

func NewCallbackHandler(bocha *callback.BochaClient, tavily *callback.TavilyClient, ali *callback.AliClient) *CallbackHandler {
	return &CallbackHandler{
		bocha:  bocha,
		tavily: tavily,
		ali:    ali,
	}
}

// bearerKey 从 Authorization 头提取 Bearer Token
func bearerKey(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

func relay(c *gin.Context, body []byte, err error) {
	if err != nil {
		logger.Errorf("转发第三方服务失败: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"code": 1, "message": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}

// BochaSearch 博查 AI 搜索
func (h *CallbackHandler) BochaSearch(c *gin.Context) {
	apiKey := bearerKey(c)
	if apiKey == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": 1, "message": "missing api key"})
		return
	}

	var req struct {
		Query      string `json:"query"`
		MaxResults int    `json:"max_results"`
		Freshness  string `json:"freshness"`
		Answer     *bool  `json:"answer"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": 1, "message": "Missing query"})
		return
	}

	answer := true
	if req.Answer != nil {
		answer = *req.Answer
	}
	count := req.MaxResults
	if count <= 0 {
		count = 10
	}
	body, err := h.bocha.Search(c.Request.Context(), apiKey, &callback.BochaSearchParams{
		Query:     req.Query,
		Count:     count,
		Freshness: req.Freshness,
		Answer:    answer,
	})
	relay(c, body, err)
}

// TavilyNews 基础新闻搜索
func (h *CallbackHandler) TavilyNews(c *gin.Context) {
	h.tavilySearch(c, callback.TavilyDepthBasic)
}

// TavilyNewsDeep 深度新闻搜索
func (h *CallbackHandler) TavilyNewsDeep(c *gin.Context) {
	h.tavilySearch(c, callback.TavilyDepthAdvanced)
}

func (h *CallbackHandler) tavilySearch(c *gin.Context, depth string) {
	apiKey := bearerKey(c)
	if apiKey == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": 1, "message": "missing api key"})
		return
	}

	var req struct {
		Query      string `json:"query"`
		MaxResults int    `json:"max_results"`
		Days       int    `json:"days"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": 1, "message": "Missing query"})
		return
	}
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = 7
	}
	body, err := h.tavily.SearchNews(c.Request.Context(), apiKey, &callback.TavilyNewsParams{
		Query:         req.Query,
		SearchDepth:   depth,
		MaxResults:    maxResults,
		Days:          req.Days,
		IncludeAnswer: depth == callback.TavilyDepthAdvanced,
	})
	relay(c, body, err)
}

// AliTextToImage 提交文生图任务
func (h *CallbackHandler) AliTextToImage(c *gin.Context) {
	apiKey := bearerKey(c)
	if apiKey == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": 1, "message": "missing api key"})
		return
	}

	var req callback.AliImageParams
	if err := c.ShouldBindJSON(&req); err != nil || req.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": 1, "message": "Missing prompt"})
		return
	}
	if req.Model == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": 1, "message": "missing model"})
		return
	}
	body, err := h.ali.SubmitImageTask(c.Request.Context(), apiKey, &req)
	relay(c, body, err)
}

// AliImageToVideo 提交图生视频任务
func (h *CallbackHandler) AliImageToVideo(c *gin.Context) {
	apiKey := bearerKey(c)
	if apiKey == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": 1, "message": "missing api key"})
		return
	}

	var req callback.AliVideoParams
	if err := c.ShouldBindJSON(&req); err != nil || req.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": 1, "message": "Missing prompt"})
		return
	}
	if req.Model == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": 1, "message": "missing model"})
		return
	}
	body, err := h.ali.SubmitVideoTask(c.Request.Context(), apiKey, &req)
	relay(c, body, err)
}

// AliTaskStatus 查询异步生成任务状态
func (h *CallbackHandler) AliTaskStatus(c *gin.Context) {
	apiKey := bearerKey(c)
	if apiKey == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": 1, "message": "missing api key"})
		return
	}
	body, err := h.ali.TaskStatus(c.Request.Context(), apiKey, c.Param("task_id"))
	relay(c, body, err)
}
