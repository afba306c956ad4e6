package utils

import (
	"net/http"
	"time"
)

// NewHTTPClient 各外部依赖共用的 HTTP 客户端工厂。
// 流式请求的 timeout 覆盖整个响应周期，需按上游耗时上限配置。
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
