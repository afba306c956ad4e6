package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAvailableContextTokens(t *testing.T) {
	// 8000 窗口，4096 输出预留，基础提示词 100
	assert.Equal(t, 8000-4096-SafetyMargin-100, AvailableContextTokens(8000, 4096, 100))
}

func TestAvailableContextTokensNeverNegative(t *testing.T) {
	assert.Equal(t, 0, AvailableContextTokens(100, 4096, 0))
	assert.Equal(t, 0, AvailableContextTokens(0, 0, 1))
	assert.Equal(t, 0, AvailableContextTokens(50, 0, 0))
}

func TestAvailableContextTokensBoundary(t *testing.T) {
	// 恰好用完缓冲
	assert.Equal(t, 0, AvailableContextTokens(SafetyMargin, 0, 0))
	assert.Equal(t, 1, AvailableContextTokens(SafetyMargin+1, 0, 0))
}
