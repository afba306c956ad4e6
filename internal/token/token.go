package token

import (
	"os"

	"github.com/pkoukk/tiktoken-go"
)

// 预留给提示词与上游协议开销的缓冲
const SafetyMargin = 50

// ImageTokenEstimate 单张图片的经验预估值。
// 低分辨率模式约 85 tokens，高分辨率通常 170 - 765+ tokens，取 170。
const ImageTokenEstimate = 170

// Encoder 按 token 计数、编码、解码文本。
// 实现按模型族可替换，当前统一用 cl100k_base 近似。
type Encoder interface {
	Count(text string) int
	Encode(text string) []int
	Decode(tokens []int) string
}

type tiktokenEncoder struct {
	enc *tiktoken.Tiktoken
}

// NewEncoder 创建基于 tiktoken cl100k_base 的编码器。
// cacheDir 非空时离线加载词表，避免启动时外网下载。
func NewEncoder(cacheDir string) (Encoder, error) {
	if cacheDir != "" {
		os.Setenv("TIKTOKEN_CACHE_DIR", cacheDir)
	}
	enc, err := tiktoken.EncodingForModel("gpt-4")
	if err != nil {
		return nil, err
	}
	return &tiktokenEncoder{enc: enc}, nil
}

func (t *tiktokenEncoder) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

func (t *tiktokenEncoder) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *tiktokenEncoder) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// AvailableContextTokens 计算留给召回上下文的 token 预算：
// 上下文窗口减去输出预留、安全缓冲和基础提示词占用，最低为 0。
func AvailableContextTokens(contextSize, maxTokens, baseTokens int) int {
	available := contextSize - maxTokens - SafetyMargin - baseTokens
	if available < 0 {
		return 0
	}
	return available
}
