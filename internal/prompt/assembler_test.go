package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowrag-backend/internal/model"
	"knowrag-backend/internal/token"
)

// runeEncoder 每个字符记一个 token，便于精确断言预算
type runeEncoder struct{}

func (runeEncoder) Count(text string) int { return len([]rune(text)) }

func (runeEncoder) Encode(text string) []int {
	runes := []rune(text)
	tokens := make([]int, len(runes))
	for i, r := range runes {
		tokens[i] = int(r)
	}
	return tokens
}

func (runeEncoder) Decode(tokens []int) string {
	runes := make([]rune, len(tokens))
	for i, tok := range tokens {
		runes[i] = rune(tok)
	}
	return string(runes)
}

func searchItem(snippet string) model.SearchItem {
	return model.SearchItem{"snippet": snippet}
}

func TestBuildPromptIncludesItemsInOrder(t *testing.T) {
	a := NewAssembler(runeEncoder{}, nil)
	built := a.BuildPrompt(PromptInput{
		Question:     "问题",
		SearchList:   []model.SearchItem{searchItem("第一条"), searchItem("第二条")},
		AutoCitation: true,
		ContextSize:  4000,
		MaxTokens:    100,
	})

	require.Len(t, built.Items, 2)
	first := strings.Index(built.Prompt, "【1^】")
	second := strings.Index(built.Prompt, "【2^】")
	require.GreaterOrEqual(t, first, 0)
	require.Greater(t, second, first)
	assert.Contains(t, built.Prompt, "第一条")
	assert.Contains(t, built.Prompt, "第二条")
}

func TestBuildPromptTruncatesFirstOverflowItem(t *testing.T) {
	a := NewAssembler(runeEncoder{}, nil)
	// 自定义模板基础占用 = len("q|") = 2，预算 = 100-20-50-2 = 28
	built := a.BuildPrompt(PromptInput{
		Question:    "q",
		Template:    "{question}|{context}",
		ContextSize: 100,
		MaxTokens:   20,
		SearchList: []model.SearchItem{
			searchItem("aaaaaaaaaa"),
			searchItem("bbbbbbbbbb"),
			searchItem("cccccccccc"),
			searchItem("dddddddddd"),
		},
	})

	// 前两条整条放入，第三条截到剩余 8 个 token，第四条被丢弃
	require.Len(t, built.Items, 3)
	assert.Contains(t, built.Prompt, "aaaaaaaaaa")
	assert.Contains(t, built.Prompt, "bbbbbbbbbb")
	assert.Contains(t, built.Prompt, "cccccccc...")
	assert.NotContains(t, built.Prompt, "ccccccccc\n")
	assert.NotContains(t, built.Prompt, "d")
}

func TestBuildPromptZeroBudgetDropsEverything(t *testing.T) {
	a := NewAssembler(runeEncoder{}, nil)
	built := a.BuildPrompt(PromptInput{
		Question:    "q",
		Template:    "{question}|{context}",
		ContextSize: 10, // 低于缓冲，预算为 0
		MaxTokens:   0,
		SearchList:  []model.SearchItem{searchItem("aaa")},
	})
	assert.Empty(t, built.Items)
	assert.NotContains(t, built.Prompt, "aaa")
}

func TestBuildPromptFallsBackToDefaultTemplate(t *testing.T) {
	a := NewAssembler(runeEncoder{}, nil)
	// 缺少 {question} 的模板不生效
	built := a.BuildPrompt(PromptInput{
		Question:    "天气如何",
		Template:    "只有 {context} 没有问题占位",
		ContextSize: 4000,
		MaxTokens:   100,
		SearchList:  []model.SearchItem{searchItem("晴")},
	})
	assert.Contains(t, built.Prompt, "天气如何")
	assert.NotContains(t, built.Prompt, "没有问题占位")
}

func TestBuildPromptMonotonicBudget(t *testing.T) {
	a := NewAssembler(runeEncoder{}, nil)
	items := []model.SearchItem{
		searchItem(strings.Repeat("a", 30)),
		searchItem(strings.Repeat("b", 30)),
		searchItem(strings.Repeat("c", 30)),
	}
	prev := 0
	for _, ctxSize := range []int{80, 120, 160, 400} {
		built := a.BuildPrompt(PromptInput{
			Question:    "q",
			Template:    "{question}|{context}",
			ContextSize: ctxSize,
			MaxTokens:   10,
			SearchList:  items,
		})
		assert.GreaterOrEqual(t, len(built.Items), prev, "预算放宽后入选条目不应减少")
		prev = len(built.Items)
	}
}

func TestBuildMultimodalContentBlockOrder(t *testing.T) {
	rewrite := func(u string) string {
		return strings.Replace(u, "https://gateway", "http://minio:9000", 1)
	}
	a := NewAssembler(runeEncoder{}, rewrite)

	item := model.SearchItem{
		"snippet": "设备说明",
		"rerank_info": []any{
			map[string]any{"type": "image", "file_url": "https://gateway/pic.png"},
		},
	}
	built := a.BuildMultimodalContent(MultimodalInput{
		Question:     "这是什么设备",
		SearchList:   []model.SearchItem{item},
		AutoCitation: true,
		Attachments:  []string{"https://example.com/user.png"},
		ContextSize:  8000,
		MaxTokens:    1000,
	})

	require.Len(t, built.Items, 1)
	blocks := built.Content
	require.GreaterOrEqual(t, len(blocks), 10)

	assert.Contains(t, blocks[0].Text, "问答助手")
	assert.Contains(t, blocks[1].Text, "这是什么设备")
	assert.Equal(t, "用户问题上传的照片：", blocks[2].Text)
	require.NotNil(t, blocks[3].ImageURL)
	assert.Equal(t, "https://example.com/user.png", blocks[3].ImageURL.URL)
	assert.Contains(t, blocks[4].Text, "参考信息")
	assert.Contains(t, blocks[5].Text, "【1^】")
	assert.Contains(t, blocks[6].Text, "设备说明")
	// 图片说明文字保留原始链接，图片块用改写后的内网地址
	assert.Contains(t, blocks[7].Text, "https://gateway/pic.png")
	require.NotNil(t, blocks[8].ImageURL)
	assert.Equal(t, "http://minio:9000/pic.png", blocks[8].ImageURL.URL)

	last := blocks[len(blocks)-1]
	assert.Contains(t, last.Text, "输出语言要求")
}

func TestBuildMultimodalContentDropsWholeOverflowItem(t *testing.T) {
	a := NewAssembler(runeEncoder{}, nil)
	item := model.SearchItem{
		"snippet": strings.Repeat("长", 500),
		"rerank_info": []any{
			map[string]any{"type": "image", "file_url": "https://gateway/pic.png"},
		},
	}
	built := a.BuildMultimodalContent(MultimodalInput{
		Question:    "q",
		SearchList:  []model.SearchItem{item},
		ContextSize: 400, // 固定文案加图片估算后放不下任何条目
		MaxTokens:   10,
	})

	assert.Empty(t, built.Items)
	for _, block := range built.Content {
		assert.NotContains(t, block.Text, "长")
	}
}

func TestBuildMultimodalImageTokenEstimate(t *testing.T) {
	a := NewAssembler(runeEncoder{}, nil)
	text := model.TextBlock("abcd")
	image := model.ImageBlock("https://example.com/x.png")
	assert.Equal(t, 4+token.ImageTokenEstimate, a.contentTokens([]model.ContentBlock{text, image}))
}

func TestTrimHistoryStopsAtFirstOverflow(t *testing.T) {
	enc := runeEncoder{}
	mk := func(n int) string { return strings.Repeat("x", n) }
	history := []model.History{
		{Query: mk(25), Response: mk(25)},
		{Query: mk(25), Response: mk(25)},
		{Query: mk(25), Response: mk(25)},
	}

	// 预算 = 220 - 50 - 50 = 120；每轮 50 token，第三轮累计 150 超出
	messages := TrimHistory(enc, history, 0, 220, 50)
	require.Len(t, messages, 4)
	assert.Equal(t, model.RoleUser, messages[0].Role)
	assert.Equal(t, model.RoleAssistant, messages[1].Role)
}

func TestTrimHistoryCountsUsedTokens(t *testing.T) {
	enc := runeEncoder{}
	history := []model.History{{Query: "aa", Response: "bb"}}

	// 已用 token 把预算吃满，历史整体丢弃
	messages := TrimHistory(enc, history, 1000, 500, 100)
	assert.Empty(t, messages)
}

func TestTrimHistoryEmpty(t *testing.T) {
	messages := TrimHistory(runeEncoder{}, nil, 0, 8000, 100)
	assert.Empty(t, messages)
}

func TestRenderTemplateCitationOnlyWhenPlaceholderPresent(t *testing.T) {
	rendered := renderTemplate("{question}:{context}", "q", "ctx", "CITE", "DEF")
	assert.Equal(t, "q:ctx", rendered)

	rendered = renderTemplate("{citation}{default_answer}{question}:{context}", "q", "ctx", "CITE", "DEF")
	assert.Equal(t, fmt.Sprintf("%s%s%s", "CITE", "DEF", "q:ctx"), rendered)
}
