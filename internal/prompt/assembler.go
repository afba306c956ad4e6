package prompt

import (
	"fmt"
	"strings"

	"knowrag-backend/internal/model"
	"knowrag-backend/internal/token"
)

// Assembler 负责把召回条目装配进受 token 预算约束的提示词。
// rewriteURL 用于把图片外链改写回内部可访问地址，可为 nil。
type Assembler struct {
	enc        token.Encoder
	rewriteURL func(string) string
}

func NewAssembler(enc token.Encoder, rewriteURL func(string) string) *Assembler {
	return &Assembler{enc: enc, rewriteURL: rewriteURL}
}

// PromptInput 纯文本装配入参
type PromptInput struct {
	Question      string
	SearchList    []model.SearchItem
	DefaultAnswer string
	AutoCitation  bool
	Template      string
	ContextSize   int
	MaxTokens     int
}

// TextPrompt 装配结果。Items 与提示词中上下文条目顺序一致，
// 引文编号【i+1^】与 Items 下标对应。
type TextPrompt struct {
	Prompt string
	Items  []model.SearchItem
	Tokens int // 渲染后提示词整体 token 数
}

// BuildPrompt 按条目顺序贪心装配上下文：整条放得下则放入；
// 第一条放不下的按剩余预算截断 token 并追加省略号，之后的条目全部丢弃。
func (a *Assembler) BuildPrompt(in PromptInput) *TextPrompt {
	citation := citationText(in.AutoCitation)
	answerText := defaultAnswerText(in.AutoCitation, in.DefaultAnswer)
	template := selectTemplate(in.Template)

	// 用空 context 渲染一遍，估算模板与问题的基础占用
	baseFilled := renderTemplate(template, in.Question, "", citation, answerText)
	baseTokens := a.enc.Count(baseFilled)
	available := token.AvailableContextTokens(in.ContextSize, in.MaxTokens, baseTokens)

	var parts []string
	var items []model.SearchItem
	current := 0

	for i, item := range in.SearchList {
		itemText := item.Snippet()
		if in.AutoCitation {
			itemText = fmt.Sprintf("\n【%d^】\n%s", i+1, item.Snippet())
		}
		itemTokens := a.enc.Count(itemText)

		if current+itemTokens <= available {
			parts = append(parts, itemText)
			items = append(items, item)
			current += itemTokens
			continue
		}

		// 剩余空位非零时截断本条填满预算，之后的条目不再考虑
		if remaining := available - current; remaining > 0 {
			tokens := a.enc.Encode(itemText)
			truncated := a.enc.Decode(tokens[:remaining]) + "..."
			parts = append(parts, truncated)
			items = append(items, item)
			current += remaining
		}
		break
	}

	context := strings.Join(parts, "\n")
	rendered := renderTemplate(template, in.Question, context, citation, answerText)
	return &TextPrompt{
		Prompt: rendered,
		Items:  items,
		Tokens: a.enc.Count(rendered),
	}
}

// MultimodalInput 多模态装配入参
type MultimodalInput struct {
	Question      string
	SearchList    []model.SearchItem
	AutoCitation  bool
	Attachments   []string // 用户随问题上传的图片链接，至多一张
	ContextSize   int
	MaxTokens     int
}

// MultimodalPrompt 多模态装配结果
type MultimodalPrompt struct {
	Content []model.ContentBlock
	Items   []model.SearchItem
	Tokens  int
}

// BuildMultimodalContent 构建图文混排内容块列表。条目粒度贪心取舍，
// 图片按经验值估算 token，超出预算的条目整体丢弃。
func (a *Assembler) BuildMultimodalContent(in MultimodalInput) *MultimodalPrompt {
	available := token.AvailableContextTokens(in.ContextSize, in.MaxTokens, 0)

	content := []model.ContentBlock{
		model.TextBlock(fmt.Sprintf(multimodalSystemText, citationText(in.AutoCitation))),
		model.TextBlock(fmt.Sprintf(multimodalQuestionText, in.Question)),
	}
	for _, url := range in.Attachments {
		content = append(content,
			model.TextBlock(multimodalAttachmentText),
			model.ImageBlock(url),
		)
	}
	content = append(content, model.TextBlock(multimodalContextOpen))

	endBlock := model.TextBlock(multimodalOutputFormat)
	numTokens := a.contentTokens(content) + a.contentTokens([]model.ContentBlock{endBlock})

	var items []model.SearchItem
	for i, item := range in.SearchList {
		blocks := []model.ContentBlock{
			model.TextBlock(fmt.Sprintf("\n【%d^】\n", i+1)),
			model.TextBlock(item.Snippet() + "\n"),
		}
		for _, info := range item.RerankInfos() {
			if info.Type != "image" {
				continue
			}
			fileURL := info.FileURL
			if a.rewriteURL != nil {
				fileURL = a.rewriteURL(fileURL)
			}
			blocks = append(blocks,
				model.TextBlock(fmt.Sprintf("\n此 %s 的图片是:", info.FileURL)),
				model.ImageBlock(fileURL),
			)
		}

		numTokens += a.contentTokens(blocks)
		if numTokens > available {
			break
		}
		content = append(content, blocks...)
		items = append(items, item)
	}

	content = append(content, model.TextBlock(multimodalContextClose), endBlock)
	return &MultimodalPrompt{
		Content: content,
		Items:   items,
		Tokens:  numTokens,
	}
}

// contentTokens 估算内容块的 token 占用，图片块按固定经验值计
func (a *Assembler) contentTokens(blocks []model.ContentBlock) int {
	total := 0
	for _, block := range blocks {
		switch block.Type {
		case model.ContentTypeText:
			total += a.enc.Count(block.Text)
		case model.ContentTypeImageURL:
			total += token.ImageTokenEstimate
		}
	}
	return total
}
