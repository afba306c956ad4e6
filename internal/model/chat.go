package model

// ChatRequest 发送给上游大模型 /chat/completions 的请求体
type ChatRequest struct {
	Model             string        `json:"model"`
	Temperature       float64       `json:"temperature"`
	TopP              float64       `json:"top_p,omitempty"`
	RepetitionPenalty float64       `json:"repetition_penalty"`
	DoSample          bool          `json:"do_sample"`
	Stream            bool          `json:"stream"`
	Messages          []ChatMessage `json:"messages"`
}

// ChatMessage 单轮消息。Content 为纯文本 string，
// 多模态请求时为 []ContentBlock。
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ContentBlock 多模态内容块
type ContentBlock struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

const (
	ContentTypeText     = "text"
	ContentTypeImageURL = "image_url"
)

func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentTypeText, Text: text}
}

func ImageBlock(url string) ContentBlock {
	return ContentBlock{Type: ContentTypeImageURL, ImageURL: &ImageURL{URL: url}}
}
