package prompt

import (
	"knowrag-backend/internal/model"
	"knowrag-backend/internal/token"
)

// TrimHistory 把历史对话装配为 user/assistant 消息对。
// 从最旧的允许轮次向后累加 token，一旦超出预算立即停止，
// 之后的轮次即使单独放得下也不再纳入。
func TrimHistory(enc token.Encoder, history []model.History, usedTokens, contextSize, maxTokens int) []model.ChatMessage {
	available := token.AvailableContextTokens(contextSize, maxTokens, 0)

	var messages []model.ChatMessage
	num := usedTokens
	for _, turn := range history {
		num += enc.Count(turn.Query)
		num += enc.Count(turn.Response)
		if num > available {
			break
		}
		messages = append(messages,
			model.ChatMessage{Role: model.RoleUser, Content: turn.Query},
			model.ChatMessage{Role: model.RoleAssistant, Content: turn.Response},
		)
	}
	return messages
}
