package prompt

import (
	"fmt"
	"strings"
)

// DefaultTemplate 默认问答模板。自定义模板必须包含 {question} 才会生效。
const DefaultTemplate = `你是一个问答助手，请仅根据参考信息中提供的上下文回答用户问题。{citation}{default_answer}
参考信息：
{context}

用户问题：{question}
`

// CitationInstruction 自动引文指令，开启 auto_citation 时注入模板
const CitationInstruction = `回答中引用参考信息时，请在对应句子末尾标注来源编号，格式为【编号^】，编号与参考信息中的条目一一对应，不要编造不存在的编号。`

// defaultAnswerInstruction 兜底话术指令，仅在开启引文且配置了兜底话术时注入
const defaultAnswerInstruction = "请仅基于提供的参考信息中上下文提供答案。如果提供的参考信息中的所有上下文对回答问题均无帮助，请直接输出:%s"

// 多模态问答的固定文案
const (
	multimodalSystemText     = "你是一个问答助手，主要任务是汇总参考信息回答用户问题, 请只根据参考信息中提供的上下文信息回答用户问题。 %s"
	multimodalQuestionText   = "用户问题：%s"
	multimodalAttachmentText = "用户问题上传的照片："
	multimodalContextOpen    = "\n参考信息：```\n"
	multimodalContextClose   = "\n```\n"
	multimodalOutputFormat   = "请根据参考信息回答用户问题，请严格按照以下要求输出：\n" +
		"1. **参考信息中提及图片链接情况的输出要求**：若参考信息提及图片链接且链接格式符合markdown语法规范：“![图片标题](图片链接)” 。" +
		"请按此链接格式将相关图像内容附加输出，注意确保图片链接格式完整不被截断。" +
		"若参考信息未提及图片链接则忽略此规则并注意不要随意捏造图片链接，在答案输出中不要体现此条指令信息的任何内容。\n" +
		"2. **输出语言要求**：必须使用与问题相同的语言回答用户的问题。\n"
)

// selectTemplate 自定义模板为空或缺少 {question} 占位符时回落到默认模板
func selectTemplate(custom string) string {
	if len(custom) > 0 && strings.Contains(custom, "{question}") {
		return custom
	}
	return DefaultTemplate
}

// renderTemplate 渲染模板。{citation} 与 {default_answer} 仅在模板
// 含 {citation} 占位符时参与替换，与自定义纯净模板兼容。
func renderTemplate(template, question, context, citation, defaultAnswerText string) string {
	pairs := []string{
		"{question}", question,
		"{context}", context,
	}
	if strings.Contains(template, "{citation}") {
		pairs = append(pairs,
			"{citation}", citation,
			"{default_answer}", defaultAnswerText,
		)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func defaultAnswerText(autoCitation bool, defaultAnswer string) string {
	if autoCitation && defaultAnswer != "" {
		return fmt.Sprintf(defaultAnswerInstruction, defaultAnswer)
	}
	return ""
}

func citationText(autoCitation bool) string {
	if autoCitation {
		return CitationInstruction
	}
	return ""
}
