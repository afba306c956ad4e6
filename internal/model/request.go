package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// 重排方式
const (
	RerankModeModel         = "rerank_model"
	RerankModeWeightedScore = "weighted_score"
)

const RetrieveMethodHybrid = "hybrid_search"

// StreamSearchRequest 知识库流式问答请求
type StreamSearchRequest struct {
	KnowledgeBaseInfo map[string][]KnowledgeBase `json:"knowledge_base_info"`
	Question          string                     `json:"question"`
	Threshold         float64                    `json:"threshold"`
	TopK              int                        `json:"topK"`
	Stream            bool                       `json:"stream"`
	History           []History                  `json:"history"`
	Chichat           *bool                      `json:"chichat"`        // 知识召回为空时是否仍请求大模型闲聊
	DefaultAnswer     string                     `json:"default_answer"` // 兜底话术
	ReturnMeta        bool                       `json:"return_meta"`
	PromptTemplate    string                     `json:"prompt_template"`
	TopP              float64                    `json:"top_p"`
	RepetitionPenalty float64                    `json:"repetition_penalty"`
	Temperature       float64                    `json:"temperature"`
	MaxHistory        *int                       `json:"max_history"`
	CustomModelInfo   CustomModelInfo            `json:"custom_model_info"`
	SearchField       string                     `json:"search_field"`
	DoSample          *bool                      `json:"do_sample"`
	AutoCitation      bool                       `json:"auto_citation"` // 与 prompt_template 互斥，开启时用户模板不生效
	DataFlywheel      bool                       `json:"data_flywheel"`
	ReturnScore       bool                       `json:"return_score"`
	RewriteQuery      bool                       `json:"rewrite_query"`
	RerankMod         string                     `json:"rerank_mod"`
	RerankModelID     string                     `json:"rerank_model_id"`
	Weights           map[string]float64         `json:"weights"`
	RetrieveMethod    string                     `json:"retrieve_method"`
	UseGraph          bool                       `json:"use_graph"`
	EnableVision      bool                       `json:"enable_vision"`
	AttachmentFiles   []AttachmentFile           `json:"attachment_files"`

	MetadataFiltering           bool             `json:"metadata_filtering"`
	MetadataFilteringConditions []map[string]any `json:"metadata_filtering_conditions"`
}

type KnowledgeBase struct {
	KBName string `json:"kb_name"`
	KBID   string `json:"kb_id"`
}

type CustomModelInfo struct {
	LLMModelID string `json:"llm_model_id"`
}

type History struct {
	Query       string `json:"query"`
	Response    string `json:"response"`
	NeedHistory bool   `json:"needHistory,omitempty"`
}

type AttachmentFile struct {
	FileType string `json:"file_type"`
	FileURL  string `json:"file_url"`
}

// Normalize 填充默认值并做参数归一
func (r *StreamSearchRequest) Normalize(defaultTemperature float64, defaultMaxHistory int, defaultAnswer string) {
	if r.DefaultAnswer == "" {
		r.DefaultAnswer = defaultAnswer
	}
	if r.TopP == 0 {
		r.TopP = 0.85
	}
	if r.RepetitionPenalty == 0 {
		r.RepetitionPenalty = 1.1
	}
	if r.Temperature == 0 {
		r.Temperature = defaultTemperature
	}
	if r.Temperature <= 0.01 { // 强制到 0.01 以下
		r.Temperature = 0.01
	}
	if r.MaxHistory == nil {
		n := defaultMaxHistory
		r.MaxHistory = &n
	}
	if r.SearchField == "" {
		r.SearchField = "con"
	}
	if r.RerankMod == "" {
		r.RerankMod = RerankModeModel
	}
	if r.RetrieveMethod == "" {
		r.RetrieveMethod = RetrieveMethodHybrid
	}
	if !r.MetadataFiltering {
		r.MetadataFilteringConditions = nil
	}

	// 历史只保留最近 max_history 轮
	if *r.MaxHistory > 0 {
		if len(r.History) > *r.MaxHistory {
			r.History = r.History[len(r.History)-*r.MaxHistory:]
		}
	} else {
		r.History = nil
	}
}

// EnableChichat 知识召回为空时是否允许闲聊兜底，缺省开启
func (r *StreamSearchRequest) EnableChichat() bool {
	if r.Chichat == nil {
		return true
	}
	return *r.Chichat
}

// SamplingEnabled do_sample 缺省时由温度决定
func (r *StreamSearchRequest) SamplingEnabled() bool {
	if r.DoSample != nil {
		return *r.DoSample
	}
	return r.Temperature > 0.1
}

// Validate 召回前的参数校验，任一失败都会以兜底流返回给调用方
func (r *StreamSearchRequest) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return errors.New("question cannot be empty")
	}
	if len(r.KnowledgeBaseInfo) == 0 {
		return errors.New("knowledge_base_info cannot be empty")
	}
	if r.CustomModelInfo.LLMModelID == "" {
		return errors.New("custom_model_info['llm_model_id'] 不能为空")
	}
	if r.TopK <= 0 {
		return errors.New("top_k必须大于0")
	}
	if r.RerankMod == RerankModeModel && r.RerankModelID == "" {
		return errors.New("rerank_model_id cannot be empty when using model-based reranking.")
	}
	if r.RerankMod == RerankModeWeightedScore {
		if r.Weights == nil {
			return errors.New("weights cannot be empty when using weighted score reranking.")
		}
		if r.RetrieveMethod != RetrieveMethodHybrid {
			return errors.New("Weighted score reranking is only supported in hybrid search mode.")
		}
	}
	for _, item := range r.AttachmentFiles {
		if item.FileType != "image" {
			return fmt.Errorf("attachment_file type %s not support", item.FileType)
		}
		u, err := url.Parse(item.FileURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("Invalid attachment file URL: %s", item.FileURL)
		}
	}
	if len(r.AttachmentFiles) > 1 {
		return errors.New("Multiple attachment files are not supported.")
	}
	return nil
}

// ImageAttachments 过滤出图片附件链接
func (r *StreamSearchRequest) ImageAttachments() []string {
	var urls []string
	for _, item := range r.AttachmentFiles {
		if item.FileType == "image" {
			urls = append(urls, item.FileURL)
		}
	}
	return urls
}
