package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() *StreamSearchRequest {
	return &StreamSearchRequest{
		KnowledgeBaseInfo: map[string][]KnowledgeBase{
			"u1": {{KBName: "kb", KBID: "kb-1"}},
		},
		Question:        "如何申请设备",
		TopK:            5,
		Stream:          true,
		CustomModelInfo: CustomModelInfo{LLMModelID: "m-1"},
		RerankModelID:   "r-1",
	}
}

func normalized(r *StreamSearchRequest) *StreamSearchRequest {
	r.Normalize(0.7, 10, "根据已知信息，无法回答您的问题。")
	return r
}

func TestNormalizeDefaults(t *testing.T) {
	r := normalized(validRequest())

	assert.Equal(t, 0.85, r.TopP)
	assert.Equal(t, 1.1, r.RepetitionPenalty)
	assert.Equal(t, 0.7, r.Temperature)
	assert.Equal(t, "con", r.SearchField)
	assert.Equal(t, RerankModeModel, r.RerankMod)
	assert.Equal(t, RetrieveMethodHybrid, r.RetrieveMethod)
	assert.Equal(t, "根据已知信息，无法回答您的问题。", r.DefaultAnswer)
	require.NotNil(t, r.MaxHistory)
	assert.Equal(t, 10, *r.MaxHistory)
}

func TestNormalizeTemperatureFloor(t *testing.T) {
	r := validRequest()
	r.Temperature = 0.001
	normalized(r)
	assert.Equal(t, 0.01, r.Temperature)
}

func TestNormalizeHistoryWindow(t *testing.T) {
	r := validRequest()
	for i := 0; i < 15; i++ {
		r.History = append(r.History, History{Query: "q", Response: "a"})
	}
	normalized(r)
	assert.Len(t, r.History, 10)

	r = validRequest()
	zero := 0
	r.MaxHistory = &zero
	r.History = []History{{Query: "q", Response: "a"}}
	normalized(r)
	assert.Empty(t, r.History)
}

func TestNormalizeClearsFilterConditionsWhenDisabled(t *testing.T) {
	r := validRequest()
	r.MetadataFilteringConditions = []map[string]any{{"field": "dept"}}
	normalized(r)
	assert.Nil(t, r.MetadataFilteringConditions)
}

func TestSamplingEnabled(t *testing.T) {
	r := validRequest()
	r.Temperature = 0.5
	normalized(r)
	assert.True(t, r.SamplingEnabled())

	r = validRequest()
	r.Temperature = 0.05
	normalized(r)
	assert.False(t, r.SamplingEnabled())

	r = validRequest()
	off := false
	r.DoSample = &off
	r.Temperature = 0.9
	normalized(r)
	assert.False(t, r.SamplingEnabled())
}

func TestEnableChichatDefaultsTrue(t *testing.T) {
	r := validRequest()
	assert.True(t, r.EnableChichat())

	off := false
	r.Chichat = &off
	assert.False(t, r.EnableChichat())
}

func TestValidateMatrix(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*StreamSearchRequest)
		errMsg string
	}{
		{
			name:   "空问题",
			mutate: func(r *StreamSearchRequest) { r.Question = "  " },
			errMsg: "question cannot be empty",
		},
		{
			name:   "缺知识库",
			mutate: func(r *StreamSearchRequest) { r.KnowledgeBaseInfo = nil },
			errMsg: "knowledge_base_info cannot be empty",
		},
		{
			name:   "缺模型ID",
			mutate: func(r *StreamSearchRequest) { r.CustomModelInfo.LLMModelID = "" },
			errMsg: "custom_model_info['llm_model_id'] 不能为空",
		},
		{
			name:   "topK非正",
			mutate: func(r *StreamSearchRequest) { r.TopK = 0 },
			errMsg: "top_k必须大于0",
		},
		{
			name: "模型重排缺rerank_model_id",
			mutate: func(r *StreamSearchRequest) {
				r.RerankMod = RerankModeModel
				r.RerankModelID = ""
			},
			errMsg: "rerank_model_id cannot be empty",
		},
		{
			name: "加权重排缺weights",
			mutate: func(r *StreamSearchRequest) {
				r.RerankMod = RerankModeWeightedScore
				r.Weights = nil
			},
			errMsg: "weights cannot be empty",
		},
		{
			name: "加权重排要求混合检索",
			mutate: func(r *StreamSearchRequest) {
				r.RerankMod = RerankModeWeightedScore
				r.Weights = map[string]float64{"bm25": 0.4}
				r.RetrieveMethod = "vector_search"
			},
			errMsg: "only supported in hybrid search mode",
		},
		{
			name: "非图片附件",
			mutate: func(r *StreamSearchRequest) {
				r.AttachmentFiles = []AttachmentFile{{FileType: "pdf", FileURL: "https://x/y.pdf"}}
			},
			errMsg: "attachment_file type pdf not support",
		},
		{
			name: "附件链接非法",
			mutate: func(r *StreamSearchRequest) {
				r.AttachmentFiles = []AttachmentFile{{FileType: "image", FileURL: "/local/path.png"}}
			},
			errMsg: "Invalid attachment file URL",
		},
		{
			name: "多附件",
			mutate: func(r *StreamSearchRequest) {
				r.AttachmentFiles = []AttachmentFile{
					{FileType: "image", FileURL: "https://x/a.png"},
					{FileType: "image", FileURL: "https://x/b.png"},
				}
			},
			errMsg: "Multiple attachment files are not supported.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validRequest()
			normalized(r)
			tc.mutate(r)
			err := r.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestValidateAcceptsWellFormedRequest(t *testing.T) {
	r := normalized(validRequest())
	assert.NoError(t, r.Validate())

	r.AttachmentFiles = []AttachmentFile{{FileType: "image", FileURL: "https://example.com/a.png"}}
	assert.NoError(t, r.Validate())
}
