package service

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"knowrag-backend/internal/config"
	"knowrag-backend/internal/llm"
	"knowrag-backend/internal/model"
	"knowrag-backend/internal/modelprovider"
	"knowrag-backend/internal/prompt"
	"knowrag-backend/internal/retrieval"
	"knowrag-backend/internal/storage"
	"knowrag-backend/internal/token"
	"knowrag-backend/pkg/logger"
)

// Retriever 知识召回服务
type Retriever interface {
	Search(ctx context.Context, params *retrieval.SearchParams) (*model.RetrievalResult, error)
}

// ModelConfigProvider 模型注册中心
type ModelConfigProvider interface {
	GetModelConfig(ctx context.Context, modelID string) (*model.LLMConfig, error)
}

// UserLogStore 用户日志留痕存储
type UserLogStore interface {
	UpsertUserLog(ctx context.Context, entry *storage.UserLog) error
}

// 默认实现的接口符合性检查
var (
	_ Retriever           = (*retrieval.Client)(nil)
	_ ModelConfigProvider = (*modelprovider.Client)(nil)
	_ UserLogStore        = (*storage.MongoLogStore)(nil)
)

// QueryService 知识库流式问答编排：参数归一与校验、query 改写、
// 飞轮缓存、知识召回、用户日志留痕、提示词装配与大模型生成。
type QueryService struct {
	cfg       *config.Config
	enc       token.Encoder
	assembler *prompt.Assembler
	llmClient *llm.Client
	retriever Retriever
	provider  ModelConfigProvider
	cache     storage.Cache
	logs      UserLogStore // nil 时不落库
}

func NewQueryService(
	cfg *config.Config,
	enc token.Encoder,
	assembler *prompt.Assembler,
	llmClient *llm.Client,
	retriever Retriever,
	provider ModelConfigProvider,
	cache storage.Cache,
	logs UserLogStore,
) *QueryService {
	return &QueryService{
		cfg:       cfg,
		enc:       enc,
		assembler: assembler,
		llmClient: llmClient,
		retriever: retriever,
		provider:  provider,
		cache:     cache,
		logs:      logs,
	}
}

// StreamSearch 处理一次流式查询，返回事件通道。任何校验或依赖
// 失败都会退化成同样形态的兜底事件流，调用方无需区分路径。
func (s *QueryService) StreamSearch(ctx context.Context, req *model.StreamSearchRequest) <-chan model.StreamEvent {
	req.Normalize(s.cfg.RAG.Temperature, s.cfg.RAG.MaxHistory, s.cfg.RAG.DefaultAnswer)

	logger.Info("---------------流式查询---------------")
	logger.Infof("knowledge_base_info:%v\tquestion:%s", req.KnowledgeBaseInfo, req.Question)

	if err := req.Validate(); err != nil {
		logger.Errorf("参数校验失败: %v", err)
		return FallbackStream(ctx, req.DefaultAnswer, req.History, req.Question, 1, err.Error(), nil, "")
	}

	msgID := newMsgID(req.KnowledgeBaseInfo, req.Question)
	question := req.Question
	if req.RewriteQuery && s.cache != nil {
		question = s.rewriteQuestion(ctx, req)
	}

	code := 0
	message := "success"
	var searchList []model.SearchItem
	var scoreVals []float64
	usedCache := false

	result, fromCache, err := s.retrieve(ctx, req, question)
	usedCache = fromCache
	switch {
	case err != nil:
		logger.Errorf("====> 知识召回异常 error %v", err)
		code = 1
		message = err.Error()
	case result.Code != 0:
		logger.Errorf("====> 知识召回返回错误 code=%d, message=%s", result.Code, result.Message)
		code = 1
		message = result.Message
	default:
		searchList = result.Data.SearchList
		scoreVals = result.Data.Score
	}

	var score *[]float64
	if req.ReturnScore {
		if scoreVals == nil {
			scoreVals = []float64{}
		}
		score = &scoreVals
	}

	if s.logs != nil {
		if err := s.saveUserLog(ctx, req, msgID, question, searchList, scoreVals, usedCache); err != nil {
			logger.Errorf("====> stream search save mongoDB error %v", err)
			msgID = model.MsgIDPersistFailed
		}
	}

	if code != 0 {
		return FallbackStream(ctx, req.DefaultAnswer, req.History, question, code, message, score, msgID)
	}

	if len(searchList) > 0 || req.EnableChichat() {
		llmCfg, err := s.provider.GetModelConfig(ctx, req.CustomModelInfo.LLMModelID)
		if err != nil {
			logger.Errorf("获取模型配置失败: %v", err)
			return FallbackStream(ctx, req.DefaultAnswer, req.History, question, 1, err.Error(), score, msgID)
		}
		if llmCfg.IsMultimodal {
			return s.generateMultimodal(ctx, req, llmCfg, question, searchList, score, msgID)
		}
		return s.generateText(ctx, req, llmCfg, question, searchList, score, msgID)
	}

	// 知识召回为空且未开启闲聊兜底，直接下发兜底话术
	return FallbackStream(ctx, req.DefaultAnswer, req.History, question, 0, "success", score, msgID)
}

// generateText 纯文本生成：装配提示词与历史后调用大模型
func (s *QueryService) generateText(ctx context.Context, req *model.StreamSearchRequest, llmCfg *model.LLMConfig, question string, searchList []model.SearchItem, score *[]float64, msgID string) <-chan model.StreamEvent {
	built := s.assembler.BuildPrompt(prompt.PromptInput{
		Question:      question,
		SearchList:    searchList,
		DefaultAnswer: req.DefaultAnswer,
		AutoCitation:  req.AutoCitation,
		Template:      req.PromptTemplate,
		ContextSize:   llmCfg.ContextSize,
		MaxTokens:     llmCfg.MaxTokens,
	})

	messages := prompt.TrimHistory(s.enc, req.History, built.Tokens, llmCfg.ContextSize, llmCfg.MaxTokens)
	messages = append(messages, model.ChatMessage{Role: model.RoleUser, Content: built.Prompt})

	payload := &model.ChatRequest{
		Model:             llmCfg.ModelName,
		Temperature:       req.Temperature,
		RepetitionPenalty: req.RepetitionPenalty,
		DoSample:          req.SamplingEnabled(),
		Stream:            true,
		Messages:          messages,
	}
	return s.llmClient.Stream(ctx, llmCfg.EndpointURL+"/chat/completions", llmCfg.APIKey, payload, &llm.EventContext{
		Question:   question,
		History:    req.History,
		SearchList: built.Items,
		Score:      score,
		MsgID:      msgID,
	})
}

// generateMultimodal 图文混排生成。模型不支持视觉输入时退化为兜底流。
func (s *QueryService) generateMultimodal(ctx context.Context, req *model.StreamSearchRequest, llmCfg *model.LLMConfig, question string, searchList []model.SearchItem, score *[]float64, msgID string) <-chan model.StreamEvent {
	if !llmCfg.IsVisionSupport {
		msg := fmt.Sprintf("llm is not support vision,multimodal_model_id:%s", llmCfg.ModelID)
		logger.Errorf(msg)
		return FallbackStream(ctx, req.DefaultAnswer, req.History, question, 1, msg, score, msgID)
	}

	built := s.assembler.BuildMultimodalContent(prompt.MultimodalInput{
		Question:     question,
		SearchList:   searchList,
		AutoCitation: req.AutoCitation,
		Attachments:  req.ImageAttachments(),
		ContextSize:  llmCfg.ContextSize,
		MaxTokens:    llmCfg.MaxTokens,
	})

	messages := prompt.TrimHistory(s.enc, req.History, built.Tokens, llmCfg.ContextSize, llmCfg.MaxTokens)
	messages = append(messages, model.ChatMessage{Role: model.RoleUser, Content: built.Content})

	payload := &model.ChatRequest{
		Model:             llmCfg.ModelName,
		Temperature:       req.Temperature,
		TopP:              req.TopP,
		RepetitionPenalty: req.RepetitionPenalty,
		DoSample:          req.SamplingEnabled(),
		Stream:            true,
		Messages:          messages,
	}
	return s.llmClient.Stream(ctx, llmCfg.EndpointURL+"/chat/completions", llmCfg.APIKey, payload, &llm.EventContext{
		Question:   question,
		History:    req.History,
		SearchList: built.Items,
		Score:      score,
		MsgID:      msgID,
	})
}

// retrieve 执行知识召回。开启数据飞轮时先查缓存，命中且结果有效
// 直接复用；未命中则实时召回，成功后尽力回填缓存，回填失败只记日志。
func (s *QueryService) retrieve(ctx context.Context, req *model.StreamSearchRequest, question string) (*model.RetrievalResult, bool, error) {
	var cacheKey string
	if req.DataFlywheel && s.cache != nil {
		cacheKey = flywheelKey(req.KnowledgeBaseInfo, req.TopK, question)
		exists, err := s.cache.Exists(ctx, cacheKey)
		if err != nil {
			logger.Errorf("查询飞轮缓存失败,cache_key=%s,err=%v", cacheKey, err)
		} else if exists {
			logger.Infof("=========>命中缓存,cache_key=%s", cacheKey)
			raw, err := s.cache.Get(ctx, cacheKey)
			if err == nil {
				var cached model.RetrievalResult
				if json.Unmarshal([]byte(raw), &cached) == nil && cached.Valid() {
					return &cached, true, nil
				}
			}
		}
	}

	result, err := s.retriever.Search(ctx, searchParams(req, question, s.cfg.RAG.ChunkSize))
	if err != nil {
		return nil, false, err
	}

	if cacheKey != "" && result.Valid() {
		if raw, marshalErr := json.Marshal(result); marshalErr == nil {
			if setErr := s.cache.Set(ctx, cacheKey, string(raw), 0); setErr != nil {
				logger.Errorf("写入飞轮缓存失败,cache_key=%s,err=%v", cacheKey, setErr)
			}
		}
	}
	return result, false, nil
}

// rewriteQuestion 按各用户知识库维护的专名词表改写问题，
// 取第一个改写结果参与召回；词表为空时保持原问题。
func (s *QueryService) rewriteQuestion(ctx context.Context, req *model.StreamSearchRequest) string {
	question := req.Question
	for userID, kbList := range req.KnowledgeBaseInfo {
		kbIDs := make([]string, 0, len(kbList))
		for _, kb := range kbList {
			if kb.KBID != "" {
				kbIDs = append(kbIDs, kb.KBID)
			} else {
				kbIDs = append(kbIDs, kb.KBName)
			}
		}
		dict := loadQueryDict(ctx, s.cache, userID, kbIDs)
		if len(dict) == 0 {
			logger.Infof("未启用或维护转名词表,query未改写,按原问题:%s 进行召回", question)
			continue
		}
		rewritten := RewriteQuestion(question, dict)
		logger.Infof("对query进行改写,原问题:%s 改写后问题:%s", question, strings.Join(rewritten, ","))
		if len(rewritten) > 0 {
			question = rewritten[0]
			logger.Infof("按新问题:%s 进行召回", question)
		}
	}
	return question
}

func (s *QueryService) saveUserLog(ctx context.Context, req *model.StreamSearchRequest, msgID, question string, searchList []model.SearchItem, scoreVals []float64, usedCache bool) error {
	logCtx, cancel := context.WithTimeout(ctx, s.cfg.Mongo.Timeout)
	defer cancel()

	scores := []float64{}
	if req.ReturnScore && scoreVals != nil {
		scores = scoreVals
	}
	entry := &storage.UserLog{
		ID:                msgID,
		KnowledgeBaseInfo: req.KnowledgeBaseInfo,
		Question:          question,
		Rate:              req.Threshold,
		TopK:              req.TopK,
		TopP:              req.TopP,
		RepetitionPenalty: req.RepetitionPenalty,
		Temperature:       req.Temperature,
		MaxHistory:        *req.MaxHistory,
		DoSample:          req.SamplingEnabled(),
		ReturnMeta:        boolText(req.ReturnMeta),
		AutoCitation:      boolText(req.AutoCitation),
		DataFlywheel:      boolText(req.DataFlywheel),
		ReturnScore:       boolText(req.ReturnScore),
		UseCache:          boolText(usedCache),
		PromptTemplate:    req.PromptTemplate,
		DefaultAnswer:     req.DefaultAnswer,
		ModelName:         req.CustomModelInfo.LLMModelID,
		SearchField:       req.SearchField,
		SearchList:        searchList,
		Scores:            scores,
	}
	return s.logs.UpsertUserLog(logCtx, entry)
}

func searchParams(req *model.StreamSearchRequest, question string, chunkSize int) *retrieval.SearchParams {
	weights := make(map[string]any, len(req.Weights))
	for k, v := range req.Weights {
		weights[k] = v
	}
	attachments := make([]map[string]string, 0, len(req.AttachmentFiles))
	for _, u := range req.ImageAttachments() {
		attachments = append(attachments, map[string]string{"image": u})
	}
	return &retrieval.SearchParams{
		KnowledgeBaseInfo: req.KnowledgeBaseInfo,
		Question:          question,
		Threshold:         req.Threshold,
		TopK:              req.TopK,
		ChunkSize:         chunkSize,
		ReturnMeta:        req.ReturnMeta,
		PromptTemplate:    req.PromptTemplate,
		SearchField:       req.SearchField,
		DefaultAnswer:     req.DefaultAnswer,
		AutoCitation:      req.AutoCitation,
		RetrieveMethod:    req.RetrieveMethod,
		RerankModelID:     req.RerankModelID,
		RerankMod:         req.RerankMod,
		Weights:           weights,
		MetadataFiltering: req.MetadataFilteringConditions,
		UseGraph:          req.UseGraph,
		EnableVision:      req.EnableVision,
		AttachmentFiles:   attachments,
	}
}

// flywheelKey 飞轮缓存键：知识库信息、topK、问题三段拼接
func flywheelKey(kbInfo map[string][]model.KnowledgeBase, topK int, question string) string {
	raw, _ := json.Marshal(kbInfo)
	return fmt.Sprintf("%s^%d^%s", raw, topK, question)
}

// newMsgID 以知识库信息、问题加随机串生成本次查询的消息 ID
func newMsgID(kbInfo map[string][]model.KnowledgeBase, question string) string {
	random := strings.ReplaceAll(uuid.New().String(), "-", "")
	raw, _ := json.Marshal(kbInfo)
	uid := fmt.Sprintf("%s_%s_%s", raw, question, random)
	return fmt.Sprintf("%x", md5.Sum([]byte(uid)))
}

func boolText(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
