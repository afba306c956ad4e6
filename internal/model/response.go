package model

// 流式事件 finish 状态
const (
	FinishStreaming = 0 // 仍在输出
	FinishStop      = 1 // 正常结束
	FinishSensitive = 4 // 敏感内容截断
)

// MsgIDPersistFailed 元数据入库失败时 msg_id 的哨兵值
const MsgIDPersistFailed = "-1"

// StreamEvent 下发给调用方的统一事件结构，流式与兜底路径共用
type StreamEvent struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	MsgID   string     `json:"msg_id,omitempty"`
	Data    *EventData `json:"data,omitempty"`
	History []History  `json:"history,omitempty"`
	Finish  *int       `json:"finish,omitempty"`
}

type EventData struct {
	Output     string       `json:"output"`
	SearchList []SearchItem `json:"searchList"`
	Score      *[]float64   `json:"score,omitempty"`
}

// Finished 事件是否为终态（正常结束或敏感截断）
func (e *StreamEvent) Finished() bool {
	return e.Finish != nil && (*e.Finish == FinishStop || *e.Finish == FinishSensitive)
}

// FinishOf 便于构造 *int 形式的 finish 字段
func FinishOf(v int) *int {
	return &v
}

// SearchItem 知识召回条目。由召回服务生成，这里只读，
// 用 map 保留服务方的全部字段以便原样回显。
type SearchItem map[string]any

// Snippet 召回片段文本
func (s SearchItem) Snippet() string {
	v, _ := s["snippet"].(string)
	return v
}

// RerankInfo 条目关联的多模态资源
type RerankInfo struct {
	Type    string
	FileURL string
}

// RerankInfos 解析条目中的 rerank_info 列表
func (s SearchItem) RerankInfos() []RerankInfo {
	raw, ok := s["rerank_info"].([]any)
	if !ok {
		return nil
	}
	var infos []RerankInfo
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		typ, _ := m["type"].(string)
		fileURL, _ := m["file_url"].(string)
		infos = append(infos, RerankInfo{Type: typ, FileURL: fileURL})
	}
	return infos
}

// RetrievalResult 知识召回服务的返回
type RetrievalResult struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    *RetrievalData `json:"data"`
}

type RetrievalData struct {
	SearchList []SearchItem `json:"searchList"`
	Prompt     string       `json:"prompt"`
	Score      []float64    `json:"score"`
}

// Valid 缓存命中时的有效性检查：空召回结果不能作为有效缓存
func (r *RetrievalResult) Valid() bool {
	return r != nil && r.Data != nil && len(r.Data.SearchList) > 0
}
