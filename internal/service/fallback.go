package service

import (
	"context"

	"knowrag-backend/internal/model"
)

// FallbackStream 以流式形态逐字符下发兜底话术，事件结构与大模型
// 生成路径完全一致。每个字符一条 finish=0 事件，最后补一条
// output 为空的 finish=1 终态事件。
func FallbackStream(ctx context.Context, answer string, history []model.History, question string, code int, message string, score *[]float64, msgID string) <-chan model.StreamEvent {
	out := make(chan model.StreamEvent, 16)
	go func() {
		defer close(out)

		// 兜底路径不产生召回得分，开启 return_score 时统一回空列表
		if score != nil {
			empty := []float64{}
			score = &empty
		}

		answerSoFar := ""
		emit := func(output string, finish int) bool {
			historyTmp := make([]model.History, 0, len(history)+1)
			historyTmp = append(historyTmp, history...)
			historyTmp = append(historyTmp, model.History{
				Query:       question,
				Response:    answerSoFar,
				NeedHistory: true,
			})
			event := model.StreamEvent{
				Code:    code,
				Message: message,
				MsgID:   msgID,
				Data: &model.EventData{
					Output:     output,
					SearchList: []model.SearchItem{},
					Score:      score,
				},
				History: historyTmp,
				Finish:  model.FinishOf(finish),
			}
			select {
			case out <- event:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for _, r := range answer {
			answerSoFar += string(r)
			if !emit(string(r), model.FinishStreaming) {
				return
			}
		}
		emit("", model.FinishStop)
	}()
	return out
}
