package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"knowrag-backend/internal/storage"
	"knowrag-backend/pkg/logger"
)

// TermEntry 专名同义词表条目：标准词与别名列表
type TermEntry struct {
	Name  string   `json:"name"`
	Alias []string `json:"alias"`
}

// loadQueryDict 从缓存读取用户在各知识库维护的专名词表并去重。
// 哈希键为 query_dict:{user_id}:{kb_id}，字段值是条目 JSON。
func loadQueryDict(ctx context.Context, cache storage.Cache, userID string, kbIDs []string) []TermEntry {
	var entries []TermEntry
	seen := make(map[string]struct{})

	for _, kbID := range kbIDs {
		key := "query_dict:" + userID + ":" + kbID
		fields, err := cache.HGetAll(ctx, key)
		if err != nil {
			logger.Errorf("读取专名词表失败,key=%s,err=%v", key, err)
			continue
		}
		for _, raw := range fields {
			var entry TermEntry
			if err := json.Unmarshal([]byte(raw), &entry); err != nil {
				continue
			}
			sorted := append([]string{}, entry.Alias...)
			sort.Strings(sorted)
			fingerprint := entry.Name + "\x00" + strings.Join(sorted, "\x00")
			if _, ok := seen[fingerprint]; ok {
				continue
			}
			seen[fingerprint] = struct{}{}
			entries = append(entries, entry)
		}
	}
	return entries
}

// RewriteQuestion 根据专名词表改写问题。问题中出现的每个标准词
// 都按其别名展开，多个标准词之间做笛卡尔组合；没有命中时返回原问题。
func RewriteQuestion(question string, dict []TermEntry) []string {
	type replacement struct {
		name  string
		alias string
	}

	var groups [][]replacement
	for _, term := range dict {
		if term.Name == "" || !strings.Contains(question, term.Name) {
			continue
		}
		group := make([]replacement, 0, len(term.Alias))
		for _, alias := range term.Alias {
			group = append(group, replacement{name: term.Name, alias: alias})
		}
		if len(group) > 0 {
			groups = append(groups, group)
		}
	}
	if len(groups) == 0 {
		return []string{question}
	}

	combos := [][]replacement{{}}
	for _, group := range groups {
		next := make([][]replacement, 0, len(combos)*len(group))
		for _, combo := range combos {
			for _, r := range group {
				extended := make([]replacement, 0, len(combo)+1)
				extended = append(extended, combo...)
				extended = append(extended, r)
				next = append(next, extended)
			}
		}
		combos = next
	}

	rewritten := make([]string, 0, len(combos))
	for _, combo := range combos {
		q := question
		for _, r := range combo {
			q = strings.ReplaceAll(q, r.name, r.alias)
		}
		rewritten = append(rewritten, q)
	}
	return rewritten
}
