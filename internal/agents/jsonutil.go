package agents

import (
	"encoding/json"
	"strings"
)

// extractJSON 从 LLM 输出中提取 JSON 对象
// 先尝试整体解析；失败后截取首个 '{' 到末个 '}' 的区间再解析
func extractJSON(payload string, out interface{}) bool {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return false
	}

	if err := json.Unmarshal([]byte(payload), out); err == nil {
		return true
	}

	start := strings.Index(payload, "{")
	end := strings.LastIndex(payload, "}")
	if start < 0 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(payload[start:end+1]), out) == nil
}
