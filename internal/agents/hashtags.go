package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mca/agentd/internal/app/infra/llm"
	"mca/agentd/internal/pipeline"
	"mca/agentd/pkg/logger"
)

// HashtagAgent 标签 Agent：为生成的文案匹配高相关度标签
type HashtagAgent struct {
	llm    llm.Client
	logger logger.Logger
}

// NewHashtagAgent 创建标签 Agent
func NewHashtagAgent(llmClient llm.Client, log logger.Logger) *HashtagAgent {
	return &HashtagAgent{llm: llmClient, logger: log}
}

// hashtagOutput LLM 标签输出
// hashtags 字段可能返回数组或逗号分隔字符串，解析时两者都接受
type hashtagOutput struct {
	Hashtags  json.RawMessage `json:"hashtags"`
	Explainer string          `json:"explainer"`
}

// GenerateStage 标签生成阶段（必选）
func (a *HashtagAgent) GenerateStage() pipeline.Stage {
	return pipeline.Stage{
		Name:     "generate_hashtags",
		Optional: false,
		Run: func(ctx context.Context, pc pipeline.Context) (pipeline.Context, error) {
			postBody := ""
			if pc.Post != nil {
				postBody = pc.Post.PostBody
			}
			audience := pc.Audience
			if audience == "" {
				audience = "General"
			}

			user := fmt.Sprintf("%s\n\nPost:\n%s\nTopic: %s\nTone: %s\nPlatform: %s\nAudience: %s",
				hashtagsPrompt, postBody, pc.Topic, pc.Tone, pc.Platform, audience)

			raw, err := a.llm.Complete(ctx, hashtagsSystemPrompt, user)
			if err != nil {
				return pc, fmt.Errorf("hashtag generation failed: %w", err)
			}

			var out hashtagOutput
			if !extractJSON(raw, &out) {
				return pc, fmt.Errorf("hashtag generation returned non-JSON output")
			}

			tags := parseHashtags(out.Hashtags)
			a.logger.Infof(ctx, "[Hashtag] Generated %d hashtags", len(tags))

			pc.Hashtags = &pipeline.HashtagPackage{
				Hashtags:  tags,
				Explainer: out.Explainer,
			}
			return pc, nil
		},
	}
}

// parseHashtags 兼容数组与逗号分隔字符串两种返回形态，去除 # 前缀
func parseHashtags(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var joined string
		if err := json.Unmarshal(raw, &joined); err != nil {
			return nil
		}
		list = strings.Split(joined, ",")
	}

	tags := make([]string, 0, len(list))
	for _, tag := range list {
		tag = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(tag), "#"))
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
