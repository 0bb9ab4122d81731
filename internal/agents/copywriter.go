package agents

import (
	"context"
	"fmt"
	"strings"

	"mca/agentd/internal/app/infra/llm"
	"mca/agentd/internal/pipeline"
	"mca/agentd/pkg/logger"
)

// CopywritingAgent 文案 Agent：面向指定平台生成帖子文案
type CopywritingAgent struct {
	llm    llm.Client
	logger logger.Logger
}

// NewCopywritingAgent 创建文案 Agent
func NewCopywritingAgent(llmClient llm.Client, log logger.Logger) *CopywritingAgent {
	return &CopywritingAgent{llm: llmClient, logger: log}
}

// copyOutput LLM 文案输出
type copyOutput struct {
	PostBody     string `json:"post_body"`
	Headline     string `json:"headline"`
	Rationale    string `json:"rationale"`
	CallToAction string `json:"call_to_action"`
	ImagePrompt  string `json:"image_prompt"`
}

// GenerateStage 文案生成阶段（必选）
func (a *CopywritingAgent) GenerateStage() pipeline.Stage {
	return pipeline.Stage{
		Name:     "generate_copy",
		Optional: false,
		Run: func(ctx context.Context, pc pipeline.Context) (pipeline.Context, error) {
			keywords := strings.Join(pc.Keywords, ", ")
			if keywords == "" {
				keywords = "None"
			}
			link := pc.Link
			if link == "" {
				link = "None"
			}
			audience := pc.Audience
			if audience == "" {
				audience = "General"
			}

			insightBlock := "No insights provided."
			if len(pc.Insights) > 0 {
				var sb strings.Builder
				for _, point := range pc.Insights {
					fmt.Fprintf(&sb, "- %s\n", point)
				}
				insightBlock = strings.TrimRight(sb.String(), "\n")
			}

			emojiInstruction := "IMPORTANT: Use emojis in the content."
			if !pc.UseEmojis {
				emojiInstruction = "IMPORTANT: Do NOT use emojis in the content."
			}

			user := fmt.Sprintf("%s\n\nTopic: %s\nTone: %s\nPlatform: %s\nKeywords: %s\nLink: %s\nAudience: %s\nInsights:\n%s\n%s",
				copywriterPrompt, pc.Topic, pc.Tone, pc.Platform, keywords, link, audience, insightBlock, emojiInstruction)

			raw, err := a.llm.Complete(ctx, copywriterSystemPrompt, user)
			if err != nil {
				return pc, fmt.Errorf("copy generation failed: %w", err)
			}

			var out copyOutput
			if !extractJSON(raw, &out) {
				return pc, fmt.Errorf("copy generation returned non-JSON output")
			}
			if out.PostBody == "" {
				return pc, fmt.Errorf("copy generation returned empty post_body")
			}

			a.logger.Infof(ctx, "[Copywriter] Generated post (%d chars) for platform %s", len(out.PostBody), pc.Platform)
			pc.Post = &pipeline.Post{
				Headline:     out.Headline,
				PostBody:     out.PostBody,
				Rationale:    out.Rationale,
				CallToAction: out.CallToAction,
				ImagePrompt:  out.ImagePrompt,
			}
			return pc, nil
		},
	}
}
