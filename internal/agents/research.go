package agents

import (
	"context"
	"fmt"
	"strings"

	"mca/agentd/internal/app/infra/llm"
	"mca/agentd/internal/app/infra/serp"
	"mca/agentd/internal/pipeline"
	"mca/agentd/pkg/logger"
)

// ResearchAgent 研究 Agent：检索资料并提炼洞察
type ResearchAgent struct {
	serp       *serp.Client
	llm        llm.Client
	numResults int
	logger     logger.Logger
}

// NewResearchAgent 创建研究 Agent
func NewResearchAgent(serpClient *serp.Client, llmClient llm.Client, numResults int, log logger.Logger) *ResearchAgent {
	return &ResearchAgent{
		serp:       serpClient,
		llm:        llmClient,
		numResults: numResults,
		logger:     log,
	}
}

// FetchSnippetsStage 检索阶段（可选）
// 检索失败不中断流水线，后续合成阶段在无资料情况下降级运行
func (a *ResearchAgent) FetchSnippetsStage() pipeline.Stage {
	return pipeline.Stage{
		Name:     "fetch_snippets",
		Optional: true,
		Run: func(ctx context.Context, pc pipeline.Context) (pipeline.Context, error) {
			query := pc.Topic
			if len(pc.Keywords) > 0 {
				query = query + " " + strings.Join(pc.Keywords, " ")
			}

			snippets, err := a.serp.Search(ctx, query)
			if err != nil {
				return pc, fmt.Errorf("fetch snippets failed: %w", err)
			}

			a.logger.Infof(ctx, "[Research] Fetched %d snippets for query: %s", len(snippets), query)
			pc.Snippets = snippets
			return pc, nil
		},
	}
}

// researchOutput LLM 研究合成输出
type researchOutput struct {
	Insights []string `json:"insights"`
	Summary  string   `json:"summary"`
}

// SynthesizeStage 研究合成阶段（必选）
// 将资料片段交给 LLM 提炼为洞察列表与摘要
func (a *ResearchAgent) SynthesizeStage() pipeline.Stage {
	return pipeline.Stage{
		Name:     "synthesize_research",
		Optional: false,
		Run: func(ctx context.Context, pc pipeline.Context) (pipeline.Context, error) {
			prompt := fmt.Sprintf(researchPrompt, a.numResults)

			var sb strings.Builder
			for _, s := range pc.Snippets {
				title := s.Title
				if title == "" {
					title = "Untitled"
				}
				source := s.Source
				if source == "" {
					source = "unknown"
				}
				text := s.Snippet
				if len(text) > 400 {
					text = text[:400]
				}
				fmt.Fprintf(&sb, "- %s (%s): %s\n", title, source, text)
			}
			snippetBlock := sb.String()
			if snippetBlock == "" {
				snippetBlock = "No snippets available."
			}

			user := fmt.Sprintf("%s\n\nTopic: %s\nTone: %s\n\nSnippets:\n%s",
				prompt, pc.Topic, pc.Tone, snippetBlock)

			raw, err := a.llm.Complete(ctx, researchSystemPrompt, user)
			if err != nil {
				return pc, fmt.Errorf("research synthesis failed: %w", err)
			}

			var out researchOutput
			if !extractJSON(raw, &out) {
				return pc, fmt.Errorf("research synthesis returned non-JSON output")
			}

			a.logger.Infof(ctx, "[Research] Synthesized %d insights", len(out.Insights))
			pc.Insights = out.Insights
			pc.ResearchSummary = out.Summary
			return pc, nil
		},
	}
}
