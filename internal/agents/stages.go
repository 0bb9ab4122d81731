package agents

import (
	"mca/agentd/internal/app/infra/imagegen"
	"mca/agentd/internal/app/infra/llm"
	"mca/agentd/internal/app/infra/serp"
	"mca/agentd/internal/pipeline"
	"mca/agentd/pkg/logger"
)

// BuildStages 组装内容生产流水线的阶段链
// 顺序：检索 -> 研究合成 -> 文案生成 -> 标签生成 -> 配图生成
// 配图生成依赖外部图片 Agent，imageGen 为 nil 时跳过该阶段
func BuildStages(serpClient *serp.Client, llmClient llm.Client, imageGen imagegen.Generator,
	numResults int, log logger.Logger) []pipeline.Stage {
	research := NewResearchAgent(serpClient, llmClient, numResults, log)
	copywriter := NewCopywritingAgent(llmClient, log)
	hashtag := NewHashtagAgent(llmClient, log)

	stages := []pipeline.Stage{
		research.FetchSnippetsStage(),
		research.SynthesizeStage(),
		copywriter.GenerateStage(),
		hashtag.GenerateStage(),
	}

	if imageGen != nil {
		image := NewImageAgent(imageGen, log)
		stages = append(stages, image.GenerateStage())
	}
	return stages
}
