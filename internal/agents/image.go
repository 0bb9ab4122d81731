package agents

import (
	"context"
	"fmt"

	"mca/agentd/internal/app/infra/imagegen"
	"mca/agentd/internal/pipeline"
	"mca/agentd/pkg/logger"
)

// ImageAgent 图片 Agent：根据文案的 image_prompt 生成配图
type ImageAgent struct {
	generator imagegen.Generator
	logger    logger.Logger
}

// NewImageAgent 创建图片 Agent
func NewImageAgent(gen imagegen.Generator, log logger.Logger) *ImageAgent {
	return &ImageAgent{generator: gen, logger: log}
}

// GenerateStage 图片生成阶段（可选）
// 生成失败只记录故障，文案与标签结果不受影响
func (a *ImageAgent) GenerateStage() pipeline.Stage {
	return pipeline.Stage{
		Name:     "generate_image",
		Optional: true,
		Run: func(ctx context.Context, pc pipeline.Context) (pipeline.Context, error) {
			if pc.Post == nil || pc.Post.ImagePrompt == "" {
				return pc, fmt.Errorf("no image prompt available")
			}

			asset, err := a.generator.Generate(ctx, pc.Post.ImagePrompt, pc.RequestID)
			if err != nil {
				return pc, fmt.Errorf("image generation failed: %w", err)
			}

			a.logger.Infof(ctx, "[Image] Generated image for job %s: %s", asset.JobID, asset.URL)
			pc.Image = asset
			return pc, nil
		},
	}
}
