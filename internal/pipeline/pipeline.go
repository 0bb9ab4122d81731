package pipeline

import (
	"context"
	"fmt"
	"time"

	"mca/agentd/internal/metrics"
	"mca/agentd/pkg/logger"
)

// StageFunc 单个阶段：接收上一阶段的上下文，返回新的上下文
type StageFunc func(ctx context.Context, pc Context) (Context, error)

// Stage 流水线阶段
// Optional 标记的阶段失败时只记录错误并跳过，不中断后续阶段；
// 必选阶段失败立即中止整条流水线
type Stage struct {
	Name     string
	Optional bool
	Run      StageFunc
}

// StageError 阶段执行错误
type StageError struct {
	Stage    string
	Optional bool
	Err      error
}

// Error 实现 error 接口
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

// Unwrap 支持 errors.Is/As
func (e *StageError) Unwrap() error {
	return e.Err
}

// Runner 流水线执行器：按序执行阶段链
type Runner struct {
	stages []Stage
	logger logger.Logger
}

// NewRunner 创建执行器
func NewRunner(stages []Stage, log logger.Logger) *Runner {
	return &Runner{
		stages: stages,
		logger: log,
	}
}

// Stages 返回阶段列表（只读用途）
func (r *Runner) Stages() []Stage {
	return r.stages
}

// Run 顺序执行所有阶段
// 返回最终上下文、可选阶段的错误列表（全部成功时为空）、以及必选阶段的致命错误
// 可选阶段失败时，后续阶段继续使用该阶段执行前的上下文；
// 必选阶段失败时，返回失败前已累积的部分上下文
func (r *Runner) Run(ctx context.Context, seed Context) (Context, []*StageError, error) {
	current := seed
	var faults []*StageError

	for i, stage := range r.stages {
		stageCtx := context.WithValue(ctx, "stage", stage.Name)
		r.logger.Infof(stageCtx, "[Pipeline] Stage %d/%d started: %s", i+1, len(r.stages), stage.Name)

		start := time.Now()
		next, err := stage.Run(stageCtx, current)
		duration := time.Since(start)

		if err != nil {
			metrics.StageDuration.WithLabelValues(stage.Name, "error").Observe(duration.Seconds())
			se := &StageError{Stage: stage.Name, Optional: stage.Optional, Err: err}
			if stage.Optional {
				// 可选阶段失败：记录并继续，上下文保持失败前的值
				r.logger.Warnf(stageCtx, "[Pipeline] Optional stage failed, continuing: %v (duration: %v)", err, duration)
				faults = append(faults, se)
				continue
			}
			r.logger.Errorf(stageCtx, "[Pipeline] Required stage failed, aborting: %v (duration: %v)", err, duration)
			return current, faults, se
		}

		metrics.StageDuration.WithLabelValues(stage.Name, "ok").Observe(duration.Seconds())
		r.logger.Infof(stageCtx, "[Pipeline] Stage completed: %s (duration: %v)", stage.Name, duration)
		current = next
	}

	return current, faults, nil
}
