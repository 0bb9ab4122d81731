package rpjob

import (
	"context"

	"mca/agentd/internal/app/domains/entity/etjob"
)

// Mutator 状态变更函数：在仓储持有的任务副本上执行变更
// 返回错误时变更被丢弃，存储内记录保持不变
type Mutator func(job *etjob.Job) error

// JobRepository 任务仓储接口
// 实现必须保证：同一任务 ID 的变更串行化（逐任务互斥），
// 读路径永远返回完整一致的副本，不暴露中间状态
type JobRepository interface {
	// Create 创建任务，ID 冲突时返回 errorx.ErrJobExists
	Create(ctx context.Context, job *etjob.Job) error

	// Get 查询任务，不存在时返回 errorx.ErrJobNotFound
	Get(ctx context.Context, jobID string) (*etjob.Job, error)

	// Update 在逐任务锁内执行变更函数并持久化
	// mutate 返回错误时整个更新被放弃并透传该错误
	Update(ctx context.Context, jobID string, mutate Mutator) (*etjob.Job, error)
}
