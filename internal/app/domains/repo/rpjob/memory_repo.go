package rpjob

import (
	"context"
	"fmt"
	"sync"

	"mca/agentd/internal/app/domains/entity/etjob"
	"mca/agentd/internal/app/pkg/errorx"
)

// MemoryJobRepository 内存任务仓储
// 注意：进程重启后在途任务丢失，调用方将未知任务 ID 视为 NotFound
type MemoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*jobEntry
}

// jobEntry 单个任务的存储单元，自带互斥锁保证逐任务串行变更
type jobEntry struct {
	mu  sync.Mutex
	job *etjob.Job
}

// NewMemoryJobRepository 创建内存仓储实例
func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{
		jobs: make(map[string]*jobEntry),
	}
}

// Create 创建任务
func (r *MemoryJobRepository) Create(ctx context.Context, job *etjob.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; ok {
		return fmt.Errorf("%w: %s", errorx.ErrJobExists, job.ID)
	}
	r.jobs[job.ID] = &jobEntry{job: job.Clone()}
	return nil
}

// Get 查询任务，返回深拷贝副本
func (r *MemoryJobRepository) Get(ctx context.Context, jobID string) (*etjob.Job, error) {
	entry, err := r.entry(jobID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.job.Clone(), nil
}

// Update 在逐任务锁内执行变更
// 变更函数作用于副本，成功后整体替换存储内记录，
// 并发读永远只能看到变更前或变更后的完整记录
func (r *MemoryJobRepository) Update(ctx context.Context, jobID string, mutate Mutator) (*etjob.Job, error) {
	entry, err := r.entry(jobID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	next := entry.job.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	entry.job = next
	return next.Clone(), nil
}

// entry 查找任务存储单元
func (r *MemoryJobRepository) entry(jobID string) (*jobEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errorx.ErrJobNotFound, jobID)
	}
	return entry, nil
}
