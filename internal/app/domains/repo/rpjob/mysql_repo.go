package rpjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"mca/agentd/internal/app/domains/entity/etjob"
	"mca/agentd/internal/app/pkg/errorx"
)

// jobPO 任务持久化模型（MySQL）
type jobPO struct {
	ID             string         `gorm:"column:id;primaryKey;type:varchar(64)"`
	PurchaserID    string         `gorm:"column:purchaser_id;type:varchar(64);not null;index:idx_purchaser"`
	PaymentRef     string         `gorm:"column:payment_ref;type:varchar(512);not null;index:idx_payment_ref"`
	InputHash      string         `gorm:"column:input_hash;type:varchar(64);not null"`
	Input          datatypes.JSON `gorm:"column:input;type:json;not null"`
	Status         string         `gorm:"column:status;type:varchar(32);not null;default:'awaiting_payment';index:idx_status"`
	Result         datatypes.JSON `gorm:"column:result;type:json"`
	StageFaults    datatypes.JSON `gorm:"column:stage_faults;type:json"`
	ErrorDetail    string         `gorm:"column:error_detail;type:varchar(1024)"`
	PayBy          time.Time      `gorm:"column:pay_by;not null"`
	SubmitResultBy time.Time      `gorm:"column:submit_result_by;not null"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null;index:idx_created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;not null"`
}

// TableName 指定表名
func (jobPO) TableName() string {
	return "jobs"
}

// MySQLJobRepository 任务仓储实现（MySQL）
// 逐任务互斥锁在进程内保证变更串行化，DB 事务保证落盘原子性
type MySQLJobRepository struct {
	db    *gorm.DB
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMySQLJobRepository 创建 MySQL 仓储实例
func NewMySQLJobRepository(dsn string) (*MySQLJobRepository, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&jobPO{}); err != nil {
		return nil, fmt.Errorf("failed to migrate jobs table: %w", err)
	}

	return &MySQLJobRepository{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Create 创建任务
func (r *MySQLJobRepository) Create(ctx context.Context, job *etjob.Job) error {
	po, err := toGormModel(job)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(po).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", errorx.ErrJobExists, job.ID)
		}
		return fmt.Errorf("create job failed: %w", err)
	}
	return nil
}

// Get 查询任务
func (r *MySQLJobRepository) Get(ctx context.Context, jobID string) (*etjob.Job, error) {
	var po jobPO
	err := r.db.WithContext(ctx).Where("id = ?", jobID).First(&po).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", errorx.ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("get job failed: %w", err)
	}
	return toDomainModel(&po)
}

// Update 在逐任务锁与事务内执行变更
func (r *MySQLJobRepository) Update(ctx context.Context, jobID string, mutate Mutator) (*etjob.Job, error) {
	lock := r.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	var updated *etjob.Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var po jobPO
		if err := tx.Where("id = ?", jobID).First(&po).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", errorx.ErrJobNotFound, jobID)
			}
			return fmt.Errorf("load job failed: %w", err)
		}

		job, err := toDomainModel(&po)
		if err != nil {
			return err
		}
		if err := mutate(job); err != nil {
			return err
		}

		next, err := toGormModel(job)
		if err != nil {
			return err
		}
		if err := tx.Save(next).Error; err != nil {
			return fmt.Errorf("save job failed: %w", err)
		}
		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// jobLock 获取逐任务互斥锁
func (r *MySQLJobRepository) jobLock(jobID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[jobID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[jobID] = lock
	}
	return lock
}

// toGormModel 领域对象转换为持久化模型
func toGormModel(job *etjob.Job) (*jobPO, error) {
	inputJSON, err := json.Marshal(job.Input)
	if err != nil {
		return nil, fmt.Errorf("marshal input failed: %w", err)
	}

	po := &jobPO{
		ID:             job.ID,
		PurchaserID:    job.PurchaserID,
		PaymentRef:     job.PaymentRef,
		InputHash:      job.InputHash,
		Input:          inputJSON,
		Status:         string(job.Status),
		ErrorDetail:    job.ErrorDetail,
		PayBy:          job.PayBy,
		SubmitResultBy: job.SubmitResultBy,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}

	if job.Result != nil {
		resultJSON, err := json.Marshal(job.Result)
		if err != nil {
			return nil, fmt.Errorf("marshal result failed: %w", err)
		}
		po.Result = resultJSON
	}
	if len(job.StageFaults) > 0 {
		faultsJSON, err := json.Marshal(job.StageFaults)
		if err != nil {
			return nil, fmt.Errorf("marshal stage faults failed: %w", err)
		}
		po.StageFaults = faultsJSON
	}

	return po, nil
}

// toDomainModel 持久化模型转换为领域对象
func toDomainModel(po *jobPO) (*etjob.Job, error) {
	var input map[string]string
	if err := json.Unmarshal(po.Input, &input); err != nil {
		return nil, fmt.Errorf("unmarshal input failed: %w", err)
	}

	job := &etjob.Job{
		ID:             po.ID,
		PurchaserID:    po.PurchaserID,
		Input:          input,
		InputHash:      po.InputHash,
		Status:         etjob.JobStatus(po.Status),
		PaymentRef:     po.PaymentRef,
		ErrorDetail:    po.ErrorDetail,
		PayBy:          po.PayBy,
		SubmitResultBy: po.SubmitResultBy,
		CreatedAt:      po.CreatedAt,
		UpdatedAt:      po.UpdatedAt,
	}

	if len(po.Result) > 0 {
		var result etjob.Result
		if err := json.Unmarshal(po.Result, &result); err != nil {
			return nil, fmt.Errorf("unmarshal result failed: %w", err)
		}
		job.Result = &result
	}
	if len(po.StageFaults) > 0 {
		var faults []etjob.StageFault
		if err := json.Unmarshal(po.StageFaults, &faults); err != nil {
			return nil, fmt.Errorf("unmarshal stage faults failed: %w", err)
		}
		job.StageFaults = faults
	}

	return job, nil
}
