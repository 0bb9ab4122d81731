package job

import (
	"time"

	"mca/agentd/internal/app/config"
	"mca/agentd/internal/app/domains/services/svjob"
)

// JobHandler 任务 HTTP 处理器
type JobHandler struct {
	jobService *svjob.JobService
	payment    config.PaymentConfig
	startTime  time.Time
}

// NewJobHandler 创建任务处理器实例
func NewJobHandler(jobService *svjob.JobService, payment config.PaymentConfig) *JobHandler {
	return &JobHandler{
		jobService: jobService,
		payment:    payment,
		startTime:  time.Now(),
	}
}
