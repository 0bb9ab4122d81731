package etjob

import (
	"fmt"
	"time"

	"mca/agentd/internal/app/pkg/errorx"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusAwaitingPayment JobStatus = "awaiting_payment"
	JobStatusRunning         JobStatus = "running"
	JobStatusDone            JobStatus = "done"
	JobStatusFailed          JobStatus = "failed"
)

// Terminal 是否为终态
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// CanTransition 校验状态流转是否合法
// 流转规则：awaiting_payment → running → {done, failed}，awaiting_payment → failed
// 所有流转单向，终态不可再变更
func (s JobStatus) CanTransition(to JobStatus) bool {
	switch s {
	case JobStatusAwaitingPayment:
		return to == JobStatusRunning || to == JobStatusFailed
	case JobStatusRunning:
		return to == JobStatusDone || to == JobStatusFailed
	default:
		return false
	}
}

// Job 任务聚合根（领域对象）
type Job struct {
	ID             string            // 任务ID (UUID)
	PurchaserID    string            // 买方标识 (identifier_from_purchaser)
	Input          map[string]string // 原始输入
	InputHash      string            // 输入 SHA-256
	Status         JobStatus         // 任务状态
	PaymentRef     string            // 支付请求标识 (blockchainIdentifier)
	PayBy          time.Time         // 支付截止时间
	SubmitResultBy time.Time         // 结果提交截止时间
	Result         *Result           // 生成结果（终态 done 时非空）
	StageFaults    []StageFault      // 可选阶段的失败记录
	ErrorDetail    string            // 失败原因（终态 failed 时非空）
	CreatedAt      time.Time         // 创建时间
	UpdatedAt      time.Time         // 更新时间
}

// Result 生成结果（值对象）
type Result struct {
	Headline        string   `json:"headline"`
	PostBody        string   `json:"post_body"`
	Rationale       string   `json:"rationale"`
	CallToAction    string   `json:"call_to_action"`
	ResearchSummary string   `json:"research_summary"`
	Insights        []string `json:"insights"`
	Hashtags        []string `json:"hashtags"`
	HashtagNote     string   `json:"hashtag_note"`
	ImageURL        string   `json:"image_url,omitempty"`
}

// StageFault 单个可选阶段的失败记录
type StageFault struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// NewJob 创建任务（工厂方法）
func NewJob(id, purchaserID string, input map[string]string, inputHash, paymentRef string, payBy, submitResultBy time.Time) (*Job, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: job id cannot be empty", errorx.ErrInvalidInput)
	}
	if purchaserID == "" {
		return nil, fmt.Errorf("%w: identifier_from_purchaser cannot be empty", errorx.ErrInvalidInput)
	}
	if len(input) == 0 {
		return nil, fmt.Errorf("%w: input_data cannot be empty", errorx.ErrInvalidInput)
	}
	if paymentRef == "" {
		return nil, fmt.Errorf("%w: payment reference cannot be empty", errorx.ErrInvalidInput)
	}

	now := time.Now()
	return &Job{
		ID:             id,
		PurchaserID:    purchaserID,
		Input:          input,
		InputHash:      inputHash,
		Status:         JobStatusAwaitingPayment,
		PaymentRef:     paymentRef,
		PayBy:          payBy,
		SubmitResultBy: submitResultBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Transition 执行状态流转（领域行为）
// 非法流转返回 errorx.ErrInvalidTransition，绝不静默覆盖
func (j *Job) Transition(to JobStatus) error {
	if !j.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s (job %s)", errorx.ErrInvalidTransition, j.Status, to, j.ID)
	}
	j.Status = to
	j.UpdatedAt = time.Now()
	return nil
}

// MarkRunning 支付确认后进入执行中
func (j *Job) MarkRunning() error {
	return j.Transition(JobStatusRunning)
}

// MarkDone 执行成功，写入结果与可选阶段的失败记录
func (j *Job) MarkDone(result *Result, faults []StageFault) error {
	if result == nil {
		return fmt.Errorf("%w: result cannot be nil on done", errorx.ErrInvalidTransition)
	}
	if err := j.Transition(JobStatusDone); err != nil {
		return err
	}
	j.Result = result
	j.StageFaults = faults
	return nil
}

// MarkFailed 执行失败或支付未达成，写入失败原因
func (j *Job) MarkFailed(detail string) error {
	if err := j.Transition(JobStatusFailed); err != nil {
		return err
	}
	j.ErrorDetail = detail
	return nil
}

// Clone 深拷贝（读路径返回副本，避免外部篡改存储内记录）
func (j *Job) Clone() *Job {
	cp := *j
	cp.Input = make(map[string]string, len(j.Input))
	for k, v := range j.Input {
		cp.Input[k] = v
	}
	if j.Result != nil {
		r := *j.Result
		r.Insights = append([]string(nil), j.Result.Insights...)
		r.Hashtags = append([]string(nil), j.Result.Hashtags...)
		cp.Result = &r
	}
	cp.StageFaults = append([]StageFault(nil), j.StageFaults...)
	return &cp
}
