package svjob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"mca/agentd/internal/app/config"
	"mca/agentd/internal/app/domains/entity/etjob"
	"mca/agentd/internal/app/domains/repo/rpjob"
	"mca/agentd/internal/app/infra/payment"
	"mca/agentd/internal/app/infra/persistence/redis"
	"mca/agentd/internal/app/pkg/errorx"
	"mca/agentd/internal/app/pkg/idgen"
	"mca/agentd/internal/metrics"
	"mca/agentd/internal/pipeline"
	"mca/agentd/pkg/logger"
)

// errAlreadySettled 支付结果已被处理过（幂等保护用哨兵）
var errAlreadySettled = errors.New("payment outcome already settled")

// Notifier 任务终态通知接口（Smart Wait 依赖）
type Notifier interface {
	PublishJobResult(ctx context.Context, jobID, status string) error
	WaitJobResult(ctx context.Context, jobID string, timeout time.Duration) (*redis.JobNotification, error)
}

// JobService 任务服务：编排支付确认与内容生产流水线
type JobService struct {
	repo     rpjob.JobRepository
	gateway  payment.Gateway
	runner   *pipeline.Runner
	notifier Notifier // 可为 nil，此时 Smart Wait 退化为立即返回
	logger   logger.Logger
	cfg      config.PaymentConfig

	pollers *pollerRegistry
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closed  atomic.Bool
}

// NewJobService 创建任务服务
func NewJobService(repo rpjob.JobRepository, gateway payment.Gateway, runner *pipeline.Runner,
	notifier Notifier, cfg config.PaymentConfig, log logger.Logger) *JobService {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &JobService{
		repo:     repo,
		gateway:  gateway,
		runner:   runner,
		notifier: notifier,
		logger:   log,
		cfg:      cfg,
		pollers:  newPollerRegistry(),
		baseCtx:  baseCtx,
		cancel:   cancel,
	}
}

// StartJob 受理任务：创建支付请求、落库、启动支付轮询
// 支付请求创建失败时不产生任何任务记录
func (s *JobService) StartJob(ctx context.Context, purchaserID string, input map[string]string) (*etjob.Job, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("service is shutting down")
	}
	if strings.TrimSpace(input["topic"]) == "" {
		return nil, fmt.Errorf("%w: input_data.topic is required", errorx.ErrInvalidInput)
	}
	if purchaserID == "" {
		purchaserID = idgen.NewPurchaserIdentifier()
	}

	jobID := idgen.NewJobID()
	inputHash := HashInput(input)
	now := time.Now()
	payBy := now.Add(s.cfg.PayByWindow)
	submitBy := now.Add(s.cfg.SubmitWindow)

	req, err := s.gateway.CreateRequest(ctx, payment.CreateRequestInput{
		IdentifierFromPurchaser: purchaserID,
		InputHash:               inputHash,
		Metadata:                input["topic"],
		PayBy:                   payBy,
		SubmitResultBy:          submitBy,
	})
	if err != nil {
		s.logger.Errorf(ctx, "[JobService] Create payment request failed: %v", err)
		return nil, err
	}

	// 支付服务回传的时间戳为准，与 blockchainIdentifier 绑定
	if req.PayByTime > 0 {
		payBy = time.UnixMilli(req.PayByTime)
	}
	if req.SubmitResultTime > 0 {
		submitBy = time.UnixMilli(req.SubmitResultTime)
	}

	job, err := etjob.NewJob(jobID, purchaserID, input, inputHash, req.BlockchainIdentifier, payBy, submitBy)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job record failed: %w", err)
	}

	metrics.JobsStarted.Inc()
	s.logger.Infof(ctx, "[JobService] Job created: %s (payment: %s, pay by: %s)",
		job.ID, job.PaymentRef, payBy.Format(time.RFC3339))

	if err := s.startPoller(job); err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob 查询任务
func (s *JobService) GetJob(ctx context.Context, jobID string) (*etjob.Job, error) {
	return s.repo.Get(ctx, jobID)
}

// WaitForResult Smart Wait：在超时窗口内等待任务进入终态
// 超时或未配置通知通道时返回任务当前快照，不报错
func (s *JobService) WaitForResult(ctx context.Context, jobID string, timeout time.Duration) (*etjob.Job, error) {
	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() || s.notifier == nil || timeout <= 0 {
		return job, nil
	}

	if _, err := s.notifier.WaitJobResult(ctx, jobID, timeout); err != nil {
		s.logger.Debugf(ctx, "[JobService] Smart wait ended without notification for job %s: %v", jobID, err)
	}
	return s.repo.Get(ctx, jobID)
}

// OnPaymentConfirmed 支付确认回调：流转到 running 并执行流水线
// 幂等：任务已离开 awaiting_payment 时直接返回成功
func (s *JobService) OnPaymentConfirmed(ctx context.Context, jobID string) error {
	job, err := s.repo.Update(ctx, jobID, func(j *etjob.Job) error {
		if j.Status != etjob.JobStatusAwaitingPayment {
			return errAlreadySettled
		}
		return j.MarkRunning()
	})
	if err != nil {
		if errors.Is(err, errAlreadySettled) {
			s.logger.Infof(ctx, "[JobService] Payment outcome for job %s already settled, skipping", jobID)
			return nil
		}
		return err
	}

	metrics.PaymentsConfirmed.Inc()
	s.logger.Infof(ctx, "[JobService] Payment confirmed for job %s, starting pipeline", jobID)

	return s.runPipeline(ctx, job)
}

// OnPaymentDeclined 支付被拒绝：任务失败
func (s *JobService) OnPaymentDeclined(ctx context.Context, jobID string) error {
	return s.failJob(ctx, jobID, errorx.ErrPaymentDeclined.Error())
}

// OnPaymentExpired 支付请求过期：任务失败
func (s *JobService) OnPaymentExpired(ctx context.Context, jobID string) error {
	return s.failJob(ctx, jobID, errorx.ErrPaymentExpired.Error())
}

// OnPaymentTimeout 截止时间前未确认到账：任务失败
func (s *JobService) OnPaymentTimeout(ctx context.Context, jobID string) error {
	return s.failJob(ctx, jobID, errorx.ErrPaymentTimeout.Error())
}

// Shutdown 优雅关闭：停止接收新任务并等待全部轮询器退出
func (s *JobService) Shutdown() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.cancel()
	s.wg.Wait()
}

// runPipeline 执行内容生产流水线并落库终态
func (s *JobService) runPipeline(ctx context.Context, job *etjob.Job) error {
	seed := pipeline.NewContext(job.Input, job.ID)
	final, stageFaults, err := s.runner.Run(ctx, seed)

	if err != nil {
		// 必选阶段失败：任务失败，部分上下文丢弃
		s.logger.Errorf(ctx, "[JobService] Pipeline failed for job %s: %v", job.ID, err)
		return s.failJob(ctx, job.ID, err.Error())
	}

	result := buildResult(final)
	faults := convertFaults(stageFaults)

	// 结果哈希回传支付服务，失败不影响任务终态
	if hashErr := s.completePayment(ctx, job.PaymentRef, result); hashErr != nil {
		s.logger.Warnf(ctx, "[JobService] Complete payment request failed for job %s: %v", job.ID, hashErr)
	}

	if _, err := s.repo.Update(ctx, job.ID, func(j *etjob.Job) error {
		return j.MarkDone(result, faults)
	}); err != nil {
		return fmt.Errorf("mark job done failed: %w", err)
	}

	metrics.JobsCompleted.WithLabelValues(string(etjob.JobStatusDone)).Inc()
	s.publishResult(ctx, job.ID, string(etjob.JobStatusDone))
	s.logger.Infof(ctx, "[JobService] Job %s completed (%d optional stage faults)", job.ID, len(faults))
	return nil
}

// failJob 将任务置为失败终态
// 任务已在终态时视为幂等成功
func (s *JobService) failJob(ctx context.Context, jobID, detail string) error {
	_, err := s.repo.Update(ctx, jobID, func(j *etjob.Job) error {
		if j.Status.Terminal() {
			return errAlreadySettled
		}
		return j.MarkFailed(detail)
	})
	if err != nil {
		if errors.Is(err, errAlreadySettled) {
			return nil
		}
		return err
	}

	metrics.JobsCompleted.WithLabelValues(string(etjob.JobStatusFailed)).Inc()
	s.publishResult(ctx, jobID, string(etjob.JobStatusFailed))
	s.logger.Warnf(ctx, "[JobService] Job %s failed: %s", jobID, detail)
	return nil
}

// completePayment 提交结果哈希，标记支付请求完成
func (s *JobService) completePayment(ctx context.Context, paymentRef string, result *etjob.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result failed: %w", err)
	}
	sum := sha256.Sum256(data)
	return s.gateway.CompleteRequest(ctx, paymentRef, hex.EncodeToString(sum[:]))
}

// publishResult 发布任务终态通知（通知通道未配置时跳过）
func (s *JobService) publishResult(ctx context.Context, jobID, status string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishJobResult(ctx, jobID, status); err != nil {
		s.logger.Warnf(ctx, "[JobService] Publish job result failed for %s: %v", jobID, err)
	}
}

// buildResult 从流水线终态上下文组装结果
func buildResult(pc pipeline.Context) *etjob.Result {
	result := &etjob.Result{
		ResearchSummary: pc.ResearchSummary,
		Insights:        pc.Insights,
	}
	if pc.Post != nil {
		result.Headline = pc.Post.Headline
		result.PostBody = pc.Post.PostBody
		result.Rationale = pc.Post.Rationale
		result.CallToAction = pc.Post.CallToAction
	}
	if pc.Hashtags != nil {
		result.Hashtags = pc.Hashtags.Hashtags
		result.HashtagNote = pc.Hashtags.Explainer
	}
	if pc.Image != nil {
		result.ImageURL = pc.Image.URL
	}
	return result
}

// convertFaults 流水线阶段错误转为任务记录
func convertFaults(stageFaults []*pipeline.StageError) []etjob.StageFault {
	if len(stageFaults) == 0 {
		return nil
	}
	faults := make([]etjob.StageFault, 0, len(stageFaults))
	for _, se := range stageFaults {
		faults = append(faults, etjob.StageFault{
			Stage: se.Stage,
			Error: se.Err.Error(),
		})
	}
	return faults
}

// HashInput 计算输入摘要
// 按 key 排序后拼接 k=v 对，保证同一输入得到稳定哈希
func HashInput(input map[string]string) string {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(input[k])
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
