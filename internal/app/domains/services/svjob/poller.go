package svjob

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mca/agentd/internal/app/domains/entity/etjob"
	"mca/agentd/internal/app/infra/payment"
	"mca/agentd/internal/app/pkg/errorx"
	"mca/agentd/internal/metrics"
)

// pollerRegistry 轮询器注册表：保证同一任务至多一个轮询器
type pollerRegistry struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newPollerRegistry() *pollerRegistry {
	return &pollerRegistry{active: make(map[string]struct{})}
}

// acquire 占用任务的轮询席位，重复占用返回 errorx.ErrPollerExists
func (r *pollerRegistry) acquire(jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[jobID]; ok {
		return fmt.Errorf("%w: %s", errorx.ErrPollerExists, jobID)
	}
	r.active[jobID] = struct{}{}
	return nil
}

// release 释放轮询席位
func (r *pollerRegistry) release(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, jobID)
}

// startPoller 为任务启动支付状态轮询 goroutine
func (s *JobService) startPoller(job *etjob.Job) error {
	if err := s.pollers.acquire(job.ID); err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.pollers.release(job.ID)
		s.pollPayment(job.ID, job.PaymentRef, job.PayBy)
	}()
	return nil
}

// pollPayment 按固定间隔轮询支付状态直到得出结论
// 网关不可用视为瞬时故障继续轮询；截止时间到达且仍未确认则超时失败
func (s *JobService) pollPayment(jobID, paymentRef string, payBy time.Time) {
	ctx := context.WithValue(s.baseCtx, "job_id", jobID)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.logger.Infof(ctx, "[Poller] Payment polling started for job %s (interval: %s)", jobID, s.cfg.PollInterval)

	for {
		if time.Now().After(payBy) {
			s.logger.Warnf(ctx, "[Poller] Pay-by deadline passed for job %s", jobID)
			if err := s.OnPaymentTimeout(ctx, jobID); err != nil {
				s.logger.Errorf(ctx, "[Poller] Settle payment timeout failed for job %s: %v", jobID, err)
			}
			return
		}

		state, err := s.gateway.GetStatus(ctx, paymentRef)
		if err != nil {
			// 网关故障不是支付结论，记录后继续轮询
			metrics.PaymentPollErrors.Inc()
			s.logger.Warnf(ctx, "[Poller] Payment status check failed for job %s, will retry: %v", jobID, err)
		} else if done := s.settle(ctx, jobID, state); done {
			return
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			s.logger.Infof(ctx, "[Poller] Payment polling stopped for job %s: %v", jobID, ctx.Err())
			return
		}
	}
}

// settle 根据支付状态推进任务，返回是否结束轮询
func (s *JobService) settle(ctx context.Context, jobID string, state payment.State) bool {
	var err error
	switch state {
	case payment.StateFundsLocked:
		err = s.OnPaymentConfirmed(ctx, jobID)
	case payment.StateDeclined:
		err = s.OnPaymentDeclined(ctx, jobID)
	case payment.StateExpired:
		err = s.OnPaymentExpired(ctx, jobID)
	default:
		return false
	}

	if err != nil {
		s.logger.Errorf(ctx, "[Poller] Settle payment state %s failed for job %s: %v", state, jobID, err)
	}
	return true
}
