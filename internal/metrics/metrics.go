package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 任务与支付相关指标
var (
	// JobsStarted 已创建的任务数
	JobsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agentd_jobs_started_total",
		Help: "Total number of jobs created.",
	})

	// JobsCompleted 进入终态的任务数，按终态分类
	JobsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentd_jobs_completed_total",
		Help: "Total number of jobs that reached a terminal state.",
	}, []string{"status"})

	// PaymentsConfirmed 确认到账的支付数
	PaymentsConfirmed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agentd_payments_confirmed_total",
		Help: "Total number of payments confirmed as funds locked.",
	})

	// PaymentPollErrors 支付状态轮询的瞬时失败数
	PaymentPollErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agentd_payment_poll_errors_total",
		Help: "Total number of transient payment gateway polling failures.",
	})

	// StageDuration 流水线各阶段耗时
	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agentd_pipeline_stage_duration_seconds",
		Help:    "Duration of pipeline stage executions.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"stage", "outcome"})
)

// Register 注册全部指标到默认 Registry
func Register() {
	prometheus.MustRegister(
		JobsStarted,
		JobsCompleted,
		PaymentsConfirmed,
		PaymentPollErrors,
		StageDuration,
	)
}
