package svjob

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"mca/agentd/internal/app/config"
	"mca/agentd/internal/app/domains/entity/etjob"
	"mca/agentd/internal/app/domains/repo/rpjob"
	"mca/agentd/internal/app/infra/payment"
	"mca/agentd/internal/app/pkg/errorx"
	"mca/agentd/internal/pipeline"
	"mca/agentd/pkg/logger"
)

// fakeGateway 测试用支付网关
type fakeGateway struct {
	mu             sync.Mutex
	createErr      error
	states         []payment.State
	stateErrs      []error
	statusCalls    int
	completeCalls  int
	completeHashes []string
}

func (g *fakeGateway) CreateRequest(ctx context.Context, in payment.CreateRequestInput) (*payment.Request, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &payment.Request{BlockchainIdentifier: "chain-1", InputHash: in.InputHash}, nil
}

func (g *fakeGateway) GetStatus(ctx context.Context, blockchainIdentifier string) (payment.State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx := g.statusCalls
	g.statusCalls++
	if idx < len(g.stateErrs) && g.stateErrs[idx] != nil {
		return "", g.stateErrs[idx]
	}
	if idx < len(g.states) {
		return g.states[idx], nil
	}
	return payment.StatePending, nil
}

func (g *fakeGateway) CompleteRequest(ctx context.Context, blockchainIdentifier, resultHash string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completeCalls++
	g.completeHashes = append(g.completeHashes, resultHash)
	return nil
}

func (g *fakeGateway) completed() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.completeCalls
}

func testPaymentConfig() config.PaymentConfig {
	return config.PaymentConfig{
		PayByWindow:  time.Minute,
		SubmitWindow: 20 * time.Minute,
		PollInterval: time.Hour, // 测试中轮询器保持静默，由用例直接驱动回调
	}
}

func okStages() []pipeline.Stage {
	return []pipeline.Stage{
		{
			Name: "generate_copy",
			Run: func(ctx context.Context, pc pipeline.Context) (pipeline.Context, error) {
				pc.Post = &pipeline.Post{PostBody: "generated for " + pc.Topic, Headline: "h"}
				return pc, nil
			},
		},
		{
			Name: "generate_hashtags",
			Run: func(ctx context.Context, pc pipeline.Context) (pipeline.Context, error) {
				pc.Hashtags = &pipeline.HashtagPackage{Hashtags: []string{"ai"}}
				return pc, nil
			},
		},
	}
}

func newTestService(t *testing.T, gw payment.Gateway, stages []pipeline.Stage, cfg config.PaymentConfig) *JobService {
	t.Helper()
	runner := pipeline.NewRunner(stages, logger.NopLogger{})
	svc := NewJobService(rpjob.NewMemoryJobRepository(), gw, runner, nil, cfg, logger.NopLogger{})
	t.Cleanup(svc.Shutdown)
	return svc
}

func startJob(t *testing.T, svc *JobService) *etjob.Job {
	t.Helper()
	job, err := svc.StartJob(context.Background(), "12345671234567", map[string]string{"topic": "AI"})
	if err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}
	return job
}

func TestStartJobSuccess(t *testing.T) {
	svc := newTestService(t, &fakeGateway{}, okStages(), testPaymentConfig())
	job := startJob(t, svc)

	if job.Status != etjob.JobStatusAwaitingPayment {
		t.Errorf("new job should await payment, got %s", job.Status)
	}
	if job.PaymentRef != "chain-1" {
		t.Errorf("payment reference missing: %q", job.PaymentRef)
	}
	if job.InputHash == "" {
		t.Error("input hash missing")
	}

	got, err := svc.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.Status != etjob.JobStatusAwaitingPayment {
		t.Errorf("persisted status mismatch: %s", got.Status)
	}
}

func TestStartJobMissingTopic(t *testing.T) {
	svc := newTestService(t, &fakeGateway{}, okStages(), testPaymentConfig())
	_, err := svc.StartJob(context.Background(), "12345671234567", map[string]string{"tone": "fun"})
	if !errors.Is(err, errorx.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestStartJobGatewayFailureCreatesNoJob(t *testing.T) {
	gw := &fakeGateway{createErr: fmt.Errorf("%w: connection refused", errorx.ErrGatewayUnavailable)}
	svc := newTestService(t, gw, okStages(), testPaymentConfig())

	_, err := svc.StartJob(context.Background(), "12345671234567", map[string]string{"topic": "AI"})
	if !errors.Is(err, errorx.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestOnPaymentConfirmedRunsPipeline(t *testing.T) {
	gw := &fakeGateway{}
	svc := newTestService(t, gw, okStages(), testPaymentConfig())
	job := startJob(t, svc)

	if err := svc.OnPaymentConfirmed(context.Background(), job.ID); err != nil {
		t.Fatalf("OnPaymentConfirmed failed: %v", err)
	}

	got, _ := svc.GetJob(context.Background(), job.ID)
	if got.Status != etjob.JobStatusDone {
		t.Fatalf("expected done, got %s (%s)", got.Status, got.ErrorDetail)
	}
	if got.Result == nil || got.Result.PostBody != "generated for AI" {
		t.Errorf("result missing: %+v", got.Result)
	}
	if gw.completed() != 1 {
		t.Errorf("expected one complete payment call, got %d", gw.completed())
	}
}

func TestOnPaymentConfirmedIdempotent(t *testing.T) {
	gw := &fakeGateway{}
	svc := newTestService(t, gw, okStages(), testPaymentConfig())
	job := startJob(t, svc)

	if err := svc.OnPaymentConfirmed(context.Background(), job.ID); err != nil {
		t.Fatalf("first confirm failed: %v", err)
	}
	// 重复确认不报错，也不重跑流水线
	if err := svc.OnPaymentConfirmed(context.Background(), job.ID); err != nil {
		t.Fatalf("duplicate confirm should be idempotent, got %v", err)
	}
	if gw.completed() != 1 {
		t.Errorf("pipeline ran twice: %d complete calls", gw.completed())
	}
}

func TestRequiredStageFailureFailsJob(t *testing.T) {
	stages := []pipeline.Stage{
		{
			Name: "generate_copy",
			Run: func(ctx context.Context, pc pipeline.Context) (pipeline.Context, error) {
				return pc, errors.New("llm exploded")
			},
		},
	}
	gw := &fakeGateway{}
	svc := newTestService(t, gw, stages, testPaymentConfig())
	job := startJob(t, svc)

	if err := svc.OnPaymentConfirmed(context.Background(), job.ID); err != nil {
		t.Fatalf("OnPaymentConfirmed should settle failure internally, got %v", err)
	}

	got, _ := svc.GetJob(context.Background(), job.ID)
	if got.Status != etjob.JobStatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.ErrorDetail == "" {
		t.Error("failure detail missing")
	}
	if got.Result != nil {
		t.Errorf("failed job should have no result: %+v", got.Result)
	}
	if gw.completed() != 0 {
		t.Errorf("failed job should not complete payment, got %d calls", gw.completed())
	}
}

func TestOptionalStageFaultRecordedJobStillDone(t *testing.T) {
	stages := append([]pipeline.Stage{
		{
			Name:     "fetch_snippets",
			Optional: true,
			Run: func(ctx context.Context, pc pipeline.Context) (pipeline.Context, error) {
				return pc, errors.New("serp quota exceeded")
			},
		},
	}, okStages()...)

	svc := newTestService(t, &fakeGateway{}, stages, testPaymentConfig())
	job := startJob(t, svc)

	if err := svc.OnPaymentConfirmed(context.Background(), job.ID); err != nil {
		t.Fatalf("OnPaymentConfirmed failed: %v", err)
	}

	got, _ := svc.GetJob(context.Background(), job.ID)
	if got.Status != etjob.JobStatusDone {
		t.Fatalf("optional fault should not fail job, got %s", got.Status)
	}
	if len(got.StageFaults) != 1 || got.StageFaults[0].Stage != "fetch_snippets" {
		t.Errorf("stage fault not recorded: %+v", got.StageFaults)
	}
}

func TestPaymentDeclinedFailsJob(t *testing.T) {
	svc := newTestService(t, &fakeGateway{}, okStages(), testPaymentConfig())
	job := startJob(t, svc)

	if err := svc.OnPaymentDeclined(context.Background(), job.ID); err != nil {
		t.Fatalf("OnPaymentDeclined failed: %v", err)
	}
	got, _ := svc.GetJob(context.Background(), job.ID)
	if got.Status != etjob.JobStatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}

	// 终态后的重复结论幂等
	if err := svc.OnPaymentDeclined(context.Background(), job.ID); err != nil {
		t.Errorf("duplicate decline should be idempotent, got %v", err)
	}
	if err := svc.OnPaymentExpired(context.Background(), job.ID); err != nil {
		t.Errorf("expired after terminal should be idempotent, got %v", err)
	}
}

func TestHashInputStable(t *testing.T) {
	a := HashInput(map[string]string{"topic": "AI", "tone": "fun"})
	b := HashInput(map[string]string{"tone": "fun", "topic": "AI"})
	if a != b {
		t.Errorf("hash should be order independent: %s vs %s", a, b)
	}
	c := HashInput(map[string]string{"topic": "AI", "tone": "serious"})
	if a == c {
		t.Error("different input should hash differently")
	}
}
