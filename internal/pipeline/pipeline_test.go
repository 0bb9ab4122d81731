package pipeline

import (
	"context"
	"errors"
	"testing"

	"mca/agentd/pkg/logger"
)

func recordStage(name string, optional bool, calls *[]string, fail error, mutate func(*Context)) Stage {
	return Stage{
		Name:     name,
		Optional: optional,
		Run: func(ctx context.Context, pc Context) (Context, error) {
			*calls = append(*calls, name)
			if fail != nil {
				return pc, fail
			}
			if mutate != nil {
				mutate(&pc)
			}
			return pc, nil
		},
	}
}

func TestRunAllStagesSucceed(t *testing.T) {
	var calls []string
	runner := NewRunner([]Stage{
		recordStage("a", false, &calls, nil, func(pc *Context) { pc.Insights = []string{"i1"} }),
		recordStage("b", false, &calls, nil, func(pc *Context) { pc.ResearchSummary = "sum" }),
	}, logger.NopLogger{})

	final, faults, err := runner.Run(context.Background(), Context{Topic: "t"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(faults) != 0 {
		t.Errorf("expected no faults, got %v", faults)
	}
	if len(calls) != 2 {
		t.Errorf("expected 2 stage calls, got %v", calls)
	}
	if final.ResearchSummary != "sum" || len(final.Insights) != 1 {
		t.Errorf("stage outputs not accumulated: %+v", final)
	}
}

func TestRunRequiredStageFailureAborts(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	runner := NewRunner([]Stage{
		recordStage("a", false, &calls, nil, func(pc *Context) { pc.ResearchSummary = "partial" }),
		recordStage("b", false, &calls, boom, nil),
		recordStage("c", false, &calls, nil, nil),
	}, logger.NopLogger{})

	final, faults, err := runner.Run(context.Background(), Context{})
	if err == nil {
		t.Fatal("expected error from required stage failure")
	}

	var se *StageError
	if !errors.As(err, &se) || se.Stage != "b" {
		t.Errorf("expected StageError for stage b, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("StageError should unwrap to cause, got %v", err)
	}
	// 后续阶段不再执行
	for _, name := range calls {
		if name == "c" {
			t.Error("stage c ran after required stage failure")
		}
	}
	// 失败前已累积的部分上下文保留
	if final.ResearchSummary != "partial" {
		t.Errorf("partial context lost: %+v", final)
	}
	if len(faults) != 0 {
		t.Errorf("required failure should not appear in faults: %v", faults)
	}
}

func TestRunOptionalStageFailureContinues(t *testing.T) {
	var calls []string
	runner := NewRunner([]Stage{
		recordStage("a", true, &calls, errors.New("serp down"), nil),
		recordStage("b", false, &calls, nil, func(pc *Context) { pc.ResearchSummary = "sum" }),
	}, logger.NopLogger{})

	final, faults, err := runner.Run(context.Background(), Context{})
	if err != nil {
		t.Fatalf("optional failure should not abort, got %v", err)
	}
	if len(faults) != 1 || faults[0].Stage != "a" || !faults[0].Optional {
		t.Errorf("optional fault not recorded: %v", faults)
	}
	if len(calls) != 2 {
		t.Errorf("downstream stage should still run, calls: %v", calls)
	}
	if final.ResearchSummary != "sum" {
		t.Errorf("downstream output lost: %+v", final)
	}
}

func TestRunOptionalFailureKeepsPreStageContext(t *testing.T) {
	var calls []string
	runner := NewRunner([]Stage{
		recordStage("a", false, &calls, nil, func(pc *Context) { pc.Insights = []string{"keep"} }),
		// 可选阶段返回被改动的上下文和错误，改动必须被丢弃
		{
			Name:     "b",
			Optional: true,
			Run: func(ctx context.Context, pc Context) (Context, error) {
				pc.Insights = nil
				return pc, errors.New("broken")
			},
		},
		recordStage("c", false, &calls, nil, nil),
	}, logger.NopLogger{})

	final, _, err := runner.Run(context.Background(), Context{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(final.Insights) != 1 || final.Insights[0] != "keep" {
		t.Errorf("failed optional stage output leaked into context: %+v", final)
	}
}
