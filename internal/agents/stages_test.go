package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mca/agentd/internal/pipeline"
	"mca/agentd/pkg/logger"
)

// stubLLM 固定返回预设内容的 LLM
type stubLLM struct {
	response string
	err      error
	lastUser string
}

func (s *stubLLM) Complete(ctx context.Context, system, user string) (string, error) {
	s.lastUser = user
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestSynthesizeStageParsesInsights(t *testing.T) {
	llm := &stubLLM{response: `{"insights":["stat one","quote two"],"summary":"short take"}`}
	agent := NewResearchAgent(nil, llm, 8, logger.NopLogger{})

	pc := pipeline.Context{
		Topic: "AI agents",
		Tone:  "playful",
		Snippets: []pipeline.Snippet{
			{Title: "Story", Source: "news", Snippet: "AI agents are everywhere"},
		},
	}
	out, err := agent.SynthesizeStage().Run(context.Background(), pc)
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if len(out.Insights) != 2 || out.ResearchSummary != "short take" {
		t.Errorf("output not recorded: %+v", out)
	}
	if !strings.Contains(llm.lastUser, "AI agents are everywhere") {
		t.Error("snippets not passed to LLM")
	}
}

func TestSynthesizeStageNoSnippetsDegrades(t *testing.T) {
	llm := &stubLLM{response: `{"insights":[],"summary":"based on topic alone"}`}
	agent := NewResearchAgent(nil, llm, 8, logger.NopLogger{})

	_, err := agent.SynthesizeStage().Run(context.Background(), pipeline.Context{Topic: "AI"})
	if err != nil {
		t.Fatalf("synthesize without snippets should degrade, got %v", err)
	}
	if !strings.Contains(llm.lastUser, "No snippets available.") {
		t.Error("degraded prompt marker missing")
	}
}

func TestCopyStageBuildsPost(t *testing.T) {
	llm := &stubLLM{response: `{
		"post_body":"Hello LinkedIn",
		"headline":"Hook",
		"rationale":"why",
		"call_to_action":"comment below",
		"image_prompt":"a robot at a desk"
	}`}
	agent := NewCopywritingAgent(llm, logger.NopLogger{})

	pc := pipeline.Context{Topic: "AI", Platform: "linkedin", UseEmojis: false, Insights: []string{"i1"}}
	out, err := agent.GenerateStage().Run(context.Background(), pc)
	if err != nil {
		t.Fatalf("copy stage failed: %v", err)
	}
	if out.Post == nil || out.Post.PostBody != "Hello LinkedIn" || out.Post.ImagePrompt == "" {
		t.Errorf("post not recorded: %+v", out.Post)
	}
	if !strings.Contains(llm.lastUser, "Do NOT use emojis") {
		t.Error("emoji instruction not applied")
	}
}

func TestCopyStageRejectsEmptyBody(t *testing.T) {
	llm := &stubLLM{response: `{"post_body":""}`}
	agent := NewCopywritingAgent(llm, logger.NopLogger{})

	_, err := agent.GenerateStage().Run(context.Background(), pipeline.Context{Topic: "AI"})
	if err == nil {
		t.Fatal("empty post_body should fail the stage")
	}
}

func TestHashtagStageParsesTags(t *testing.T) {
	llm := &stubLLM{response: `{"hashtags":["#AI","Automation"],"explainer":"reach"}`}
	agent := NewHashtagAgent(llm, logger.NopLogger{})

	pc := pipeline.Context{Topic: "AI", Post: &pipeline.Post{PostBody: "body"}}
	out, err := agent.GenerateStage().Run(context.Background(), pc)
	if err != nil {
		t.Fatalf("hashtag stage failed: %v", err)
	}
	if out.Hashtags == nil || len(out.Hashtags.Hashtags) != 2 || out.Hashtags.Hashtags[0] != "AI" {
		t.Errorf("hashtags not recorded: %+v", out.Hashtags)
	}
}

func TestStageFailurePropagates(t *testing.T) {
	llm := &stubLLM{err: errors.New("rate limited")}
	agent := NewCopywritingAgent(llm, logger.NopLogger{})

	_, err := agent.GenerateStage().Run(context.Background(), pipeline.Context{Topic: "AI"})
	if err == nil {
		t.Fatal("LLM error should propagate")
	}
}

func TestBuildStagesOrder(t *testing.T) {
	llm := &stubLLM{}
	stages := BuildStages(nil, llm, nil, 8, logger.NopLogger{})

	want := []string{"fetch_snippets", "synthesize_research", "generate_copy", "generate_hashtags"}
	if len(stages) != len(want) {
		t.Fatalf("expected %d stages without image generator, got %d", len(want), len(stages))
	}
	for i, stage := range stages {
		if stage.Name != want[i] {
			t.Errorf("stage %d: expected %s, got %s", i, want[i], stage.Name)
		}
	}
	if !stages[0].Optional {
		t.Error("fetch_snippets should be optional")
	}
	for _, stage := range stages[1:] {
		if stage.Optional {
			t.Errorf("stage %s should be required", stage.Name)
		}
	}
}
