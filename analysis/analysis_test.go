package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeBackend struct {
	name  string
	text  string
	err   error
	block bool
	calls int
	got   string
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Analyze(ctx context.Context, content, competitor string) (string, error) {
	f.calls++
	f.got = competitor
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.text, f.err
}

func TestSummarize_FirstBackendWins(t *testing.T) {
	a := &fakeBackend{name: "a", text: "Summary: from a\nCategory: Pricing\nImpact: Low\nAction: none"}
	b := &fakeBackend{name: "b", text: "from b"}
	o := New([]Backend{a, b})

	res := o.Summarize(context.Background(), "content", "Acme")
	if res.Provider != "a" || res.Text != a.text {
		t.Fatalf("result = %+v", res)
	}
	if res.Fields.Category != "Pricing" {
		t.Fatalf("fields = %+v", res.Fields)
	}
	if b.calls != 0 {
		t.Fatal("second backend called after success")
	}
}

func TestSummarize_FallsThroughErrors(t *testing.T) {
	// WHAT: an error, then a blank answer, are skipped; the third backend answers.
	// WHY: provider failures must never reach the caller.
	a := &fakeBackend{name: "a", err: errors.New("401 unauthorized")}
	b := &fakeBackend{name: "b", text: "   \n"}
	c := &fakeBackend{name: "c", text: "verbatim answer"}
	o := New([]Backend{a, nil, b, c})

	res := o.Summarize(context.Background(), "content", "Acme")
	if res.Provider != "c" || res.Text != "verbatim answer" {
		t.Fatalf("result = %+v", res)
	}
	if a.calls != 1 || b.calls != 1 || c.calls != 1 {
		t.Fatalf("calls = %d/%d/%d", a.calls, b.calls, c.calls)
	}
}

func TestSummarize_TimeoutAdvances(t *testing.T) {
	slow := &fakeBackend{name: "slow", block: true}
	fast := &fakeBackend{name: "fast", text: "ok"}
	o := New([]Backend{slow, fast}, WithTimeout(20*time.Millisecond))

	start := time.Now()
	res := o.Summarize(context.Background(), "content", "Acme")
	if res.Provider != "fast" {
		t.Fatalf("provider = %s, want fast", res.Provider)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("per-call timeout not applied")
	}
}

func TestSummarize_NoBackendsUsesRules(t *testing.T) {
	// WHAT: with nothing configured the rule-based analyzer answers.
	res := New(nil).Summarize(context.Background(), "We raised a funding round", "Acme")
	if res.Provider != RuleBasedProvider {
		t.Fatalf("provider = %s", res.Provider)
	}
	if res.Fields.Category != "Funding" || !strings.HasPrefix(res.Text, "Summary: Acme has published") {
		t.Fatalf("result = %+v", res)
	}
}

func TestSummarize_AllFailUsesRules(t *testing.T) {
	a := &fakeBackend{name: "a", err: errors.New("down")}
	res := New([]Backend{a}).Summarize(context.Background(), "text", "")
	if res.Provider != RuleBasedProvider {
		t.Fatalf("provider = %s", res.Provider)
	}
	if a.got != "competitor" || !strings.Contains(res.Text, "competitor has published") {
		t.Fatalf("default competitor name not applied: %q", res.Text)
	}
}

func TestProvidersFromEnv(t *testing.T) {
	// WHAT: only providers with a credential or host are enabled, in priority order.
	env := map[string]string{
		"OLLAMA_HOST":         "http://ollama:11434",
		"HUGGINGFACE_API_KEY": "hf_x",
		"GOOGLE_API_KEY":      " ",
	}
	cfg := ProvidersFromEnv(func(k string) string { return env[k] }, map[string]string{Ollama: "mistral"})

	got := strings.Join(cfg.Enabled(), ",")
	if got != "ollama,huggingface" {
		t.Fatalf("enabled = %s", got)
	}
	if cfg.Ollama.Model != "mistral" || cfg.HuggingFace.Model != DefaultModels[HuggingFace] {
		t.Fatalf("models = %s / %s", cfg.Ollama.Model, cfg.HuggingFace.Model)
	}
	if cfg.OpenAI.Enabled || cfg.Gemini.Enabled {
		t.Fatal("provider without credential enabled")
	}
}

func TestBuildPrompt(t *testing.T) {
	content := strings.Repeat("x", 2000)
	p := BuildPrompt(content, "Acme")
	if !strings.Contains(p, "Competitor: Acme") {
		t.Fatal("competitor missing")
	}
	if strings.Contains(p, strings.Repeat("x", MaxPromptContent+1)) || !strings.Contains(p, strings.Repeat("x", MaxPromptContent)) {
		t.Fatal("content not truncated to the prompt budget")
	}
	for _, label := range []string{"Summary:", "Category:", "Impact:", "Action:"} {
		if !strings.Contains(p, label) {
			t.Fatalf("prompt missing %s", label)
		}
	}
}
