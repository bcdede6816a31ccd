package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

func TestPricingCost(t *testing.T) {
	p := DefaultPricing()

	// 1M input + 1M output at sonnet rates.
	got := p.Cost("claude-sonnet-4-20250514", 1_000_000, 1_000_000)
	if got != 18.0 {
		t.Errorf("sonnet cost = %v, want 18.0", got)
	}

	// Unknown model falls back to the default rate.
	got = p.Cost("some-future-model", 1_000_000, 0)
	if got != 3.0 {
		t.Errorf("fallback cost = %v, want 3.0", got)
	}
}

func TestPricingBedrockModelResolution(t *testing.T) {
	p := DefaultPricing()

	direct := p.Rate("claude-sonnet-4-20250514")
	viaBedrock := p.Rate("us.anthropic.claude-sonnet-4-20250514-v1:0")
	if direct != viaBedrock {
		t.Errorf("bedrock profile rate = %+v, want %+v", viaBedrock, direct)
	}
}

func TestLoadPricing_Overrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricing.yaml")
	content := `
fallback:
  input_per_mtok: 1.0
  output_per_mtok: 2.0
models:
  claude-sonnet-4-20250514:
    input_per_mtok: 4.0
    output_per_mtok: 20.0
  custom-model:
    input_per_mtok: 0.5
    output_per_mtok: 1.5
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write pricing file: %v", err)
	}

	p, err := LoadPricing(path)
	if err != nil {
		t.Fatalf("LoadPricing failed: %v", err)
	}

	if rate := p.Rate("claude-sonnet-4-20250514"); rate.InputPerMTok != 4.0 {
		t.Errorf("override not applied: %+v", rate)
	}
	if rate := p.Rate("custom-model"); rate.OutputPerMTok != 1.5 {
		t.Errorf("new model not added: %+v", rate)
	}
	if rate := p.Rate("unknown"); rate.InputPerMTok != 1.0 || rate.OutputPerMTok != 2.0 {
		t.Errorf("fallback override not applied: %+v", rate)
	}
	// Untouched defaults survive layering.
	if rate := p.Rate("claude-3-5-haiku-20241022"); rate.InputPerMTok != 0.8 {
		t.Errorf("default entry lost: %+v", rate)
	}
}

func TestLoadPricing_MissingFile(t *testing.T) {
	if _, err := LoadPricing(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing pricing file")
	}
}

func TestPricingWatch_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricing.yaml")
	write := func(input float64) {
		t.Helper()
		content := fmt.Sprintf("models:\n  watched-model:\n    input_per_mtok: %v\n    output_per_mtok: 1.0\n", input)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write pricing file: %v", err)
		}
	}

	write(1.0)
	p, err := LoadPricing(path)
	if err != nil {
		t.Fatalf("LoadPricing failed: %v", err)
	}
	if err := p.Watch(path); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer p.Close()

	write(9.0)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if p.Rate("watched-model").InputPerMTok == 9.0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("pricing not reloaded, rate = %+v", p.Rate("watched-model"))
}

func TestCallErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  *CallError
		want FailureKind
	}{
		{"rate limited", &CallError{StatusCode: 429}, FailureRateLimited},
		{"server error", &CallError{StatusCode: 500}, FailureTransient},
		{"overloaded", &CallError{StatusCode: 529}, FailureTransient},
		{"request timeout", &CallError{StatusCode: 408}, FailureTransient},
		{"bad request", &CallError{StatusCode: 400}, FailureUnrecoverable},
		{"unauthorized", &CallError{StatusCode: 401}, FailureUnrecoverable},
		{"deadline", &CallError{Err: context.DeadlineExceeded}, FailureTransient},
		{"transport", &CallError{Err: errors.New("connection reset")}, FailureTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Kind(); got != tt.want {
				t.Errorf("Kind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	wrapped := fmt.Errorf("execute step: %w", &CallError{StatusCode: 429})
	if got := Classify(wrapped); got != FailureRateLimited {
		t.Errorf("Classify(wrapped CallError) = %v, want rate_limited", got)
	}
	malformed := fmt.Errorf("parse: %w", ErrMalformedOutput)
	if got := Classify(malformed); got != FailureTransient {
		t.Errorf("Classify(malformed) = %v, want transient", got)
	}
	if got := Classify(context.DeadlineExceeded); got != FailureTransient {
		t.Errorf("Classify(deadline) = %v, want transient", got)
	}
}

func TestRetryHint(t *testing.T) {
	err := fmt.Errorf("call: %w", &CallError{StatusCode: 429, RetryAfter: 7 * time.Second})
	if got := RetryHint(err); got != 7*time.Second {
		t.Errorf("RetryHint = %v, want 7s", got)
	}
	if got := RetryHint(errors.New("plain")); got != 0 {
		t.Errorf("RetryHint(plain) = %v, want 0", got)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("30"); got != 30*time.Second {
		t.Errorf("parseRetryAfter(30) = %v", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("parseRetryAfter(empty) = %v", got)
	}
	if got := parseRetryAfter("Wed, 21 Oct 2026 07:28:00 GMT"); got != 0 {
		t.Errorf("parseRetryAfter(http-date) = %v", got)
	}
}

func TestParseJSONBlock(t *testing.T) {
	var obj struct {
		Verdict string `json:"verdict"`
	}
	text := "Here is my decision:\n```json\n{\"verdict\": \"approve\"}\n```\nDone."
	if err := parseJSONBlock(text, &obj); err != nil {
		t.Fatalf("parseJSONBlock failed: %v", err)
	}
	if obj.Verdict != "approve" {
		t.Errorf("verdict = %q, want approve", obj.Verdict)
	}

	var arr []struct {
		Title string `json:"title"`
	}
	if err := parseJSONBlock(`Sure! [{"title": "a"}, {"title": "b"}]`, &arr); err != nil {
		t.Fatalf("parseJSONBlock array failed: %v", err)
	}
	if len(arr) != 2 {
		t.Errorf("len = %d, want 2", len(arr))
	}

	err := parseJSONBlock("no json here", &obj)
	if !errors.Is(err, ErrMalformedOutput) {
		t.Errorf("expected ErrMalformedOutput, got %v", err)
	}
}

func TestTranslateModelForBedrock(t *testing.T) {
	got := translateModelForBedrock(anthropic.ModelClaudeSonnet4_20250514)
	want := anthropic.Model("us.anthropic.claude-sonnet-4-20250514-v1:0")
	if got != want {
		t.Errorf("translated = %q, want %q", got, want)
	}

	// Already-translated and unknown names pass through.
	if got := translateModelForBedrock(want); got != want {
		t.Errorf("re-translate = %q, want unchanged", got)
	}
}

func TestRouterPolicies(t *testing.T) {
	a := &Client{provider: "anthropic"}
	b := &Client{provider: "bedrock"}

	r, err := NewRouter([]*Client{a, b}, nil)
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}
	if r.Pick(0) != a {
		t.Error("default policy first attempt should use primary")
	}
	if r.Pick(1) != b {
		t.Error("default policy second attempt should fail over")
	}
	if r.Pick(5) != b {
		t.Error("default policy should stick with last provider when exhausted")
	}

	rr, err := NewRouter([]*Client{a, b}, RoundRobinByAttempt)
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}
	if rr.Pick(2) != a || rr.Pick(3) != b {
		t.Error("round robin should cycle")
	}

	if _, err := NewRouter(nil, nil); err == nil {
		t.Error("expected error for empty provider list")
	}

	names := r.Providers()
	if len(names) != 2 || names[0] != "anthropic" || names[1] != "bedrock" {
		t.Errorf("Providers() = %v", names)
	}
}
