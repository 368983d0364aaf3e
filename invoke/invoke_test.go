package invoke

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/tasknetics/taskcore/errors"
)

func TestPricing_Cost(t *testing.T) {
	p := Pricing{InputUnitUSD: 0.000003, OutputUnitUSD: 0.000015}
	got := p.Cost(Usage{InputUnits: 1000, OutputUnits: 2000})
	want := 0.003 + 0.03
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Cost() = %v, want %v", got, want)
	}

	if c := (Pricing{}).Cost(Usage{InputUnits: 500}); c != 0 {
		t.Errorf("zero pricing must cost nothing, got %v", c)
	}
}

func TestMock_ScriptedResponse(t *testing.T) {
	m := NewMock()
	m.SetResponse(&Response{Output: "done", Usage: Usage{InputUnits: 10, OutputUnits: 20}})

	resp, err := m.Invoke(context.Background(), Request{Prompt: "hello"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if resp.Output != "done" || resp.Usage.OutputUnits != 20 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if m.Calls() != 1 {
		t.Errorf("Calls() = %d, want 1", m.Calls())
	}
	if m.LastRequest().Prompt != "hello" {
		t.Errorf("LastRequest() = %+v", m.LastRequest())
	}

	// Callers get a copy, not the scripted value.
	resp.Output = "mutated"
	again, _ := m.Invoke(context.Background(), Request{})
	if again.Output != "done" {
		t.Error("scripted response must be isolated from caller mutation")
	}
}

func TestMock_ScriptedError(t *testing.T) {
	m := NewMock()
	m.SetError(stderrors.New("boom"))
	if _, err := m.Invoke(context.Background(), Request{}); err == nil {
		t.Fatal("expected scripted error")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		code      errors.Code
	}{
		{"rate limit", stderrors.New("429 Too Many Requests"), true, errors.CodeRateLimited},
		{"overloaded", stderrors.New("overloaded_error: try again"), true, errors.CodeRateLimited},
		{"server error", stderrors.New("503 Service Unavailable"), true, errors.CodeInternal},
		{"gateway timeout", stderrors.New("504 gateway timeout"), true, errors.CodeInternal},
		{"billing", stderrors.New("billing hard limit reached"), false, errors.CodeInvalidInput},
		{"insufficient credits", stderrors.New("insufficient credits remaining"), false, errors.CodeInvalidInput},
		{"unknown", stderrors.New("connection reset by peer"), false, errors.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("anthropic", tt.err)
			if errors.IsRetryable(got) != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", errors.IsRetryable(got), tt.retryable)
			}
			if code := errors.GetCode(got); code != tt.code {
				t.Errorf("code = %v, want %v", code, tt.code)
			}
		})
	}

	if classify("anthropic", nil) != nil {
		t.Error("classify(nil) must be nil")
	}
}

func TestClassify_PermanentBillingCategory(t *testing.T) {
	err := classify("openai", stderrors.New("quota exceeded for this subscription"))
	if !errors.IsCategory(err, errors.CategoryPermanent) {
		t.Errorf("billing failure should be permanent: %v", err)
	}
}
