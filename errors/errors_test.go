package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"testing"
)

func TestNew_DefaultCategoryFromCode(t *testing.T) {
	tests := []struct {
		code      Code
		category  Category
		retryable bool
	}{
		{CodeTimeout, CategoryTransient, true},
		{CodeLockTimeout, CategoryTransient, true},
		{CodeNotFound, CategoryPermanent, false},
		{CodeInvalidInput, CategoryPermanent, false},
		{CodeRateLimited, CategoryResource, true},
		{CodeCircuitOpen, CategoryResource, true},
		{CodeInternal, CategoryInternal, false},
		{CodeCorruption, CategoryInternal, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			e := New(tt.code, "test")
			if e.Category() != tt.category {
				t.Errorf("Category() = %v, want %v", e.Category(), tt.category)
			}
			if e.Retryable() != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", e.Retryable(), tt.retryable)
			}
		})
	}
}

func TestNew_Options(t *testing.T) {
	cause := stderrors.New("root cause")
	e := New(CodeInternal, "wrapped",
		WithCategory(CategoryTransient),
		WithRetryable(true),
		WithMetadata("attempt", "2"),
		WithOwnerID("task-1"),
		WithTaskID("task-9"),
		WithCause(cause))

	if e.Category() != CategoryTransient || !e.Retryable() {
		t.Errorf("options not applied: %+v", e)
	}
	if e.Metadata()["attempt"] != "2" {
		t.Errorf("Metadata() = %v", e.Metadata())
	}
	if e.OwnerID() != "task-1" || e.TaskID() != "task-9" {
		t.Errorf("ids not applied: %q %q", e.OwnerID(), e.TaskID())
	}
	if !stderrors.Is(e, cause) {
		t.Error("cause must be in the unwrap chain")
	}
	if e.Error() != "wrapped: root cause" {
		t.Errorf("Error() = %q", e.Error())
	}
}

func TestRetryableOverrideBeatsCategory(t *testing.T) {
	e := New(CodeTimeout, "a timeout we know is hopeless", WithRetryable(false))
	if e.Retryable() {
		t.Error("explicit retryable=false must override the transient default")
	}
}

func TestMetadata_CopyIsolated(t *testing.T) {
	e := New(CodeInternal, "x", WithMetadata("k", "v"))
	m := e.Metadata()
	m["k"] = "mutated"
	if e.Metadata()["k"] != "v" {
		t.Error("Metadata() must return a copy")
	}
}

func TestWrap(t *testing.T) {
	inner := New(CodeLockTimeout, "lock wait exceeded", WithOwnerID("task-3"))
	outer := Wrap(inner, "acquiring repo lock")

	if outer.Code() != CodeLockTimeout {
		t.Errorf("Code() = %v, code must survive wrapping", outer.Code())
	}
	if outer.OwnerID() != "task-3" {
		t.Error("owner must survive wrapping")
	}
	if !stderrors.Is(outer, inner) {
		t.Error("wrapped error must unwrap to the original")
	}
}

func TestWrap_ContextErrors(t *testing.T) {
	if e := Wrap(context.DeadlineExceeded, "op"); e.Code() != CodeTimeout {
		t.Errorf("deadline code = %v, want TIMEOUT", e.Code())
	}
	if e := Wrap(context.Canceled, "op"); e.Code() != CodeCanceled {
		t.Errorf("canceled code = %v, want CANCELED", e.Code())
	}
	if e := Wrap(stderrors.New("plain"), "op"); e.Code() != CodeInternal {
		t.Errorf("plain code = %v, want INTERNAL", e.Code())
	}
	if Wrap(nil, "op") != nil {
		t.Error("Wrap(nil) must be nil")
	}
}

func TestWrapWithCode(t *testing.T) {
	e := WrapWithCode(stderrors.New("sdk said no"), CodeQuotaExceeded, "provider call")
	if e.Code() != CodeQuotaExceeded {
		t.Errorf("Code() = %v", e.Code())
	}
	if WrapWithCode(nil, CodeInternal, "x") != nil {
		t.Error("WrapWithCode(nil) must be nil")
	}
}

func TestIsHelpers(t *testing.T) {
	e := fmt.Errorf("outer: %w", RateLimited("slow down"))

	if !Is(e, CodeRateLimited) {
		t.Error("Is() must see through wrapping")
	}
	if !IsCategory(e, CategoryResource) {
		t.Error("IsCategory() must see through wrapping")
	}
	if !IsRetryable(e) {
		t.Error("IsRetryable() must see through wrapping")
	}
	if GetCode(e) != CodeRateLimited {
		t.Errorf("GetCode() = %v", GetCode(e))
	}

	plain := stderrors.New("plain")
	if Is(plain, CodeInternal) || IsRetryable(plain) || GetCode(plain) != "" {
		t.Error("plain errors carry no taxonomy")
	}
}

func TestCause(t *testing.T) {
	root := stderrors.New("root")
	e := Wrap(WrapWithCode(root, CodeNetworkErr, "dial"), "request")
	if Cause(e) != root {
		t.Errorf("Cause() = %v, want root", Cause(e))
	}
	if Cause(root) != root {
		t.Error("Cause of an unwrapped error is itself")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	e := New(CodeLockTimeout, "lock wait exceeded",
		WithOwnerID("task-1"),
		WithMetadata("resource_key", "github.com/org/repo"),
		WithCause(stderrors.New("deadline")))

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var back Error
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back.Code() != CodeLockTimeout || back.Category() != CategoryTransient {
		t.Errorf("taxonomy lost: %+v", back)
	}
	if back.OwnerID() != "task-1" {
		t.Errorf("OwnerID() = %q", back.OwnerID())
	}
	if back.Metadata()["resource_key"] != "github.com/org/repo" {
		t.Errorf("Metadata() = %v", back.Metadata())
	}
	if !back.Retryable() {
		t.Error("retryable flag lost in round trip")
	}
}

func TestConstructors(t *testing.T) {
	if e := LockTimeout("task-1", "repo-key"); e.Code() != CodeLockTimeout || e.OwnerID() != "task-1" {
		t.Errorf("LockTimeout: %+v", e)
	}
	if e := CircuitOpen("anthropic"); e.Metadata()["circuit"] != "anthropic" {
		t.Errorf("CircuitOpen: %+v", e)
	}
	if e := HealExhausted("org/repo"); e.Code() != CodeHealExhausted {
		t.Errorf("HealExhausted: %+v", e)
	}
	if e := StepFailed("step-3", "compile error"); e.Metadata()["step_id"] != "step-3" {
		t.Errorf("StepFailed: %+v", e)
	}
	if e := FromCode(CodeCorruption); e.Error() != "data corruption detected" {
		t.Errorf("FromCode: %q", e.Error())
	}
}

func TestRecoverPanic(t *testing.T) {
	if RecoverPanic(nil) != nil {
		t.Error("RecoverPanic(nil) must be nil")
	}
	e := RecoverPanic("index out of range")
	if e.Code() != CodePanic || e.Error() != "index out of range" {
		t.Errorf("RecoverPanic: %+v", e)
	}
	if e := RecoverPanic(stderrors.New("boom")); e.Error() != "boom" {
		t.Errorf("RecoverPanic(error): %q", e.Error())
	}
}

func TestJoin(t *testing.T) {
	a, b := stderrors.New("a"), stderrors.New("b")
	joined := Join(a, b)
	if !stderrors.Is(joined, a) || !stderrors.Is(joined, b) {
		t.Error("Join must keep both errors reachable")
	}
}
