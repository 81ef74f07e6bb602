package errors

import (
	"fmt"
	"testing"
)

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("test error")
	ee := New(err).Build()

	if ee.Err.Error() != "test error" {
		t.Errorf("Expected error message 'test error', got '%s'", ee.Err.Error())
	}

	if ee.Category != CategoryGeneric {
		t.Errorf("Expected category 'generic', got '%s'", ee.Category)
	}
}

func TestBuilderChain(t *testing.T) {
	t.Parallel()

	ee := Newf("analysis rejected: %s", "bad image").
		Category(CategoryHTTP).
		Component("egrowtify").
		Context("status_code", 422).
		Build()

	if ee.GetComponent() != "egrowtify" {
		t.Errorf("Expected component 'egrowtify', got '%s'", ee.GetComponent())
	}
	if ee.Category != CategoryHTTP {
		t.Errorf("Expected category 'http-request', got '%s'", ee.Category)
	}
	if got := ee.GetContext()["status_code"]; got != 422 {
		t.Errorf("Expected status_code 422 in context, got %v", got)
	}
}

func TestCategoryHeuristics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  string
		want ErrorCategory
	}{
		{"quota", "usage limit reached", CategoryLimit},
		{"network", "connection refused", CategoryNetwork},
		{"timeout", "request timed out", CategoryTimeout},
		{"validation", "invalid image type", CategoryValidation},
		{"unknown", "something odd happened", CategoryGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ee := Newf("%s", tt.msg).Build()
			if ee.Category != tt.want {
				t.Errorf("detectCategory(%q) = %s, want %s", tt.msg, ee.Category, tt.want)
			}
		})
	}
}

func TestIsCategoryHelpers(t *testing.T) {
	t.Parallel()

	limitErr := Newf("usage limit reached").Category(CategoryLimit).Build()
	netErr := Newf("backend unreachable").Category(CategoryNetwork).Build()
	valErr := ValidationError("plant_name is required")

	if !IsLimit(limitErr) {
		t.Error("IsLimit should match CategoryLimit errors")
	}
	if !IsUnreachable(netErr) {
		t.Error("IsUnreachable should match CategoryNetwork errors")
	}
	if !IsValidation(valErr) {
		t.Error("IsValidation should match CategoryValidation errors")
	}
	if IsLimit(netErr) {
		t.Error("IsLimit must not match network errors")
	}
}

func TestUnwrapPreservesWrappedError(t *testing.T) {
	t.Parallel()

	base := NewStd("root cause")
	ee := Newf("wrapped: %w", base).Category(CategoryHTTP).Build()

	if !Is(ee, base) {
		t.Error("errors.Is should find the wrapped error through EnhancedError")
	}
}
