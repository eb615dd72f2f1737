package shader

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("pipeline lit: %w", (&Error{
		Kind: ErrMissingIncludeFile,
		Path: "lights.glsl",
		Line: 12,
	}).WithStage(StageFragment))

	if !errors.Is(err, ErrMissingInclude) {
		t.Error("errors.Is(err, ErrMissingInclude) = false")
	}
	if errors.Is(err, ErrMissingSource) {
		t.Error("errors.Is(err, ErrMissingSource) = true")
	}
	if k, ok := KindOf(err); !ok || k != ErrMissingIncludeFile {
		t.Errorf("KindOf() = %v, %v", k, ok)
	}
	msg := err.Error()
	for _, want := range []string{"lights.glsl:12", "(fragment)"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"compile", &Error{Kind: ErrCompile}, true},
		{"wrapped compile", fmt.Errorf("stage: %w", &Error{Kind: ErrCompile}), true},
		{"invocation", &Error{Kind: ErrCompilerInvocationFailed}, false},
		{"malformed", &Error{Kind: ErrMalformedConditional}, false},
		{"plain", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecoverable(tt.err); got != tt.want {
				t.Errorf("IsRecoverable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorDiagnostics(t *testing.T) {
	err := &Error{
		Kind: ErrCompile,
		Path: "lit.frag",
		Diagnostics: []Diagnostic{
			{Line: 4, Message: "undeclared identifier", Severity: SeverityError},
			{Line: 9, Message: "type mismatch", Severity: SeverityError},
		},
	}
	if !strings.Contains(err.Error(), "(and 1 more)") {
		t.Errorf("Error() = %q", err.Error())
	}
}
