package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestWrapNil(t *testing.T) {
	if Wrap(nil, KindScanFailed, "should be nil") != nil {
		t.Fatal("Wrap(nil) must return nil")
	}
}

func TestKindOf(t *testing.T) {
	err := GraphBackend(fmt.Errorf("connection refused"), "save map")
	if KindOf(err) != KindGraphBackend {
		t.Errorf("KindOf = %v, want KindGraphBackend", KindOf(err))
	}
	if KindOf(stderrors.New("plain")) != KindInternal {
		t.Error("foreign errors must map to KindInternal")
	}
}

func TestIsKindThroughWrapping(t *testing.T) {
	inner := Timeout(stderrors.New("deadline exceeded"), "llm call")
	outer := fmt.Errorf("batch 3: %w", inner)

	if !IsKind(outer, KindTimeout) {
		t.Error("IsKind must see through fmt.Errorf wrapping")
	}
	if IsKind(outer, KindGraphConflict) {
		t.Error("IsKind must not match a different kind")
	}
}

func TestFatality(t *testing.T) {
	tests := []struct {
		err   error
		fatal bool
	}{
		{InputMissing("no SDD found"), true},
		{ScanFailed(stderrors.New("timeout"), "snapshot"), true},
		{GraphBackend(stderrors.New("io"), "save"), true},
		{LLMBadOutput(stderrors.New("parse"), "extract"), false},
		{ValidationFailedf("unknown target %s", "DE-x"), false},
		{GraphConflict("version changed"), false},
		{Timeout(stderrors.New("ctx"), "fetch"), false},
		{stderrors.New("foreign"), true},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsFatal(tt.err); got != tt.fatal {
			t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.fatal)
		}
	}
}

func TestErrorsIsByKind(t *testing.T) {
	err := ValidationFailedf("edge %s -> %s out of vocabulary", "a", "b")
	if !stderrors.Is(err, &Error{Kind: KindValidationFailed}) {
		t.Error("errors.Is should match on kind")
	}
}

func TestContext(t *testing.T) {
	err := LLMBadOutput(stderrors.New("bad json"), "extract sdd").
		WithContext("file", "docs/sdd.md").
		WithContext("attempts", 3)
	s := err.DetailedString()
	if s == "" || err.Context["file"] != "docs/sdd.md" {
		t.Errorf("context not attached: %s", s)
	}
}
