package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "matrix not found")
		if err.Error() != "[NOT_FOUND] matrix not found" {
			t.Errorf("expected [NOT_FOUND] matrix not found, got %s", err.Error())
		}
	})

	t.Run("Newf", func(t *testing.T) {
		err := Newf(CodeInvalidInput, "unknown importer %q", "pkg.mod")
		expected := `[INVALID_INPUT] unknown importer "pkg.mod"`
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("original error")
		err := Wrap(original, CodeInternal, "internal failure")
		expected := "[INTERNAL_ERROR] internal failure: original error"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
		if !errors.Is(err, original) {
			t.Error("expected wrapped error to unwrap to original")
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeInvalidInput, "invalid input")
		if !IsCode(err, CodeInvalidInput) {
			t.Error("expected IsCode to return true for CodeInvalidInput")
		}
		if IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to return false for CodeNotFound")
		}
	})

	t.Run("IsCodeThroughFmtWrap", func(t *testing.T) {
		err := fmt.Errorf("build imports: %w", New(CodeInvalidInput, "bad importer"))
		if !IsCode(err, CodeInvalidInput) {
			t.Error("expected IsCode to see through fmt wrapping")
		}
	})

	t.Run("AddContext", func(t *testing.T) {
		err := AddContext(New(CodeNotBuilt, "stage pending"), CtxOperation, "matrix")
		var de *DomainError
		if !errors.As(err, &de) {
			t.Fatalf("expected DomainError, got %T", err)
		}
		if de.Context[CtxOperation] != "matrix" {
			t.Errorf("expected operation context, got %v", de.Context)
		}

		plain := AddContext(errors.New("boom"), CtxPath, "/tmp/x")
		if !IsCode(plain, CodeInternal) {
			t.Errorf("expected plain error to be wrapped as internal, got %v", plain)
		}
	})
}
