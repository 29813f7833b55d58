package core

import (
	"errors"
	"testing"
)

// TestNewRunIDUniqueness tests that NewRunID generates unique identifiers
func TestNewRunIDUniqueness(t *testing.T) {
	const numIDs = 5000

	ids := make(map[RunID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewRunID()
		if ID(id).IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}
}

// TestParseRunID tests run ID parsing
func TestParseRunID(t *testing.T) {
	valid := NewRunID().String()

	tests := []struct {
		input    string
		expected RunID
		hasError bool
	}{
		{valid, RunID(valid), false},
		{"run-123", "", true},
		{"", "", true},
		{"   ", "", true},
	}

	for _, test := range tests {
		result, err := ParseRunID(test.input)
		if test.hasError && err == nil {
			t.Errorf("Expected error for input '%s', but got none", test.input)
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

func TestErrorWrapping(t *testing.T) {
	if !errors.Is(NewInvalidInputError("row count %d < 2", 1), ErrInvalidInput) {
		t.Error("invalid input error should wrap ErrInvalidInput")
	}
	if !errors.Is(NewMalformedResultError("p-value %v outside [0, 1]", 1.5), ErrMalformedResult) {
		t.Error("malformed result error should wrap ErrMalformedResult")
	}
	if !errors.Is(NewMissingPositionError("var9"), ErrMissingPosition) {
		t.Error("missing position error should wrap ErrMissingPosition")
	}

	err := NewRunNotFoundError(RunID("abc"))
	if !errors.Is(err, ErrRunNotFound) || !IsNotFoundError(err) {
		t.Errorf("%v should wrap ErrRunNotFound and ErrNotFound", err)
	}
	if IsNotFoundError(ErrAssociationTest) {
		t.Error("association test failure is not a not-found error")
	}
}

func TestHashBuilderStable(t *testing.T) {
	build := func(a, b string) Hash {
		var h HashBuilder
		h.WriteString(a)
		h.WriteString(b)
		h.WriteFloat(0.5)
		h.WriteInt(3)
		return h.Sum()
	}

	if build("ab", "c") != build("ab", "c") {
		t.Error("identical input should hash identically")
	}
	if build("ab", "c") == build("a", "bc") {
		t.Error("length prefixing should separate field boundaries")
	}
}
