package syncer

import (
	"errors"
	"fmt"
	"testing"
)

func TestTerminalClassification(t *testing.T) {
	base := errors.New("rejected")

	if !IsTerminal(Terminal(base)) {
		t.Error("Expected Terminal-wrapped error to be terminal")
	}
	if IsTerminal(base) {
		t.Error("Expected plain error to be transient")
	}
	if IsTerminal(nil) {
		t.Error("Expected nil to not be terminal")
	}
	if Terminal(nil) != nil {
		t.Error("Expected Terminal(nil) to be nil")
	}
}

func TestTerminalSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("delivering order: %w", Terminal(errors.New("unknown course")))
	if !IsTerminal(err) {
		t.Error("Expected terminal marker to survive fmt.Errorf wrapping")
	}
}

func TestTerminalUnwrap(t *testing.T) {
	base := errors.New("duplicate score")
	if !errors.Is(Terminal(base), base) {
		t.Error("Expected Terminal to unwrap to the original error")
	}
}
