package ui

import (
	"errors"
	"os"
	"strings"
	"testing"
)

func TestRenderKeepsText(t *testing.T) {
	for _, render := range []func(string) string{
		RenderPass, RenderWarn, RenderFail, RenderAccent, RenderMuted, RenderBold,
	} {
		if got := render("✓ done"); !strings.Contains(got, "✓ done") {
			t.Errorf("rendered %q lost its text", got)
		}
	}
}

func TestRenderScore(t *testing.T) {
	for _, score := range []int{0, 29, 30, 49, 50, 60} {
		if got := RenderScore(score, "x"); !strings.Contains(got, "x") {
			t.Errorf("RenderScore(%d) = %q", score, got)
		}
	}
}

func TestConfirm_AssumeYes(t *testing.T) {
	if err := Confirm("Delete?", "", true); err != nil {
		t.Errorf("Confirm with assumeYes = %v", err)
	}
}

func TestConfirm_NonTerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	orig := os.Stdin
	os.Stdin = f
	defer func() { os.Stdin = orig }()

	err = Confirm("Delete?", "", false)
	if !errors.Is(err, ErrNotConfirmed) {
		t.Errorf("Confirm on non-terminal = %v, want ErrNotConfirmed", err)
	}
}
