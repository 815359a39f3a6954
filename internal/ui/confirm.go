package ui

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
)

// ErrNotConfirmed is returned when the user declines a confirmation.
var ErrNotConfirmed = errors.New("not confirmed")

// Confirm asks a yes/no question. assumeYes skips the prompt. When stdin is
// not a terminal there is nobody to ask, so Confirm refuses and tells the
// caller to pass --yes.
func Confirm(title, description string, assumeYes bool) error {
	if assumeYes {
		return nil
	}
	if !IsTerminal(os.Stdin) {
		return fmt.Errorf("%w: stdin is not a terminal, pass --yes to proceed", ErrNotConfirmed)
	}

	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrNotConfirmed
		}
		return fmt.Errorf("failed to prompt: %w", err)
	}
	if !ok {
		return ErrNotConfirmed
	}
	return nil
}
