package ui

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrCancelled is returned when the user aborts a prompt.
var ErrCancelled = errors.New("cancelled")

// ErrNoInteraction is returned when a prompt is required but the terminal
// is non-interactive. Hint describes how to bypass the prompt.
type ErrNoInteraction struct {
	Hint string
}

func (e *ErrNoInteraction) Error() string {
	if e.Hint == "" {
		return "interactive terminal required"
	}
	return "interactive terminal required (" + e.Hint + ")"
}

// RequireInteraction fails with *ErrNoInteraction when the terminal is
// non-interactive.
func RequireInteraction(bypassHint string) error {
	if IsNoInteraction() {
		return &ErrNoInteraction{Hint: bypassHint}
	}
	return nil
}

// Confirm asks the user a yes/no question on stderr and returns the answer.
// bypassHint describes how to skip the prompt in non-interactive mode (e.g.
// "use --yes to skip").
func Confirm(question string, bypassHint string) (bool, error) {
	if err := RequireInteraction(bypassHint); err != nil {
		return false, fmt.Errorf("confirmation required: %w", err)
	}

	fmt.Fprint(os.Stderr, AccentStyle.Render("?")+" "+question+" "+MutedStyle.Render("[y/N]")+" ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, ErrCancelled
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
