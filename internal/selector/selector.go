package selector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ksyasuda/jimaku-dl/internal/apperrors"
	"github.com/ksyasuda/jimaku-dl/internal/config"
)

var (
	commandContext = exec.CommandContext
	lookPath       = exec.LookPath
)

// Selector presents an interactive menu and reports which options were picked.
type Selector interface {
	// Menu shows the options and returns the indices of the chosen ones.
	// With multi set, several options may be selected at once.
	Menu(ctx context.Context, prompt string, options []string, multi bool) ([]int, error)
}

// Option configures the fzf selector.
type Option func(*FzfSelector)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(s *FzfSelector) {
		if binary != "" {
			s.binary = binary
		}
	}
}

// FzfSelector wraps the fzf command-line fuzzy finder.
type FzfSelector struct {
	binary string
}

// NewFzfSelector constructs a selector using defaults.
func NewFzfSelector(opts ...Option) *FzfSelector {
	s := &FzfSelector{binary: "fzf"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Menu runs fzf over the options. Each option is fed with a hidden index
// column so duplicates still map back to distinct entries.
func (s *FzfSelector) Menu(ctx context.Context, prompt string, options []string, multi bool) ([]int, error) {
	if len(options) == 0 {
		return nil, &apperrors.ErrNoSelection{Prompt: prompt}
	}

	if _, err := lookPath(s.binary); err != nil {
		return nil, &apperrors.ErrSelectorUnavailable{Binary: s.binary}
	}

	args := []string{
		"--prompt", prompt + "> ",
		"--delimiter", "\t",
		"--with-nth", "2..",
	}
	if multi {
		args = append(args, "--multi")
	}

	var input strings.Builder
	for i, option := range options {
		fmt.Fprintf(&input, "%d\t%s\n", i, option)
	}

	var output bytes.Buffer
	cmd := commandContext(ctx, s.binary, args...)
	cmd.Stdin = strings.NewReader(input.String())
	cmd.Stdout = &output
	// fzf draws its interface on the terminal via stderr
	cmd.Stderr = os.Stderr

	logger := config.GetLogger()
	logger.Debug().
		Str("binary", s.binary).
		Int("options", len(options)).
		Bool("multi", multi).
		Msg("Launching interactive selector")

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// 1 means no match, 130 means interrupted with ctrl-c or esc
			switch exitErr.ExitCode() {
			case 1, 130:
				return nil, &apperrors.ErrNoSelection{Prompt: prompt}
			}
		}
		return nil, fmt.Errorf("selector %s failed: %w", s.binary, err)
	}

	return parseSelection(output.String(), len(options), prompt)
}

// parseSelection maps fzf output lines back to option indices
func parseSelection(output string, optionCount int, prompt string) ([]int, error) {
	var indices []int
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line == "" {
			continue
		}
		field, _, _ := strings.Cut(line, "\t")
		index, err := strconv.Atoi(field)
		if err != nil || index < 0 || index >= optionCount {
			return nil, fmt.Errorf("unexpected selector output line: %q", line)
		}
		indices = append(indices, index)
	}

	if len(indices) == 0 {
		return nil, &apperrors.ErrNoSelection{Prompt: prompt}
	}
	return indices, nil
}
