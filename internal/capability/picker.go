package capability

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/starford/docvault/internal/apperr"
)

// Picker asks the user for a vault folder. Implementations return
// apperr.ErrSelectionCancelled (or an empty path) when the user aborts.
type Picker interface {
	Pick(ctx context.Context) (string, error)
}

// PickerFunc adapts a function to Picker.
type PickerFunc func(ctx context.Context) (string, error)

// Pick calls f.
func (f PickerFunc) Pick(ctx context.Context) (string, error) { return f(ctx) }

// StaticPicker returns a fixed path, as chosen through a flag, config or request body.
type StaticPicker string

// Pick returns the path.
func (p StaticPicker) Pick(context.Context) (string, error) {
	return string(p), nil
}

// PromptPicker reads a folder path from an interactive terminal.
type PromptPicker struct {
	In  io.Reader
	Out io.Writer
}

// Pick prints a prompt and reads one line. EOF or a blank line cancels.
func (p *PromptPicker) Pick(ctx context.Context) (string, error) {
	if p.Out != nil {
		_, _ = fmt.Fprint(p.Out, "Vault folder: ")
	}
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		ch <- result{line, err}
	}()
	select {
	case <-ctx.Done():
		return "", apperr.ErrSelectionCancelled
	case r := <-ch:
		line := strings.TrimSpace(r.line)
		if line == "" {
			return "", apperr.ErrSelectionCancelled
		}
		if r.err != nil && r.err != io.EOF {
			return "", fmt.Errorf("capability: read prompt: %w", r.err)
		}
		return line, nil
	}
}
