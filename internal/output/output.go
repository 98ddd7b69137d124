// Package output hands finished summaries to external programs: a viewer for
// the saved PDF and a clipboard for the text.
package output

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const copyTimeout = 2 * time.Second

// ErrNotConfigured reports an action whose command is unset.
var ErrNotConfigured = errors.New("command is not configured")

// Copy writes text to the stdin of argv, typically a clipboard tool.
func Copy(ctx context.Context, argv []string, text string) error {
	if len(argv) == 0 {
		return fmt.Errorf("copy summary: %w (set document.copy_cmd)", ErrNotConfigured)
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("copy summary: nothing to copy")
	}

	copyCtx, cancel := context.WithTimeout(ctx, copyTimeout)
	defer cancel()
	if err := runCommandWithInput(copyCtx, argv, text); err != nil {
		return fmt.Errorf("copy summary: %w", err)
	}
	return nil
}

// Open starts argv with path appended. The viewer keeps running after Open
// returns.
func Open(argv []string, path string) error {
	if len(argv) == 0 {
		return fmt.Errorf("open document: %w (set document.open_cmd)", ErrNotConfigured)
	}
	cmd := exec.Command(argv[0], append(append([]string{}, argv[1:]...), path)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open document %s: %w", path, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// runCommandWithInput executes argv and optionally writes input to stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := stdin.Write([]byte(input)); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}
