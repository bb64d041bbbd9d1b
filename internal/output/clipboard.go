// Package output delivers finished transcripts to the focused application
// through the clipboard and a simulated paste.
package output

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/atotto/clipboard"
)

// systemClipboard writes through the platform clipboard when no command is set.
var systemClipboard = func(text string) error {
	if clipboard.Unsupported {
		return errors.New("no clipboard command configured and no system clipboard available")
	}
	return clipboard.WriteAll(text)
}

func writeClipboard(ctx context.Context, argv []string, text string) error {
	if len(argv) == 0 {
		return systemClipboard(text)
	}
	return runCommandWithInput(ctx, argv, text)
}

// runCommandWithInput executes argv with input on stdin. Output is kept only
// to annotate failures.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(input)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	if detail := strings.TrimSpace(string(out)); detail != "" {
		return fmt.Errorf("run %s: %w (%s)", argv[0], err, detail)
	}
	return fmt.Errorf("run %s: %w", argv[0], err)
}
