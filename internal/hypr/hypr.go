// Package hypr wraps the hyprctl commands promptvoice depends on: active
// window lookup for focus gating, shortcut dispatch for UI actions, and
// notifications.
package hypr

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// WindowQuerier reports the currently focused window.
type WindowQuerier interface {
	ActiveWindow(ctx context.Context) (ActiveWindow, error)
}

// CLI is the hyprctl-backed WindowQuerier.
type CLI struct{}

func (CLI) ActiveWindow(ctx context.Context) (ActiveWindow, error) {
	return QueryActiveWindow(ctx)
}

// Matches reports whether the window's class or initial class equals class,
// ignoring case.
func (w ActiveWindow) Matches(class string) bool {
	class = strings.TrimSpace(class)
	if class == "" {
		return false
	}
	return strings.EqualFold(w.Class, class) || strings.EqualFold(w.InitialClass, class)
}

func runHyprctl(ctx context.Context, args ...string) error {
	_, err := runHyprctlOutput(ctx, args...)
	return err
}

func runHyprctlOutput(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "hyprctl", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return nil, fmt.Errorf("hyprctl %v failed: %w", args, err)
		}
		return nil, fmt.Errorf("hyprctl %v failed: %w (%s)", args, err, trimmed)
	}
	return out, nil
}
