// Package clicker triggers named UI actions such as "record" or "continue"
// through Hyprland shortcuts or external commands.
package clicker

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/rbright/promptvoice/internal/config"
	"github.com/rbright/promptvoice/internal/hypr"
)

const commandTimeout = 10 * time.Second

// Clicker dispatches configured actions.
type Clicker struct {
	actions map[string]config.ClickAction
	logger  *slog.Logger
}

// New builds a clicker over the configured action table.
func New(cfg config.ClickerConfig, logger *slog.Logger) *Clicker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	actions := make(map[string]config.ClickAction, len(cfg.Actions))
	for name, action := range cfg.Actions {
		actions[strings.ToLower(strings.TrimSpace(name))] = action
	}
	return &Clicker{actions: actions, logger: logger}
}

// Actions lists configured action names in sorted order.
func (c *Clicker) Actions() []string {
	names := make([]string, 0, len(c.actions))
	for name := range c.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is configured.
func (c *Clicker) Has(name string) bool {
	_, ok := c.actions[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Click runs one named action.
func (c *Clicker) Click(ctx context.Context, name string) error {
	key := strings.ToLower(strings.TrimSpace(name))
	action, ok := c.actions[key]
	if !ok {
		available := "none configured"
		if names := c.Actions(); len(names) > 0 {
			available = strings.Join(names, ", ")
		}
		return fmt.Errorf("unknown click action %q (available: %s)", name, available)
	}

	started := time.Now()
	var err error
	switch {
	case strings.TrimSpace(action.Shortcut) != "":
		err = sendShortcut(ctx, action.Shortcut)
	case len(action.Cmd.Argv) > 0:
		err = runCommand(ctx, action.Cmd.Argv)
	default:
		err = fmt.Errorf("click action %q has no shortcut or cmd", key)
	}
	if err != nil {
		c.logger.Error("click action failed", "action", key, "error", err.Error())
		return err
	}

	c.logger.Info("click action dispatched", "action", key, "took_ms", time.Since(started).Milliseconds())
	return nil
}

func sendShortcut(ctx context.Context, shortcut string) error {
	window, err := activeWindowWithRetry(ctx, 5, 10*time.Millisecond)
	if err != nil {
		return err
	}

	payload, err := buildShortcut(shortcut, window.Address)
	if err != nil {
		return err
	}
	return hypr.SendShortcut(ctx, payload)
}

func buildShortcut(shortcut string, windowAddress string) (string, error) {
	shortcut = strings.TrimSpace(shortcut)
	if shortcut == "" {
		return "", fmt.Errorf("click shortcut cannot be empty")
	}

	address := strings.TrimSpace(windowAddress)
	if address == "" {
		return "", fmt.Errorf("active window address is required")
	}

	return fmt.Sprintf("%s,address:%s", shortcut, address), nil
}

func activeWindowWithRetry(ctx context.Context, attempts int, delay time.Duration) (hypr.ActiveWindow, error) {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		window, err := hypr.QueryActiveWindow(ctx)
		if err == nil {
			return window, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return hypr.ActiveWindow{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	return hypr.ActiveWindow{}, fmt.Errorf("resolve active window: %w", lastErr)
}

func runCommand(ctx context.Context, argv []string) error {
	runCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	out, err := exec.CommandContext(runCtx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return fmt.Errorf("run %s: %w", argv[0], err)
		}
		return fmt.Errorf("run %s: %w (%s)", argv[0], err, trimmed)
	}
	return nil
}
