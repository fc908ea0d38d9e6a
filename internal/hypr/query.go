package hypr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ActiveWindow is the subset of `hyprctl -j activewindow` used for focus
// gating and shortcut targeting.
type ActiveWindow struct {
	Address      string `json:"address"`
	Class        string `json:"class"`
	InitialClass string `json:"initialClass"`
	Title        string `json:"title"`
}

// ErrNoActiveWindow is returned when no window currently has focus.
var ErrNoActiveWindow = errors.New("no active window")

// QueryActiveWindow asks hyprctl for the focused window.
func QueryActiveWindow(ctx context.Context) (ActiveWindow, error) {
	output, err := runHyprctlOutput(ctx, "-j", "activewindow")
	if err != nil {
		return ActiveWindow{}, err
	}

	// hyprctl prints "{}" or "Invalid" when nothing is focused.
	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" || trimmed == "{}" || !strings.HasPrefix(trimmed, "{") {
		return ActiveWindow{}, ErrNoActiveWindow
	}

	var window ActiveWindow
	if err := json.Unmarshal([]byte(trimmed), &window); err != nil {
		return ActiveWindow{}, fmt.Errorf("decode hyprctl activewindow json: %w", err)
	}
	window.Address = strings.TrimSpace(window.Address)
	window.Class = strings.TrimSpace(window.Class)
	window.InitialClass = strings.TrimSpace(window.InitialClass)
	window.Title = strings.TrimSpace(window.Title)
	if window.Address == "" {
		return ActiveWindow{}, ErrNoActiveWindow
	}
	return window, nil
}

// SendShortcut dispatches a literal sendshortcut payload such as
// "CTRL,Return,address:0xabc".
func SendShortcut(ctx context.Context, shortcut string) error {
	shortcut = strings.TrimSpace(shortcut)
	if shortcut == "" {
		return fmt.Errorf("sendshortcut requires a non-empty payload")
	}
	return runHyprctl(ctx, "--quiet", "dispatch", "sendshortcut", shortcut)
}

// Icon selects the glyph hyprctl notify draws.
type Icon int

const (
	IconWarning Icon = iota
	IconInfo
	IconHint
	IconError
	IconConfused
	IconOK
)

// DefaultColor is used when a Notification carries no color.
const DefaultColor = "rgb(89b4fa)"

// Notification is one `hyprctl dispatch notify` call.
type Notification struct {
	Icon    Icon
	Timeout time.Duration
	Color   string
	Text    string
}

// Notify shows n as a Hyprland notification.
func Notify(ctx context.Context, n Notification) error {
	color := strings.TrimSpace(n.Color)
	if color == "" {
		color = DefaultColor
	}
	return runHyprctl(
		ctx,
		"--quiet",
		"dispatch",
		"notify",
		strconv.Itoa(int(n.Icon)),
		strconv.FormatInt(n.Timeout.Milliseconds(), 10),
		color,
		n.Text,
	)
}

// DismissNotify dismisses active Hyprland notifications.
func DismissNotify(ctx context.Context) error {
	return runHyprctl(ctx, "--quiet", "dispatch", "dismissnotify")
}
