// Package indicator surfaces loop notices on the console and, optionally,
// as Hyprland or desktop notifications.
package indicator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rbright/promptvoice/internal/automation"
	"github.com/rbright/promptvoice/internal/config"
	"github.com/rbright/promptvoice/internal/hypr"
)

const (
	infoTimeout         = 1500 * time.Millisecond
	defaultErrorTimeout = 1200 * time.Millisecond
	focusColor          = "rgb(a6e3a1)"
	errorColor          = "rgb(f38ba8)"
)

// style is how one notice kind is drawn on either notification surface.
type style struct {
	icon    hypr.Icon
	timeout time.Duration
	color   string
	urgency urgency
}

var (
	infoStyle    = style{icon: hypr.IconInfo, timeout: infoTimeout, color: hypr.DefaultColor, urgency: urgencyNormal}
	focusStyle   = style{icon: hypr.IconInfo, timeout: infoTimeout, color: focusColor, urgency: urgencyLow}
	waitingStyle = style{icon: hypr.IconWarning, timeout: infoTimeout, color: hypr.DefaultColor, urgency: urgencyLow}
)

// Notifier implements automation.Notifier.
type Notifier struct {
	cfg      config.IndicatorConfig
	console  *log.Logger
	logger   *slog.Logger
	messages messages

	mu                    sync.Mutex
	desktopNotificationID uint32
}

// New creates a notifier. A nil console discards console output.
func New(cfg config.IndicatorConfig, console *log.Logger, logger *slog.Logger) *Notifier {
	if console == nil {
		console = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Notifier{
		cfg:      cfg,
		console:  console,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
	}
}

// Notify renders one loop notice.
func (n *Notifier) Notify(ctx context.Context, notice automation.Notice) {
	switch notice.Kind {
	case automation.NoticeStarted:
		n.Info(ctx, n.messages.started)
	case automation.NoticeFocusAcquired:
		n.console.Info(n.messages.focusAcquired)
		n.show(ctx, focusStyle, n.messages.focusAcquired)
	case automation.NoticeWaitingForFocus:
		n.console.Info(n.messages.waiting)
		n.show(ctx, waitingStyle, n.messages.waiting)
	case automation.NoticeNewPhrase:
		n.console.Info(n.messages.newPhrase, "text", notice.Text)
	case automation.NoticeSpeakFailed:
		text := n.messages.speakFailed
		if notice.Err != nil {
			n.console.Error(text, "text", notice.Text, "err", notice.Err)
			text += ": " + notice.Err.Error()
		} else {
			n.console.Error(text, "text", notice.Text)
		}
		n.Error(ctx, text)
	case automation.NoticeClickFailed:
		text := fmt.Sprintf("%s (%s)", n.messages.clickFailed, notice.Action)
		if notice.Err != nil {
			n.console.Error(n.messages.clickFailed, "action", notice.Action, "err", notice.Err)
			text += ": " + notice.Err.Error()
		} else {
			n.console.Error(n.messages.clickFailed, "action", notice.Action)
		}
		n.Error(ctx, text)
	default:
		n.console.Warn("unknown notice", "kind", string(notice.Kind))
	}
}

// Info prints an informational line and mirrors it to the notification surface.
func (n *Notifier) Info(ctx context.Context, text string) {
	n.console.Info(text)
	n.show(ctx, infoStyle, text)
}

// Warn prints a warning line without raising a notification.
func (n *Notifier) Warn(_ context.Context, text string) {
	n.console.Warn(text)
}

// Error shows an error-state notification. The console line is the caller's.
func (n *Notifier) Error(ctx context.Context, text string) {
	if text == "" {
		text = n.messages.errorText
	}
	timeout := time.Duration(n.cfg.ErrorTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultErrorTimeout
	}
	n.show(ctx, style{icon: hypr.IconError, timeout: timeout, color: errorColor, urgency: urgencyCritical}, text)
}

// Hide dismisses the active notification.
func (n *Notifier) Hide(ctx context.Context) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, n.dismiss)
}

func (n *Notifier) show(ctx context.Context, st style, text string) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		if n.desktop() {
			return n.notifyDesktop(ctx, int(st.timeout.Milliseconds()), text, st.urgency)
		}
		return hypr.Notify(ctx, hypr.Notification{Icon: st.icon, Timeout: st.timeout, Color: st.color, Text: text})
	})
}

func (n *Notifier) desktop() bool {
	return strings.EqualFold(strings.TrimSpace(n.cfg.Backend), "desktop")
}

// dismiss removes indicator output from the configured backend.
func (n *Notifier) dismiss(ctx context.Context) error {
	if n.desktop() {
		return n.dismissDesktop(ctx)
	}
	return hypr.DismissNotify(ctx)
}

// notifyDesktop sends a replaceable desktop notification and stores its ID.
func (n *Notifier) notifyDesktop(ctx context.Context, timeoutMS int, text string, level urgency) error {
	n.mu.Lock()
	replaceID := n.desktopNotificationID
	n.mu.Unlock()

	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = "promptvoice"
	}

	id, err := desktopNotify(ctx, desktopNotification{
		appName:   appName,
		replaceID: replaceID,
		summary:   text,
		timeoutMS: timeoutMS,
		urgency:   level,
	})
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.desktopNotificationID = id
	n.mu.Unlock()
	return nil
}

// dismissDesktop closes the current desktop notification ID when present.
func (n *Notifier) dismissDesktop(ctx context.Context) error {
	n.mu.Lock()
	id := n.desktopNotificationID
	n.desktopNotificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes a notification command with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil && n.logger != nil {
		n.logger.Debug("indicator dispatch failed", "error", err.Error())
	}
}
