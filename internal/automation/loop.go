// Package automation runs the capture, compare, speak, sleep narration loop.
package automation

import (
	"context"
	"log/slog"
	"time"

	"github.com/rbright/promptvoice/internal/config"
	"github.com/rbright/promptvoice/internal/fsm"
)

// Source reads the current on-screen phrase. It returns "" when the target
// window is not focused, no text is visible, or capture failed.
type Source interface {
	Capture(ctx context.Context, region config.CaptureRegion) string
}

// Speaker is the loop-facing subset of a speech backend.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Stop()
}

// Clicker triggers named UI actions around each spoken phrase.
type Clicker interface {
	Click(ctx context.Context, action string) error
}

// Click actions driven by the loop when a Clicker is attached.
const (
	ActionRecord   = "record"
	ActionContinue = "continue"
)

// idleWaiter is implemented by speakers whose playback outlives Speak.
type idleWaiter interface {
	WaitIdle(ctx context.Context) error
}

// speakingReporter is implemented by speakers that expose playback state.
type speakingReporter interface {
	IsSpeaking() bool
}

const playbackPollInterval = 50 * time.Millisecond

// NoticeKind classifies operator-facing loop notices.
type NoticeKind string

const (
	NoticeStarted         NoticeKind = "started"
	NoticeFocusAcquired   NoticeKind = "focus_acquired"
	NoticeWaitingForFocus NoticeKind = "waiting_for_focus"
	NoticeNewPhrase       NoticeKind = "new_phrase"
	NoticeSpeakFailed     NoticeKind = "speak_failed"
	NoticeClickFailed     NoticeKind = "click_failed"
)

// Notice is one loop event surfaced to the operator. Action is set for
// click failures.
type Notice struct {
	Kind   NoticeKind
	Text   string
	Action string
	Err    error
}

// Notifier receives loop notices.
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

// NotifierFunc adapts a function into a Notifier.
type NotifierFunc func(context.Context, Notice)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, notice Notice) {
	f(ctx, notice)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notice) {}

// Result summarizes one Run invocation.
type Result struct {
	Cycles        int
	Spoken        int
	SpeakFailures int
	ClickFailures int
	LastText      string
}

// State is the loop's per-run memory. It lives in Run's frame only.
type State struct {
	LastText string
	Focus    fsm.State
	entered  bool
}

// Loop polls a Source and narrates phrase changes through a Speaker.
type Loop struct {
	source   Source
	speaker  Speaker
	notifier Notifier
	region   config.CaptureRegion
	timing   config.TimingConfig
	logger   *slog.Logger
	clicker  Clicker
}

// New constructs a loop. A nil notifier or logger discards output.
func New(source Source, speaker Speaker, notifier Notifier, region config.CaptureRegion, timing config.TimingConfig, logger *slog.Logger) *Loop {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loop{
		source:   source,
		speaker:  speaker,
		notifier: notifier,
		region:   region,
		timing:   timing,
		logger:   logger,
	}
}

// WithClicker attaches a clicker that presses record before each phrase is
// spoken and continue once playback finishes. A nil clicker disables it.
func (l *Loop) WithClicker(clicker Clicker) *Loop {
	l.clicker = clicker
	return l
}

// Run polls until ctx is cancelled, then stops any in-flight speech.
func (l *Loop) Run(ctx context.Context) Result {
	var result Result
	state := State{Focus: fsm.StateUnfocused}

	l.notifier.Notify(ctx, Notice{Kind: NoticeStarted})
	l.logger.Info("automation loop started",
		"region_x", l.region.X,
		"region_y", l.region.Y,
		"region_width", l.region.Width,
		"region_height", l.region.Height,
	)

	for {
		if ctx.Err() != nil {
			l.speaker.Stop()
			result.LastText = state.LastText
			l.logger.Info("automation loop stopped",
				"cycles", result.Cycles,
				"spoken", result.Spoken,
				"speak_failures", result.SpeakFailures,
				"click_failures", result.ClickFailures,
			)
			return result
		}

		text := l.source.Capture(ctx, l.region)
		state = l.step(ctx, state, text, &result)
		result.Cycles++

		delay := l.timing.CheckInterval
		if text == "" {
			delay = l.timing.RetryDelay
		}
		sleep(ctx, delay)
	}
}

// step applies one capture result to state and returns the next state.
func (l *Loop) step(ctx context.Context, state State, text string, result *Result) State {
	previous := state.Focus
	next, err := fsm.Transition(previous, fsm.EventFor(text))
	if err != nil {
		l.logger.Error("focus transition failed", "state", string(previous), "error", err.Error())
		next = fsm.StateUnfocused
	}
	state.Focus = next

	switch {
	case next == fsm.StateFocused && previous != fsm.StateFocused:
		l.notifier.Notify(ctx, Notice{Kind: NoticeFocusAcquired})
	case next == fsm.StateUnfocused && (previous == fsm.StateFocused || !state.entered):
		l.notifier.Notify(ctx, Notice{Kind: NoticeWaitingForFocus})
	}
	state.entered = true

	if text == "" || text == state.LastText {
		return state
	}

	state.LastText = text
	l.notifier.Notify(ctx, Notice{Kind: NoticeNewPhrase, Text: text})
	l.logger.Info("phrase detected", "chars", len(text))

	if !l.click(ctx, ActionRecord, text, result) {
		return state
	}

	if err := l.speaker.Speak(ctx, text); err != nil {
		result.SpeakFailures++
		l.logger.Error("speak failed", "error", err.Error())
		l.notifier.Notify(ctx, Notice{Kind: NoticeSpeakFailed, Text: text, Err: err})
		return state
	}
	result.Spoken++

	if l.clicker != nil {
		l.waitForPlayback(ctx)
		l.click(ctx, ActionContinue, text, result)
	}
	return state
}

// click runs action when a clicker is attached. It reports false after a
// failure so the caller can skip the rest of the cycle.
func (l *Loop) click(ctx context.Context, action string, text string, result *Result) bool {
	if l.clicker == nil {
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	if err := l.clicker.Click(ctx, action); err != nil {
		result.ClickFailures++
		l.logger.Error("click failed", "action", action, "error", err.Error())
		l.notifier.Notify(ctx, Notice{Kind: NoticeClickFailed, Text: text, Action: action, Err: err})
		return false
	}
	return true
}

// waitForPlayback blocks until the speaker has finished the current phrase
// or ctx is done.
func (l *Loop) waitForPlayback(ctx context.Context) {
	switch speaker := l.speaker.(type) {
	case idleWaiter:
		if err := speaker.WaitIdle(ctx); err != nil && ctx.Err() == nil {
			l.logger.Warn("wait for playback failed", "error", err.Error())
		}
	case speakingReporter:
		for speaker.IsSpeaking() {
			sleep(ctx, playbackPollInterval)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
