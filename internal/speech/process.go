package speech

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

const stopGrace = 500 * time.Millisecond

// processBackend speaks by launching one child process per utterance.
type processBackend struct {
	name    string
	binary  string
	argv    func(text string) []string
	voiceFn func(ctx context.Context) ([]string, error)
	logger  *slog.Logger

	mu      sync.Mutex
	current *exec.Cmd
	done    chan struct{}
}

func (b *processBackend) Name() string {
	return b.name
}

// Binary is the executable launched per utterance.
func (b *processBackend) Binary() string {
	return b.binary
}

// Speak terminates any prior utterance, then starts a new child without
// waiting for it to finish.
func (b *processBackend) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.Stop()

	cmd := exec.Command(b.binary, b.argv(text)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", b.binary, err)
	}

	done := make(chan struct{})
	b.mu.Lock()
	b.current = cmd
	b.done = done
	b.mu.Unlock()

	go func() {
		defer close(done)
		if err := cmd.Wait(); err != nil && !terminatedBySignal(cmd) {
			b.logger.Warn("speech process failed",
				"backend", b.name,
				"error", err.Error(),
				"stderr", strings.TrimSpace(stderr.String()),
			)
		}
	}()

	return nil
}

// Stop sends SIGTERM to the running child and kills it after a grace period.
func (b *processBackend) Stop() {
	b.mu.Lock()
	cmd, done := b.current, b.done
	b.current, b.done = nil, nil
	b.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}
	select {
	case <-done:
		return
	default:
	}

	_ = cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-done:
	case <-time.After(stopGrace):
		_ = cmd.Process.Kill()
		<-done
	}
}

func (b *processBackend) IsSpeaking() bool {
	b.mu.Lock()
	done := b.done
	b.mu.Unlock()

	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (b *processBackend) Voices(ctx context.Context) []string {
	if b.voiceFn == nil {
		return []string{}
	}
	voices, err := b.voiceFn(ctx)
	if err != nil {
		b.logger.Warn("list voices failed", "backend", b.name, "error", err.Error())
		return []string{}
	}
	return voices
}

// pid reports the running child's process id, or 0 when idle.
func (b *processBackend) pid() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil || b.current.Process == nil {
		return 0
	}
	return b.current.Process.Pid
}

func terminatedBySignal(cmd *exec.Cmd) bool {
	if cmd.ProcessState == nil {
		return false
	}
	status, ok := cmd.ProcessState.Sys().(syscall.WaitStatus)
	return ok && status.Signaled()
}

func runOutput(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(output))
		if msg == "" {
			return "", fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
		}
		return "", fmt.Errorf("%s %s: %w (%s)", name, strings.Join(args, " "), err, msg)
	}
	return string(output), nil
}
