package speech

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rbright/promptvoice/internal/audio"
	"github.com/rbright/promptvoice/internal/config"
)

const defaultRequestsPerMinute = 120

// synthesizer turns text into a mono s16le PCM stream.
type synthesizer interface {
	synthesize(ctx context.Context, text string) (pcm io.ReadCloser, sampleRate int, err error)
	voices(ctx context.Context) ([]string, error)
}

// streamBackend speaks through a remote synthesizer and local playback.
// A new Speak cancels the previous utterance's playback.
type streamBackend struct {
	name    string
	synth   synthesizer
	player  audio.Player
	limiter *rate.Limiter
	logger  *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	playback audio.Stream
}

func newStreamBackend(name string, cfg config.EngineConfig, synth synthesizer, deps Deps) (*streamBackend, error) {
	if deps.Player == nil {
		return nil, fmt.Errorf("speech backend %q requires an audio player", name)
	}

	perMinute := float64(defaultRequestsPerMinute)
	if v, ok := cfg.ExtraFloat("requests_per_minute"); ok && v > 0 {
		perMinute = v
	}

	return &streamBackend{
		name:    name,
		synth:   synth,
		player:  deps.Player,
		limiter: rate.NewLimiter(rate.Every(time.Duration(float64(time.Minute)/perMinute)), 2),
		logger:  deps.logger(),
	}, nil
}

func (b *streamBackend) Name() string {
	return b.name
}

// Speak returns once playback has started. Playback errors after that point
// are logged, not returned.
func (b *streamBackend) Speak(ctx context.Context, text string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s request limit: %w", b.name, err)
	}
	b.Stop()

	playCtx, cancel := context.WithCancel(ctx)
	started := time.Now()

	pcm, sampleRate, err := b.synth.synthesize(playCtx, text)
	if err != nil {
		cancel()
		return fmt.Errorf("%s synthesize: %w", b.name, err)
	}

	playback, err := b.player.Play(playCtx, pcm, sampleRate)
	if err != nil {
		_ = pcm.Close()
		cancel()
		return fmt.Errorf("%s playback: %w", b.name, err)
	}

	b.mu.Lock()
	b.cancel = cancel
	b.playback = playback
	b.mu.Unlock()

	b.logger.Debug("speech playback started", "backend", b.name, "latency_ms", time.Since(started).Milliseconds())

	go func() {
		defer cancel()
		defer pcm.Close()
		if err := playback.Wait(); err != nil {
			b.logger.Warn("speech playback failed", "backend", b.name, "error", err.Error())
		}
	}()

	return nil
}

func (b *streamBackend) Stop() {
	b.mu.Lock()
	cancel, playback := b.cancel, b.playback
	b.cancel, b.playback = nil, nil
	b.mu.Unlock()

	if playback != nil {
		playback.Stop()
	}
	if cancel != nil {
		cancel()
	}
}

// Close stops playback and releases synthesizer resources.
func (b *streamBackend) Close() error {
	b.Stop()
	if closer, ok := b.synth.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// IsSpeaking is always false; network playback completion is not tracked.
func (b *streamBackend) IsSpeaking() bool {
	return false
}

// WaitIdle blocks until the current utterance's playback ends or ctx is done.
func (b *streamBackend) WaitIdle(ctx context.Context) error {
	b.mu.Lock()
	playback := b.playback
	b.mu.Unlock()
	if playback == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- playback.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *streamBackend) Voices(ctx context.Context) []string {
	voices, err := b.synth.voices(ctx)
	if err != nil {
		b.logger.Warn("list voices failed", "backend", b.name, "error", err.Error())
		return []string{}
	}
	return voices
}
