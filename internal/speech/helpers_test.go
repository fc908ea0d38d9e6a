package speech

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rbright/promptvoice/internal/audio"
	"github.com/rbright/promptvoice/internal/config"
	"github.com/stretchr/testify/require"
)

func installSpeechStub(t *testing.T, name string, body string) string {
	t.Helper()

	dir := t.TempDir()
	logPath := filepath.Join(dir, "calls.log")
	script := "#!/usr/bin/env bash\nset -euo pipefail\n" + body + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
	t.Setenv("SPEECH_LOG", logPath)
	return logPath
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func engineConfig(backend string) config.EngineConfig {
	engine := config.Default().Engine
	engine.Backend = backend
	return engine
}

type fakeStream struct {
	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

func (s *fakeStream) Wait() error {
	<-s.done
	return nil
}

func (s *fakeStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		select {
		case <-s.done:
		default:
			close(s.done)
		}
	}
}

// finish ends playback as if the stream had drained.
func (s *fakeStream) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *fakeStream) wasStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakePlayer struct {
	mu      sync.Mutex
	played  [][]byte
	rates   []int
	streams []*fakeStream
	err     error
}

func (p *fakePlayer) Play(_ context.Context, pcm io.Reader, sampleRate int) (audio.Stream, error) {
	if p.err != nil {
		return nil, p.err
	}
	data, err := io.ReadAll(pcm)
	if err != nil {
		return nil, err
	}

	stream := &fakeStream{done: make(chan struct{})}
	p.mu.Lock()
	p.played = append(p.played, data)
	p.rates = append(p.rates, sampleRate)
	p.streams = append(p.streams, stream)
	p.mu.Unlock()
	return stream, nil
}

func (p *fakePlayer) snapshot() ([][]byte, []int, []*fakeStream) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.played...), append([]int(nil), p.rates...), append([]*fakeStream(nil), p.streams...)
}
