package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
)

// Player plays mono s16le PCM streams on the default output.
type Player interface {
	Play(ctx context.Context, pcm io.Reader, sampleRate int) (Stream, error)
}

// Stream is one in-flight playback.
type Stream interface {
	// Wait blocks until playback has ended.
	Wait() error
	// Stop ends playback early.
	Stop()
}

// Playback is one in-flight Pulse PCM stream.
type Playback struct {
	source *pcmSource
	done   chan struct{}

	stopOnce sync.Once
	err      error
}

// Wait blocks until the stream has drained or been stopped.
func (p *Playback) Wait() error {
	<-p.done
	return p.err
}

// Done is closed when playback has ended.
func (p *Playback) Done() <-chan struct{} {
	return p.done
}

// Stop ends playback after the already-buffered audio. It is safe to call
// more than once.
func (p *Playback) Stop() {
	p.stopOnce.Do(func() {
		p.source.stop()
	})
}

// PulsePlayer opens one Pulse playback stream per Play call.
type PulsePlayer struct {
	MediaName string
}

// NewPlayer returns a Player on the local Pulse server.
func NewPlayer(mediaName string) *PulsePlayer {
	return &PulsePlayer{MediaName: mediaName}
}

// Play starts streaming pcm and returns once the stream is running. The
// stream ends at EOF, on Stop, or when ctx is done.
func (p *PulsePlayer) Play(ctx context.Context, pcm io.Reader, sampleRate int) (Stream, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}

	source := newPCMSource(pcm)
	stream, err := client.NewPlayback(
		pulse.Int16Reader(source.read),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName(p.MediaName),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create pulse playback stream: %w", err)
	}

	playback := &Playback{source: source, done: make(chan struct{})}
	stream.Start()

	go func() {
		defer close(playback.done)
		defer client.Close()
		defer stream.Close()

		stream.Drain()
		if err := stream.Error(); err != nil {
			playback.err = fmt.Errorf("play pcm stream: %w", err)
			return
		}
		playback.err = source.err()
	}()

	go func() {
		select {
		case <-ctx.Done():
			playback.Stop()
		case <-playback.done:
		}
	}()

	return playback, nil
}

// pcmSource decodes little-endian s16 bytes from an io.Reader into samples.
type pcmSource struct {
	r io.Reader

	stopped atomic.Bool
	mu      sync.Mutex
	carry   []byte
	buf     []byte
	readErr error
}

func newPCMSource(r io.Reader) *pcmSource {
	return &pcmSource{r: r}
}

func (s *pcmSource) read(out []int16) (int, error) {
	if s.stopped.Load() {
		return 0, pulse.EndOfData
	}
	if len(out) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	need := len(out) * 2
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]
	n := copy(buf, s.carry)
	s.carry = s.carry[:0]

	var err error
	for n < 2 && err == nil {
		var m int
		m, err = s.r.Read(buf[n:])
		n += m
	}

	samples := n / 2
	for i := 0; i < samples; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}
	if n%2 == 1 {
		s.carry = append(s.carry, buf[n-1])
	}

	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.readErr = err
		}
		return samples, pulse.EndOfData
	}
	return samples, nil
}

func (s *pcmSource) stop() {
	s.stopped.Store(true)
	if closer, ok := s.r.(io.Closer); ok {
		_ = closer.Close()
	}
}

func (s *pcmSource) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped.Load() {
		return nil
	}
	return s.readErr
}
