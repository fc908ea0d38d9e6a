// Package speech defines the speech backend contract, the backend registry,
// and the local-process and network backend variants.
package speech

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rbright/promptvoice/internal/audio"
)

// Backend speaks text aloud.
type Backend interface {
	// Name returns the registry name the backend was created under.
	Name() string
	// Speak starts speaking text and returns once speech has begun.
	Speak(ctx context.Context, text string) error
	// Stop cancels in-flight speech. It is a no-op when idle.
	Stop()
	// IsSpeaking reports whether a local utterance is still running. Network
	// backends always report false.
	IsSpeaking() bool
	// Voices lists voice identifiers, empty on failure.
	Voices(ctx context.Context) []string
}

// Deps carries shared collaborators into backend constructors.
type Deps struct {
	Logger     *slog.Logger
	Player     audio.Player
	HTTPClient *http.Client
	GRPCDump   bool
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

func (d Deps) httpClient() *http.Client {
	if d.HTTPClient == nil {
		return http.DefaultClient
	}
	return d.HTTPClient
}

// NotFoundError reports a backend name absent from the registry.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unknown speech backend %q (available: %s)", e.Name, strings.Join(Names(), ", "))
}

// CredentialsError reports missing credentials for a backend that needs them.
type CredentialsError struct {
	Backend string
	Missing []string
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("speech backend %q is missing credentials: %s", e.Backend, strings.Join(e.Missing, ", "))
}
