package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rbright/promptvoice/internal/config"
	"github.com/stretchr/testify/require"
)

type staticSynth struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (s *staticSynth) synthesize(_ context.Context, text string) (io.ReadCloser, int, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	return io.NopCloser(strings.NewReader(text)), 22050, nil
}

func (s *staticSynth) voices(context.Context) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []string{"one"}, nil
}

func TestStreamBackendCancelsPriorPlayback(t *testing.T) {
	player := &fakePlayer{}
	synth := &staticSynth{}
	backend, err := newStreamBackend("test", engineConfig("test"), synth, Deps{Player: player})
	require.NoError(t, err)

	require.NoError(t, backend.Speak(context.Background(), "first"))
	require.NoError(t, backend.Speak(context.Background(), "second"))
	require.False(t, backend.IsSpeaking())

	played, rates, streams := player.snapshot()
	require.Equal(t, [][]byte{[]byte("first"), []byte("second")}, played)
	require.Equal(t, []int{22050, 22050}, rates)
	require.True(t, streams[0].wasStopped())
	require.False(t, streams[1].wasStopped())

	require.NoError(t, backend.Close())
	require.True(t, streams[1].wasStopped())
}

func TestStreamBackendWaitIdleReturnsWhenPlaybackEnds(t *testing.T) {
	player := &fakePlayer{}
	backend, err := newStreamBackend("test", engineConfig("test"), &staticSynth{}, Deps{Player: player})
	require.NoError(t, err)

	require.NoError(t, backend.WaitIdle(context.Background()))
	require.NoError(t, backend.Speak(context.Background(), "hello"))

	waited := make(chan error, 1)
	go func() { waited <- backend.WaitIdle(context.Background()) }()

	select {
	case <-waited:
		t.Fatal("WaitIdle returned before playback ended")
	case <-time.After(20 * time.Millisecond):
	}

	_, _, streams := player.snapshot()
	streams[0].finish()
	select {
	case err := <-waited:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitIdle did not return after playback ended")
	}
}

func TestStreamBackendWaitIdleHonorsCancellation(t *testing.T) {
	backend, err := newStreamBackend("test", engineConfig("test"), &staticSynth{}, Deps{Player: &fakePlayer{}})
	require.NoError(t, err)
	require.NoError(t, backend.Speak(context.Background(), "hello"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, backend.WaitIdle(ctx), context.Canceled)
	require.NoError(t, backend.Close())
}

func TestStreamBackendSynthesisFailure(t *testing.T) {
	backend, err := newStreamBackend("test", engineConfig("test"), &staticSynth{err: errors.New("401 unauthorized")}, Deps{Player: &fakePlayer{}})
	require.NoError(t, err)

	err = backend.Speak(context.Background(), "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "test synthesize")
	require.Empty(t, backend.Voices(context.Background()))
}

func TestStreamBackendPlaybackFailure(t *testing.T) {
	backend, err := newStreamBackend("test", engineConfig("test"), &staticSynth{}, Deps{Player: &fakePlayer{err: errors.New("no sink")}})
	require.NoError(t, err)

	err = backend.Speak(context.Background(), "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "playback")
}

func TestStreamBackendRespectsCanceledContext(t *testing.T) {
	synth := &staticSynth{}
	backend, err := newStreamBackend("test", engineConfig("test"), synth, Deps{Player: &fakePlayer{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, backend.Speak(ctx, "hello"))
	require.Empty(t, synth.texts)
}

func TestOpenAIBackendSpeaks(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/audio/speech", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte{1, 0, 2, 0})
	}))
	defer server.Close()

	engine := engineConfig("openai")
	engine.Voice = "Nova"
	engine.Credentials["openai"] = config.Credential{APIKey: "sk-test", Endpoint: server.URL}
	player := &fakePlayer{}

	backend, err := Create("openai", engine, Deps{Player: player, HTTPClient: server.Client()})
	require.NoError(t, err)
	require.NoError(t, backend.Speak(context.Background(), "Please read this"))

	require.Equal(t, "Please read this", body["input"])
	require.Equal(t, "tts-1", body["model"])
	require.Equal(t, "nova", body["voice"])
	require.Equal(t, "pcm", body["response_format"])
	require.Equal(t, 1.0, body["speed"])

	played, rates, _ := player.snapshot()
	require.Equal(t, [][]byte{{1, 0, 2, 0}}, played)
	require.Equal(t, []int{openAISampleRate}, rates)
	require.Contains(t, backend.Voices(context.Background()), "shimmer")
}

func TestElevenLabsBackendStreamsAudio(t *testing.T) {
	var received []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/voices" {
			require.Equal(t, "el-key", r.Header.Get("xi-api-key"))
			_, _ = w.Write([]byte(`{"voices":[{"voice_id":"abc","name":"Rachel"},{"voice_id":"def","name":"Adam"}]}`))
			return
		}

		require.Equal(t, "/v1/text-to-speech/voice-1/stream-input", r.URL.Path)
		require.Equal(t, "eleven_flash_v2_5", r.URL.Query().Get("model_id"))
		require.Equal(t, "pcm_16000", r.URL.Query().Get("output_format"))

		conn, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		defer conn.CloseNow()

		for i := 0; i < 3; i++ {
			_, msg, err := conn.Read(r.Context())
			require.NoError(t, err)
			var decoded map[string]any
			require.NoError(t, json.Unmarshal(msg, &decoded))
			received = append(received, decoded)
		}

		for _, chunk := range [][]byte{{1, 0}, {2, 0}} {
			payload, _ := json.Marshal(map[string]any{"audio": base64.StdEncoding.EncodeToString(chunk), "isFinal": false})
			require.NoError(t, conn.Write(r.Context(), websocket.MessageText, payload))
		}
		require.NoError(t, conn.Write(r.Context(), websocket.MessageText, []byte(`{"audio":"","isFinal":true}`)))
		_, _, _ = conn.Read(r.Context())
	}))
	defer server.Close()

	engine := engineConfig("elevenlabs")
	engine.Voice = "voice-1"
	engine.Credentials["elevenlabs"] = config.Credential{APIKey: "el-key", Endpoint: server.URL}
	player := &fakePlayer{}

	backend, err := Create("elevenlabs", engine, Deps{Player: player, HTTPClient: server.Client()})
	require.NoError(t, err)
	require.NoError(t, backend.Speak(context.Background(), "Hello there"))

	played, rates, _ := player.snapshot()
	require.Equal(t, [][]byte{{1, 0, 2, 0}}, played)
	require.Equal(t, []int{elevenLabsSampleRate}, rates)

	require.Len(t, received, 3)
	require.Equal(t, "el-key", received[0]["xi_api_key"])
	require.Equal(t, "Hello there ", received[1]["text"])
	require.Equal(t, "", received[2]["text"])

	require.Equal(t, []string{"abc", "def"}, backend.Voices(context.Background()))
}

func TestElevenLabsServerErrorSurfacesOnRead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		defer conn.CloseNow()
		for i := 0; i < 3; i++ {
			_, _, _ = conn.Read(r.Context())
		}
		_ = conn.Write(r.Context(), websocket.MessageText, []byte(`{"message":"invalid api key"}`))
	}))
	defer server.Close()

	synth := &elevenLabsSynth{apiKey: "bad", baseURL: server.URL, voiceID: "v", model: "m", httpClient: server.Client()}
	reader, _, err := synth.synthesize(context.Background(), "hi")
	require.NoError(t, err)

	_, err = io.ReadAll(reader)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid api key")
}

func TestAzureBackendSendsSSML(t *testing.T) {
	var ssml string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case azureVoicesPath:
			_, _ = w.Write([]byte(`[{"ShortName":"en-GB-SoniaNeural"},{"ShortName":"en-US-JennyNeural"}]`))
		case azureSynthesisPath:
			require.Equal(t, "az-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
			require.Equal(t, azureOutputFormat, r.Header.Get("X-Microsoft-OutputFormat"))
			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			ssml = string(data)
			_, _ = w.Write([]byte{9, 0})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	engine := engineConfig("azure")
	engine.Extra["style"] = "Cheerful"
	engine.Credentials["azure"] = config.Credential{APIKey: "az-key", Region: "westeurope", Endpoint: server.URL}
	player := &fakePlayer{}

	backend, err := Create("azure", engine, Deps{Player: player, HTTPClient: server.Client()})
	require.NoError(t, err)
	require.NoError(t, backend.Speak(context.Background(), "Fish & chips <now>"))

	require.Contains(t, ssml, `<voice name="en-GB-SoniaNeural">`)
	require.Contains(t, ssml, `xml:lang="en-GB"`)
	require.Contains(t, ssml, `<mstts:express-as style="cheerful">`)
	require.Contains(t, ssml, "Fish &amp; chips &lt;now&gt;")

	played, _, _ := player.snapshot()
	require.Equal(t, [][]byte{{9, 0}}, played)
	require.Equal(t, []string{"en-GB-SoniaNeural", "en-US-JennyNeural"}, backend.Voices(context.Background()))
}

func TestAzureSSMLOmitsGeneralStyle(t *testing.T) {
	synth := &azureSynth{voice: "en-US-JennyNeural", style: "General"}
	ssml := synth.ssml("hi")
	require.NotContains(t, ssml, "express-as")
	require.Contains(t, ssml, `<prosody rate="+0%" pitch="+0%" volume="100">hi</prosody>`)
}

func TestAzureSynthesisErrorIncludesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad key"))
	}))
	defer server.Close()

	synth := &azureSynth{key: "x", baseURL: server.URL, voice: "en-US-JennyNeural", httpClient: server.Client()}
	_, _, err := synth.synthesize(context.Background(), "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
	require.Contains(t, err.Error(), "bad key")
}

func TestStripWAVHeader(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	var wav bytes.Buffer
	wav.WriteString("RIFF")
	wav.Write([]byte{0, 0, 0, 0})
	wav.WriteString("WAVE")
	wav.WriteString("fmt ")
	wav.Write([]byte{2, 0, 0, 0, 0xaa, 0xbb})
	wav.WriteString("data")
	wav.Write([]byte{4, 0, 0, 0})
	wav.Write(pcm)

	require.Equal(t, pcm, stripWAVHeader(wav.Bytes()))
	require.Equal(t, pcm, stripWAVHeader(pcm))
}
