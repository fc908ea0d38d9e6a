package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"

	"github.com/rbright/promptvoice/internal/config"
)

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io"
	elevenLabsDefaultModel = "eleven_flash_v2_5"
	elevenLabsDefaultVoice = "21m00Tcm4TlvDq8ikWAM"
	elevenLabsOutputFormat = "pcm_16000"
	elevenLabsSampleRate   = 16000
)

type elevenLabsSynth struct {
	apiKey     string
	baseURL    string
	voiceID    string
	model      string
	settings   elevenLabsVoiceSettings
	httpClient *http.Client
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

type elevenLabsBOI struct {
	Text          string                   `json:"text"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string                   `json:"xi_api_key"`
}

type elevenLabsText struct {
	Text                 string `json:"text"`
	TryTriggerGeneration bool   `json:"try_trigger_generation,omitempty"`
}

type elevenLabsAudio struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func newElevenLabsBackend(name string, cfg config.EngineConfig, deps Deps) (Backend, error) {
	cred := cfg.Credential(name)
	settings := elevenLabsVoiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
	if v, ok := cfg.ExtraFloat("stability"); ok {
		settings.Stability = v
	}
	if v, ok := cfg.ExtraFloat("similarity_boost"); ok {
		settings.SimilarityBoost = v
	}
	if v, ok := cfg.ExtraFloat("speed"); ok {
		settings.Speed = v
	}

	synth := &elevenLabsSynth{
		apiKey:     cred.APIKey,
		baseURL:    strings.TrimRight(firstNonEmpty(cred.Endpoint, elevenLabsBaseURL), "/"),
		voiceID:    cfg.ExtraString("voice_id"),
		model:      cfg.ExtraString("model_id"),
		settings:   settings,
		httpClient: deps.httpClient(),
	}
	return newStreamBackend(name, cfg, synth, deps)
}

func (s *elevenLabsSynth) streamURL() string {
	query := url.Values{}
	query.Set("model_id", s.model)
	query.Set("output_format", elevenLabsOutputFormat)
	return fmt.Sprintf("%s/v1/text-to-speech/%s/stream-input?%s", s.baseURL, url.PathEscape(s.voiceID), query.Encode())
}

// synthesize sends one phrase and flushes; audio chunks are streamed into
// the returned reader until the server marks the final message.
func (s *elevenLabsSynth) synthesize(ctx context.Context, text string) (io.ReadCloser, int, error) {
	conn, _, err := websocket.Dial(ctx, s.streamURL(), &websocket.DialOptions{HTTPClient: s.httpClient})
	if err != nil {
		return nil, 0, fmt.Errorf("dial: %w", err)
	}

	settings := s.settings
	messages := []any{
		// The first message must carry non-empty text.
		elevenLabsBOI{Text: " ", VoiceSettings: &settings, XiAPIKey: s.apiKey},
		elevenLabsText{Text: text + " ", TryTriggerGeneration: true},
		elevenLabsText{Text: ""},
	}
	for _, message := range messages {
		payload, err := json.Marshal(message)
		if err != nil {
			_ = conn.CloseNow()
			return nil, 0, fmt.Errorf("encode message: %w", err)
		}
		if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
			_ = conn.CloseNow()
			return nil, 0, fmt.Errorf("send: %w", err)
		}
	}

	reader, writer := io.Pipe()
	go func() {
		defer conn.CloseNow()
		for {
			_, msg, err := conn.Read(ctx)
			if err != nil {
				if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
					_ = writer.Close()
					return
				}
				_ = writer.CloseWithError(err)
				return
			}

			var resp elevenLabsAudio
			if err := json.Unmarshal(msg, &resp); err != nil {
				continue
			}
			if resp.Audio == "" && (resp.Error != "" || resp.Message != "") {
				_ = writer.CloseWithError(fmt.Errorf("server: %s", firstNonEmpty(resp.Message, resp.Error)))
				return
			}
			if resp.Audio != "" {
				pcm, err := base64.StdEncoding.DecodeString(resp.Audio)
				if err != nil {
					continue
				}
				if _, err := writer.Write(pcm); err != nil {
					return
				}
			}
			if resp.IsFinal {
				_ = conn.Close(websocket.StatusNormalClosure, "done")
				_ = writer.Close()
				return
			}
		}
	}()

	return reader, elevenLabsSampleRate, nil
}

type elevenLabsVoicesResponse struct {
	Voices []struct {
		VoiceID string `json:"voice_id"`
	} `json:"voices"`
}

func (s *elevenLabsSynth) voices(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list voices: unexpected status %d", resp.StatusCode)
	}

	var decoded elevenLabsVoicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode voices: %w", err)
	}

	voices := make([]string, 0, len(decoded.Voices))
	for _, v := range decoded.Voices {
		if v.VoiceID == "" {
			continue
		}
		voices = append(voices, v.VoiceID)
	}
	return voices, nil
}
