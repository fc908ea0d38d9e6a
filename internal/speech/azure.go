package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rbright/promptvoice/internal/config"
)

const (
	azureDefaultVoice  = "en-GB-SoniaNeural"
	azureOutputFormat  = "raw-24khz-16bit-mono-pcm"
	azureSampleRate    = 24000
	azureEndpointFmt   = "https://%s.tts.speech.microsoft.com"
	azureSynthesisPath = "/cognitiveservices/v1"
	azureVoicesPath    = "/cognitiveservices/voices/list"
)

type azureSynth struct {
	key        string
	baseURL    string
	voice      string
	style      string
	rate       string
	pitch      string
	volume     string
	httpClient *http.Client
}

func newAzureBackend(name string, cfg config.EngineConfig, deps Deps) (Backend, error) {
	cred := cfg.Credential(name)
	base := cred.Endpoint
	if base == "" {
		base = fmt.Sprintf(azureEndpointFmt, cred.Region)
	}

	synth := &azureSynth{
		key:        cred.APIKey,
		baseURL:    strings.TrimRight(base, "/"),
		voice:      cfg.ExtraString("voice"),
		style:      cfg.ExtraString("style"),
		rate:       cfg.ExtraString("prosody_rate"),
		pitch:      cfg.ExtraString("prosody_pitch"),
		volume:     cfg.ExtraString("prosody_volume"),
		httpClient: deps.httpClient(),
	}
	return newStreamBackend(name, cfg, synth, deps)
}

// ssml renders text inside voice, style, and prosody elements.
func (s *azureSynth) ssml(text string) string {
	var escaped bytes.Buffer
	_ = xml.EscapeText(&escaped, []byte(text))

	body := fmt.Sprintf("<prosody rate=%q pitch=%q volume=%q>%s</prosody>",
		firstNonEmpty(s.rate, "+0%"),
		firstNonEmpty(s.pitch, "+0%"),
		firstNonEmpty(s.volume, "100"),
		escaped.String(),
	)
	if s.style != "" && !strings.EqualFold(s.style, "general") {
		body = fmt.Sprintf("<mstts:express-as style=%q>%s</mstts:express-as>", strings.ToLower(s.style), body)
	}

	return fmt.Sprintf(
		`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xmlns:mstts="https://www.w3.org/2001/mstts" xml:lang=%q><voice name=%q>%s</voice></speak>`,
		languageFromVoice(s.voice, "en-US"),
		s.voice,
		body,
	)
}

func (s *azureSynth) synthesize(ctx context.Context, text string) (io.ReadCloser, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+azureSynthesisPath, strings.NewReader(s.ssml(text)))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", azureOutputFormat)
	req.Header.Set("User-Agent", "promptvoice")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, 0, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return resp.Body, azureSampleRate, nil
}

func (s *azureSynth) voices(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+azureVoicesPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.key)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list voices: unexpected status %d", resp.StatusCode)
	}

	var decoded []struct {
		ShortName string `json:"ShortName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode voices: %w", err)
	}

	voices := make([]string, 0, len(decoded))
	for _, v := range decoded {
		if v.ShortName != "" {
			voices = append(voices, v.ShortName)
		}
	}
	return voices, nil
}
