package speech

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/rbright/promptvoice/internal/config"
)

const (
	openAIDefaultModel = openai.SpeechModelTTS1
	openAIDefaultVoice = "alloy"
	// openAISampleRate is fixed for the pcm response format.
	openAISampleRate = 24000
)

var openAIVoices = []string{"alloy", "ash", "ballad", "coral", "echo", "fable", "nova", "onyx", "sage", "shimmer", "verse"}

type openAISynth struct {
	client       openai.Client
	model        string
	voice        string
	speed        float64
	instructions string
}

func newOpenAIBackend(name string, cfg config.EngineConfig, deps Deps) (Backend, error) {
	cred := cfg.Credential(name)
	opts := []option.RequestOption{
		option.WithAPIKey(cred.APIKey),
		option.WithHTTPClient(deps.httpClient()),
		option.WithMaxRetries(1),
	}
	if cred.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cred.Endpoint))
	}

	synth := &openAISynth{
		client:       openai.NewClient(opts...),
		model:        cfg.ExtraString("model"),
		voice:        cfg.ExtraString("voice"),
		instructions: cfg.ExtraString("instructions"),
	}
	if v, ok := cfg.ExtraFloat("speed"); ok {
		synth.speed = v
	}
	return newStreamBackend(name, cfg, synth, deps)
}

func (s *openAISynth) synthesize(ctx context.Context, text string) (io.ReadCloser, int, error) {
	params := openai.AudioSpeechNewParams{
		Input:          text,
		Model:          s.model,
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	}
	if s.speed > 0 {
		params.Speed = openai.Float(s.speed)
	}
	if s.instructions != "" {
		params.Instructions = openai.String(s.instructions)
	}

	resp, err := s.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.Body, openAISampleRate, nil
}

// voices returns the fixed voice set; the API has no listing endpoint.
func (s *openAISynth) voices(context.Context) ([]string, error) {
	return append([]string(nil), openAIVoices...), nil
}
