package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	gctts "cloud.google.com/go/texttospeech/apiv1"
	ttspb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/rbright/promptvoice/internal/config"
)

const googleSampleRate = 24000

type googleSynth struct {
	client *gctts.Client

	language     string
	voice        string
	ssml         bool
	speakingRate float64
	pitch        float64
	volumeGainDB float64

	dump   bool
	logger *slog.Logger
}

func newGoogleBackend(name string, cfg config.EngineConfig, deps Deps) (Backend, error) {
	cred := cfg.Credential(name)
	var opts []option.ClientOption
	switch {
	case cred.Endpoint != "" && strings.EqualFold(cfg.ExtraString("plaintext"), "true"):
		conn, err := dialPlaintext(context.Background(), cred.Endpoint, defaultDialTimeout)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithGRPCConn(conn))
	case cred.Endpoint != "":
		opts = append(opts, option.WithEndpoint(cred.Endpoint))
	}
	if cred.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cred.CredentialsFile))
	}

	synth, err := newGoogleSynth(context.Background(), cfg, deps, opts...)
	if err != nil {
		return nil, err
	}
	return newStreamBackend(name, cfg, synth, deps)
}

func newGoogleSynth(ctx context.Context, cfg config.EngineConfig, deps Deps, opts ...option.ClientOption) (*googleSynth, error) {
	client, err := gctts.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create google text-to-speech client: %w", err)
	}

	synth := &googleSynth{
		client:   client,
		language: cfg.ExtraString("language_code"),
		voice:    cfg.ExtraString("voice"),
		ssml:     strings.EqualFold(cfg.ExtraString("input_type"), "ssml"),
		dump:     deps.GRPCDump,
		logger:   deps.logger(),
	}
	if v, ok := cfg.ExtraFloat("speaking_rate"); ok {
		synth.speakingRate = v
	}
	if v, ok := cfg.ExtraFloat("pitch_semitones"); ok {
		synth.pitch = v
	}
	if v, ok := cfg.ExtraFloat("volume_gain_db"); ok {
		synth.volumeGainDB = v
	}
	return synth, nil
}

func (s *googleSynth) request(text string) *ttspb.SynthesizeSpeechRequest {
	input := &ttspb.SynthesisInput{InputSource: &ttspb.SynthesisInput_Text{Text: text}}
	if s.ssml {
		input = &ttspb.SynthesisInput{InputSource: &ttspb.SynthesisInput_Ssml{Ssml: text}}
	}

	return &ttspb.SynthesizeSpeechRequest{
		Input: input,
		Voice: &ttspb.VoiceSelectionParams{
			LanguageCode: s.language,
			Name:         s.voice,
		},
		AudioConfig: &ttspb.AudioConfig{
			AudioEncoding:   ttspb.AudioEncoding_LINEAR16,
			SampleRateHertz: googleSampleRate,
			SpeakingRate:    s.speakingRate,
			Pitch:           s.pitch,
			VolumeGainDb:    s.volumeGainDB,
		},
	}
}

func (s *googleSynth) synthesize(ctx context.Context, text string) (io.ReadCloser, int, error) {
	req := s.request(text)
	if s.dump {
		if payload, err := protojson.Marshal(req); err == nil {
			s.logger.Debug("google synthesize request", "request", string(payload))
		}
	}

	started := time.Now()
	resp, err := s.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, 0, classifyGoogleError(err)
	}
	s.logger.Debug("google synthesize completed", "took", time.Since(started).String(), "bytes", len(resp.GetAudioContent()))

	return io.NopCloser(bytes.NewReader(stripWAVHeader(resp.GetAudioContent()))), googleSampleRate, nil
}

func (s *googleSynth) voices(ctx context.Context) ([]string, error) {
	resp, err := s.client.ListVoices(ctx, &ttspb.ListVoicesRequest{LanguageCode: s.language})
	if err != nil {
		return nil, classifyGoogleError(err)
	}
	voices := make([]string, 0, len(resp.GetVoices()))
	for _, voice := range resp.GetVoices() {
		voices = append(voices, voice.GetName())
	}
	return voices, nil
}

func (s *googleSynth) Close() error {
	return s.client.Close()
}

func classifyGoogleError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("google credentials rejected (%s): %s", st.Code(), st.Message())
	case codes.InvalidArgument, codes.NotFound:
		return fmt.Errorf("google rejected voice or audio parameters (%s): %s", st.Code(), st.Message())
	case codes.ResourceExhausted:
		return fmt.Errorf("google quota exhausted: %s", st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("google text-to-speech unavailable (%s): %s", st.Code(), st.Message())
	default:
		return err
	}
}

// stripWAVHeader returns the data chunk of a RIFF/WAVE payload, or audio
// unchanged when it carries no header.
func stripWAVHeader(audio []byte) []byte {
	if len(audio) < 12 || string(audio[0:4]) != "RIFF" || string(audio[8:12]) != "WAVE" {
		return audio
	}
	offset := 12
	for offset+8 <= len(audio) {
		id := string(audio[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(audio[offset+4 : offset+8]))
		offset += 8
		if id == "data" {
			end := offset + size
			if end > len(audio) || size == 0 {
				end = len(audio)
			}
			return audio[offset:end]
		}
		offset += size + size%2
	}
	return audio
}
