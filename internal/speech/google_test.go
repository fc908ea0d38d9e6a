package speech

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	ttspb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rbright/promptvoice/internal/config"
)

type fakeTextToSpeech struct {
	ttspb.UnimplementedTextToSpeechServer

	last *ttspb.SynthesizeSpeechRequest
	err  error
}

func (f *fakeTextToSpeech) SynthesizeSpeech(_ context.Context, req *ttspb.SynthesizeSpeechRequest) (*ttspb.SynthesizeSpeechResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &ttspb.SynthesizeSpeechResponse{AudioContent: []byte{5, 0, 6, 0}}, nil
}

func (f *fakeTextToSpeech) ListVoices(context.Context, *ttspb.ListVoicesRequest) (*ttspb.ListVoicesResponse, error) {
	return &ttspb.ListVoicesResponse{Voices: []*ttspb.Voice{{Name: "en-US-Neural2-A"}, {Name: "en-US-Neural2-C"}}}, nil
}

func startFakeTextToSpeech(t *testing.T, fake *fakeTextToSpeech) option.ClientOption {
	t.Helper()

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	ttspb.RegisterTextToSpeechServer(server, fake)
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	return option.WithGRPCConn(conn)
}

func TestGoogleSynthSendsResolvedParameters(t *testing.T) {
	fake := &fakeTextToSpeech{}
	engine := engineConfig("google")
	engine.Voice = "en-GB-Neural2-B"
	engine.Rate = 350

	resolved, err := Resolve("google", engine)
	require.NoError(t, err)

	synth, err := newGoogleSynth(context.Background(), resolved, Deps{GRPCDump: true}, startFakeTextToSpeech(t, fake))
	require.NoError(t, err)
	defer synth.Close()

	pcm, rate, err := synth.synthesize(context.Background(), "Continue")
	require.NoError(t, err)
	data, err := io.ReadAll(pcm)
	require.NoError(t, err)

	require.Equal(t, []byte{5, 0, 6, 0}, data)
	require.Equal(t, googleSampleRate, rate)
	require.Equal(t, "Continue", fake.last.GetInput().GetText())
	require.Equal(t, "en-GB", fake.last.GetVoice().GetLanguageCode())
	require.Equal(t, "en-GB-Neural2-B", fake.last.GetVoice().GetName())
	require.Equal(t, ttspb.AudioEncoding_LINEAR16, fake.last.GetAudioConfig().GetAudioEncoding())
	require.InDelta(t, 2.0, fake.last.GetAudioConfig().GetSpeakingRate(), 0.001)

	voices, err := synth.voices(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"en-US-Neural2-A", "en-US-Neural2-C"}, voices)
}

func TestGoogleSynthSSMLInput(t *testing.T) {
	fake := &fakeTextToSpeech{}
	engine := engineConfig("google")
	engine.Extra["input_type"] = "ssml"

	resolved, err := Resolve("google", engine)
	require.NoError(t, err)
	synth, err := newGoogleSynth(context.Background(), resolved, Deps{}, startFakeTextToSpeech(t, fake))
	require.NoError(t, err)
	defer synth.Close()

	_, _, err = synth.synthesize(context.Background(), "<speak>hi</speak>")
	require.NoError(t, err)
	require.Equal(t, "<speak>hi</speak>", fake.last.GetInput().GetSsml())
}

func TestGoogleSynthClassifiesErrors(t *testing.T) {
	fake := &fakeTextToSpeech{err: status.Error(codes.PermissionDenied, "api disabled")}
	resolved, err := Resolve("google", engineConfig("google"))
	require.NoError(t, err)
	synth, err := newGoogleSynth(context.Background(), resolved, Deps{}, startFakeTextToSpeech(t, fake))
	require.NoError(t, err)
	defer synth.Close()

	_, _, err = synth.synthesize(context.Background(), "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "google credentials rejected")
}

func TestClassifyGoogleError(t *testing.T) {
	cases := []struct {
		code codes.Code
		want string
	}{
		{codes.Unauthenticated, "credentials rejected"},
		{codes.InvalidArgument, "rejected voice or audio parameters"},
		{codes.ResourceExhausted, "quota exhausted"},
		{codes.Unavailable, "unavailable"},
	}
	for _, tc := range cases {
		err := classifyGoogleError(status.Error(tc.code, "detail"))
		require.Contains(t, err.Error(), tc.want)
	}

	plain := errors.New("plain")
	require.Same(t, plain, classifyGoogleError(plain))
}

func TestGoogleBackendDialsPlaintextEndpoint(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	server := grpc.NewServer()
	ttspb.RegisterTextToSpeechServer(server, &fakeTextToSpeech{})
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)

	engine := engineConfig("google")
	engine.Extra = map[string]any{"plaintext": true}
	engine.Credentials = map[string]config.Credential{"google": {Endpoint: listener.Addr().String()}}

	backend, err := newGoogleBackend("google", engine, Deps{Player: &fakePlayer{}})
	require.NoError(t, err)
	defer func() { require.NoError(t, backend.(io.Closer).Close()) }()

	require.Equal(t, []string{"en-US-Neural2-A", "en-US-Neural2-C"}, backend.Voices(context.Background()))
}

func TestDialPlaintextRejectsEmptyEndpoint(t *testing.T) {
	_, err := dialPlaintext(context.Background(), "  ", time.Second)
	require.ErrorContains(t, err, "endpoint is empty")
}

func TestDialPlaintextTimesOutWhenUnreachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	_, err = dialPlaintext(context.Background(), addr, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "wait for grpc readiness")
}
