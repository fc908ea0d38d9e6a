package speech

import (
	"context"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProcessBackendStopsPriorUtteranceBeforeSpeaking(t *testing.T) {
	logPath := installSpeechStub(t, "espeak-ng", `echo "$*" >> "$SPEECH_LOG"
exec sleep 30`)

	backend, err := Create("espeak", engineConfig("espeak"), Deps{})
	require.NoError(t, err)
	local := backend.(*processBackend)
	t.Cleanup(backend.Stop)

	ctx := context.Background()
	require.NoError(t, backend.Speak(ctx, "first phrase"))
	firstPID := local.pid()
	require.NotZero(t, firstPID)
	require.True(t, backend.IsSpeaking())

	require.NoError(t, backend.Speak(ctx, "second phrase"))
	secondPID := local.pid()
	require.NotEqual(t, firstPID, secondPID)
	require.ErrorIs(t, syscall.Kill(firstPID, 0), syscall.ESRCH, "first utterance must be terminated")
	require.True(t, backend.IsSpeaking())

	require.Eventually(t, func() bool {
		return strings.Contains(readLog(t, logPath), "second phrase")
	}, 2*time.Second, 20*time.Millisecond)

	backend.Stop()
	require.False(t, backend.IsSpeaking())
	require.Zero(t, local.pid())
}

func TestProcessBackendIsSpeakingClearsAfterExit(t *testing.T) {
	installSpeechStub(t, "say", `echo "$*" >> "$SPEECH_LOG"`)

	backend, err := Create("say", engineConfig("say"), Deps{})
	require.NoError(t, err)

	require.NoError(t, backend.Speak(context.Background(), "hello"))
	require.Eventually(t, func() bool { return !backend.IsSpeaking() }, 2*time.Second, 10*time.Millisecond)

	backend.Stop()
	backend.Stop()
}

func TestProcessBackendPassesVoiceAndRate(t *testing.T) {
	logPath := installSpeechStub(t, "say", `printf '%s|' "$@" >> "$SPEECH_LOG"`)

	engine := engineConfig("macos")
	engine.Voice = "Samantha"
	engine.Rate = 190
	backend, err := Create("macos", engine, Deps{})
	require.NoError(t, err)

	require.NoError(t, backend.Speak(context.Background(), "Read this aloud"))
	require.Eventually(t, func() bool {
		return readLog(t, logPath) == "-v|Samantha|-r|190|--|Read this aloud|"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProcessBackendStartFailure(t *testing.T) {
	engine := engineConfig("espeak")
	engine.Extra["command"] = "/definitely/missing/espeak-ng"
	backend, err := Create("espeak", engine, Deps{})
	require.NoError(t, err)

	err = backend.Speak(context.Background(), "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "start")
	require.False(t, backend.IsSpeaking())
}

func TestProcessBackendSpeakHonorsCanceledContext(t *testing.T) {
	backend, err := Create("say", engineConfig("say"), Deps{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, backend.Speak(ctx, "hello"), context.Canceled)
}

func TestSayVoices(t *testing.T) {
	installSpeechStub(t, "say", `cat <<'OUT'
Alex                en_US    # Most people recognize me by my voice.
Bad News            en_US    # The light you see at the end of the tunnel is the headlamp of a fast approaching train.
Daniel              en_GB    # Hello, my name is Daniel.
OUT`)

	backend, err := Create("say", engineConfig("say"), Deps{})
	require.NoError(t, err)
	require.Equal(t, []string{"Alex", "Bad News", "Daniel"}, backend.Voices(context.Background()))
}

func TestVoicesEmptyOnFailure(t *testing.T) {
	installSpeechStub(t, "espeak-ng", `echo "no voices" >&2; exit 3`)

	backend, err := Create("espeak", engineConfig("espeak"), Deps{})
	require.NoError(t, err)
	voices := backend.Voices(context.Background())
	require.NotNil(t, voices)
	require.Empty(t, voices)
}

func TestParseEspeakVoices(t *testing.T) {
	out := `Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af
 5  en-gb           --/M      English_(Great_Britain) gmw/en            (en 2)
 2  en-us           --/M      English_(America)  gmw/en-US            (en 3)
`
	require.Equal(t, []string{"af", "en-gb", "en-us"}, parseEspeakVoices(out))
}

func TestEspeakArgsIncludesNativeOptions(t *testing.T) {
	engine := engineConfig("espeak")
	engine.Voice = "en-gb"
	resolved, err := Resolve("espeak", engine)
	require.NoError(t, err)

	require.Equal(t, []string{"-v", "en-gb", "-s", "175", "-a", "100", "-p", "50", "--", "hello"}, espeakArgs(resolved, "hello"))
}

func TestLocalArgsTreatLeadingDashTextAsText(t *testing.T) {
	engine := engineConfig("espeak")
	resolved, err := Resolve("espeak", engine)
	require.NoError(t, err)

	espeak := espeakArgs(resolved, "-v is not a flag")
	require.Equal(t, []string{"--", "-v is not a flag"}, espeak[len(espeak)-2:])

	say := sayArgs(engineConfig("say"), "--help")
	require.Equal(t, []string{"--", "--help"}, say[len(say)-2:])
}

func TestProcessBackendSpeaksDashPrefixedText(t *testing.T) {
	logPath := installSpeechStub(t, "espeak-ng", `seen=0
for arg in "$@"; do
  if [[ "$seen" == 1 ]]; then printf '%s\n' "$arg" >> "$SPEECH_LOG"; fi
  if [[ "$arg" == "--" ]]; then seen=1; fi
done`)

	backend, err := Create("espeak", engineConfig("espeak"), Deps{})
	require.NoError(t, err)

	require.NoError(t, backend.Speak(context.Background(), "-s 999 fast"))
	require.Eventually(t, func() bool {
		return readLog(t, logPath) == "-s 999 fast\n"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLocalBackendsReportBinary(t *testing.T) {
	engine := engineConfig("say")
	engine.Extra["command"] = "/opt/bin/say-wrapper"
	backend, err := Create("say", engine, Deps{})
	require.NoError(t, err)

	binary, ok := backend.(interface{ Binary() string })
	require.True(t, ok)
	require.Equal(t, "/opt/bin/say-wrapper", binary.Binary())
}
