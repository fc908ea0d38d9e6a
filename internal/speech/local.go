package speech

import (
	"bufio"
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/rbright/promptvoice/internal/config"
)

// newSayBackend wraps the macOS `say` command: say -v VOICE -r RATE -- TEXT.
func newSayBackend(name string, cfg config.EngineConfig, deps Deps) (Backend, error) {
	binary := firstNonEmpty(cfg.ExtraString("command"), "say")
	return &processBackend{
		name:   name,
		binary: binary,
		argv:   func(text string) []string { return sayArgs(cfg, text) },
		voiceFn: func(ctx context.Context) ([]string, error) {
			out, err := runOutput(ctx, binary, "-v", "?")
			if err != nil {
				return nil, err
			}
			return parseSayVoices(out), nil
		},
		logger: deps.logger(),
	}, nil
}

func sayArgs(cfg config.EngineConfig, text string) []string {
	args := make([]string, 0, 6)
	if cfg.Voice != "" {
		args = append(args, "-v", cfg.Voice)
	}
	return append(args, "-r", strconv.Itoa(cfg.Rate), "--", text)
}

var sayVoiceLine = regexp.MustCompile(`^(.+?)\s{2,}[a-z]{2}[_-][A-Za-z0-9]+`)

// parseSayVoices reads `say -v ?` output, one voice per line with the name
// first. Multi-word names are kept whole when the locale column is present.
func parseSayVoices(out string) []string {
	voices := make([]string, 0)
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if m := sayVoiceLine.FindStringSubmatch(line); m != nil {
			voices = append(voices, strings.TrimSpace(m[1]))
			continue
		}
		voices = append(voices, strings.Fields(line)[0])
	}
	return voices
}

// newEspeakBackend wraps espeak-ng (or espeak):
// espeak-ng -v VOICE -s RATE -a AMPLITUDE -p PITCH -- TEXT.
func newEspeakBackend(name string, cfg config.EngineConfig, deps Deps) (Backend, error) {
	binary := cfg.ExtraString("command")
	if binary == "" {
		binary = "espeak-ng"
		if _, err := exec.LookPath(binary); err != nil {
			if _, legacyErr := exec.LookPath("espeak"); legacyErr == nil {
				binary = "espeak"
			}
		}
	}
	return &processBackend{
		name:   name,
		binary: binary,
		argv:   func(text string) []string { return espeakArgs(cfg, text) },
		voiceFn: func(ctx context.Context) ([]string, error) {
			out, err := runOutput(ctx, binary, "--voices")
			if err != nil {
				return nil, err
			}
			return parseEspeakVoices(out), nil
		},
		logger: deps.logger(),
	}, nil
}

func espeakArgs(cfg config.EngineConfig, text string) []string {
	args := make([]string, 0, 10)
	if cfg.Voice != "" {
		args = append(args, "-v", cfg.Voice)
	}
	args = append(args, "-s", strconv.Itoa(cfg.Rate))
	if amplitude := cfg.ExtraString("amplitude"); amplitude != "" {
		args = append(args, "-a", amplitude)
	}
	if pitch := cfg.ExtraString("pitch_level"); pitch != "" {
		args = append(args, "-p", pitch)
	}
	return append(args, "--", text)
}

// parseEspeakVoices reads the language column of `espeak-ng --voices`.
func parseEspeakVoices(out string) []string {
	voices := make([]string, 0)
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] == "Pty" {
			continue
		}
		voices = append(voices, fields[1])
	}
	return voices
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
