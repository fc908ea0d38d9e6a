package speech

import (
	"fmt"
	"math"
	"strings"

	"github.com/rbright/promptvoice/internal/config"
)

// baselineRate is the words-per-minute value treated as normal speed.
const baselineRate = 175.0

func noNativeParams(config.EngineConfig) map[string]any {
	return map[string]any{}
}

func espeakParams(cfg config.EngineConfig) map[string]any {
	return map[string]any{
		"amplitude":   int(math.Round(clamp(cfg.Volume*100, 0, 200))),
		"pitch_level": int(math.Round(clamp(cfg.Pitch*50, 0, 99))),
	}
}

func elevenLabsParams(cfg config.EngineConfig) map[string]any {
	params := map[string]any{
		"model_id": elevenLabsDefaultModel,
		"speed":    roundTo(clamp(speedFromRate(cfg.Rate), 0.7, 1.2), 2),
	}
	if cfg.Voice != "" {
		params["voice_id"] = cfg.Voice
	} else {
		params["voice_id"] = elevenLabsDefaultVoice
	}
	return params
}

func openAIParams(cfg config.EngineConfig) map[string]any {
	voice := strings.ToLower(cfg.Voice)
	if voice == "" {
		voice = openAIDefaultVoice
	}
	return map[string]any{
		"voice": voice,
		"model": openAIDefaultModel,
		"speed": roundTo(clamp(speedFromRate(cfg.Rate), 0.25, 4.0), 2),
	}
}

func googleParams(cfg config.EngineConfig) map[string]any {
	params := map[string]any{
		"language_code":   languageFromVoice(cfg.Voice, "en-US"),
		"speaking_rate":   roundTo(clamp(speedFromRate(cfg.Rate), 0.25, 4.0), 2),
		"pitch_semitones": roundTo(clamp(12*math.Log2(cfg.Pitch), -20, 20), 1),
		"volume_gain_db":  roundTo(volumeGainDB(cfg.Volume), 1),
	}
	if cfg.Voice != "" {
		params["voice"] = cfg.Voice
	}
	return params
}

func azureParams(cfg config.EngineConfig) map[string]any {
	voice := cfg.Voice
	if voice == "" {
		voice = azureDefaultVoice
	}
	return map[string]any{
		"voice":          voice,
		"style":          "General",
		"prosody_rate":   signedPercent(speedFromRate(cfg.Rate) - 1),
		"prosody_pitch":  signedPercent(cfg.Pitch - 1),
		"prosody_volume": fmt.Sprintf("%d", int(math.Round(clamp(cfg.Volume, 0, 1)*100))),
	}
}

func speedFromRate(rate int) float64 {
	if rate <= 0 {
		return 1
	}
	return float64(rate) / baselineRate
}

func volumeGainDB(volume float64) float64 {
	if volume <= 0 {
		return -96
	}
	return clamp(20*math.Log10(volume), -96, 16)
}

// languageFromVoice extracts "en-GB" from voice names like "en-GB-Neural2-A".
func languageFromVoice(voice string, fallback string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 3 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return fallback
	}
	return parts[0] + "-" + parts[1]
}

func signedPercent(delta float64) string {
	return fmt.Sprintf("%+d%%", int(math.Round(delta*100)))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
