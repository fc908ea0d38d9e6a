package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
)

type messages struct {
	started       string
	focusAcquired string
	waiting       string
	newPhrase     string
	speakFailed   string
	clickFailed   string
	errorText     string
}

func indicatorMessagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeEnglish:
		fallthrough
	default:
		return messages{
			started:       "Narration started",
			focusAcquired: "Focus acquired",
			waiting:       "Waiting for focus",
			newPhrase:     "New phrase",
			speakFailed:   "Speak failed",
			clickFailed:   "Click failed",
			errorText:     "Narration error",
		}
	}
}
