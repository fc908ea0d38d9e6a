// Package cli parses promptvoice command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRun      Command = "run"
	CommandDevices  Command = "devices"
	CommandVoices   Command = "voices"
	CommandBackends Command = "backends"
	CommandRoute    Command = "route"
	CommandClick    Command = "click"
	CommandDoctor   Command = "doctor"
	CommandVersion  Command = "version"
	CommandHelp     Command = "help"
)

// commandArgs is the number of positional arguments each command takes.
var commandArgs = map[Command]int{
	CommandRun:      0,
	CommandDevices:  0,
	CommandVoices:   0,
	CommandBackends: 0,
	CommandRoute:    0,
	CommandClick:    1,
	CommandDoctor:   0,
	CommandVersion:  0,
	CommandHelp:     0,
}

type Parsed struct {
	Command         Command
	Arg             string
	ConfigPath      string
	CredentialsPath string
	Backend         string
	Debug           bool
	ShowHelp        bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--debug":
			parsed.Debug = true
		case "--config", "--credentials", "--backend":
			i++
			if i >= len(args) || strings.TrimSpace(args[i]) == "" {
				return Parsed{}, fmt.Errorf("%s requires a value", arg)
			}
			switch arg {
			case "--config":
				parsed.ConfigPath = args[i]
			case "--credentials":
				parsed.CredentialsPath = args[i]
			default:
				parsed.Backend = strings.ToLower(strings.TrimSpace(args[i]))
			}
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			want, ok := commandArgs[cmd]
			if !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			rest := args[i+1:]
			if len(rest) < want {
				return Parsed{}, fmt.Errorf("command %q requires an argument", arg)
			}
			if len(rest) > want {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if want == 1 {
				parsed.Arg = rest[0]
				if strings.TrimSpace(parsed.Arg) == "" {
					return Parsed{}, errors.New("action name must not be empty")
				}
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [flags] <command> [arg]

Commands:
  run            Watch the prompt region and speak each new phrase
  devices        List audio output and input devices
  voices         List voices of the configured speech backend
  backends       List available speech backends
  route          Apply audio routing once and print the result
  click ACTION   Trigger a configured UI action (e.g. record, continue)
  doctor         Run configuration and environment checks
  version        Print version information
  help           Show this help

Flags:
  --config PATH        Config file path (default: $XDG_CONFIG_HOME/promptvoice/config.jsonc)
  --credentials PATH   Credentials file path (default: credentials.yaml next to the config)
  --backend NAME       Override tts.backend for this invocation
  --debug              Verbose file and console logging
  -h, --help           Show help
  --version            Show version
`, binaryName)
}
