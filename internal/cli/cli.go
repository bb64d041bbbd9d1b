// Package cli parses the voyc command line.
package cli

import (
	"fmt"
	"strings"
)

type Command string

const (
	CommandServe   Command = "serve"
	CommandToggle  Command = "toggle"
	CommandStop    Command = "stop"
	CommandCancel  Command = "cancel"
	CommandReset   Command = "reset"
	CommandReload  Command = "reload"
	CommandStatus  Command = "status"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandServe:   {},
	CommandToggle:  {},
	CommandStop:    {},
	CommandCancel:  {},
	CommandReset:   {},
	CommandReload:  {},
	CommandStatus:  {},
	CommandDevices: {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

// Forwarded reports whether the command is sent to a running daemon.
func (c Command) Forwarded() bool {
	switch c {
	case CommandToggle, CommandStop, CommandCancel, CommandReset, CommandReload, CommandStatus:
		return true
	}
	return false
}

type Parsed struct {
	Command    Command
	ConfigPath string
	LogLevel   string
	ShowHelp   bool
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
		case "--config", "--log-level":
			i++
			if i >= len(args) || strings.HasPrefix(args[i], "-") {
				return Parsed{}, fmt.Errorf("%s requires a value", arg)
			}
			if arg == "--config" {
				parsed.ConfigPath = args[i]
			} else {
				parsed.LogLevel = args[i]
			}
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if i != len(args)-1 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--log-level LEVEL] <command>

Commands:
  serve     Run the dictation daemon in the foreground
  toggle    Start dictation, or stop listening and transcribe
  stop      Stop listening and transcribe what was captured
  cancel    Abort the current dictation and discard its audio
  reset     Clear an error and return to idle
  reload    Re-read the config file in the running daemon
  status    Print the daemon state
  devices   List available input devices
  doctor    Run configuration and environment checks
  version   Print version information
  help      Show this help

Flags:
  --config PATH       Config file path (default: $XDG_CONFIG_HOME/voyc/config.yaml)
  --log-level LEVEL   Override log_level (debug, info, warn, error)
  -h, --help          Show help
  --version           Show version
`, binaryName)
}
