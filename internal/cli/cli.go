package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Command string

const (
	CommandTUI       Command = "tui"
	CommandServe     Command = "serve"
	CommandSummarize Command = "summarize"
	CommandRecords   Command = "records"
	CommandExport    Command = "export"
	CommandRecord    Command = "record"
	CommandStop      Command = "stop"
	CommandStatus    Command = "status"
	CommandDevices   Command = "devices"
	CommandDoctor    Command = "doctor"
	CommandMCP       Command = "mcp"
	CommandVersion   Command = "version"
	CommandHelp      Command = "help"
)

// commandFlags lists the flags each command accepts after its name.
var commandFlags = map[Command][]string{
	CommandTUI:       nil,
	CommandServe:     {"--addr"},
	CommandSummarize: {"--share", "--out"},
	CommandRecords:   {"--limit"},
	CommandExport:    {"--out"},
	CommandRecord:    nil,
	CommandStop:      nil,
	CommandStatus:    nil,
	CommandDevices:   nil,
	CommandDoctor:    nil,
	CommandMCP:       nil,
	CommandVersion:   nil,
	CommandHelp:      nil,
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool

	Addr   string
	Limit  int
	Out    string
	Share  bool
	Args   []string
	Record int64
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
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := commandFlags[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if err := parseCommandArgs(&parsed, args[i+1:]); err != nil {
				return Parsed{}, err
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

func parseCommandArgs(parsed *Parsed, rest []string) error {
	allowed := commandFlags[parsed.Command]
	accepts := func(flag string) bool {
		for _, f := range allowed {
			if f == flag {
				return true
			}
		}
		return false
	}

	for i := 0; i < len(rest); i++ {
		arg := rest[i]
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			parsed.Args = append(parsed.Args, arg)
			continue
		}
		if !accepts(arg) {
			if arg == "--config" {
				return fmt.Errorf("unexpected arguments after command %q: --config must precede the command", parsed.Command)
			}
			return fmt.Errorf("unknown flag for %s: %s", parsed.Command, arg)
		}

		if arg == "--share" {
			parsed.Share = true
			continue
		}
		i++
		if i >= len(rest) {
			return fmt.Errorf("%s requires a value", arg)
		}
		value := rest[i]
		switch arg {
		case "--addr":
			parsed.Addr = value
		case "--out":
			parsed.Out = value
		case "--limit":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return fmt.Errorf("--limit must be a non-negative integer, got %q", value)
			}
			parsed.Limit = n
		}
	}

	switch parsed.Command {
	case CommandSummarize:
	case CommandExport:
		if len(parsed.Args) != 1 {
			return errors.New("export requires exactly one record id")
		}
		id, err := strconv.ParseInt(parsed.Args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid record id %q", parsed.Args[0])
		}
		parsed.Record = id
	default:
		if len(parsed.Args) > 0 {
			return fmt.Errorf("unexpected arguments after command %q", parsed.Command)
		}
	}
	return nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [flags]

Commands:
  tui                          Open the consultation form in the terminal
  serve [--addr ADDR]          Serve the consultation form to browsers
  summarize [--share] [--out DIR] [TEXT...]
                               Summarize TEXT (or stdin) into a PDF
  records [--limit N]          List summaries shared with consultants
  export ID [--out DIR]        Write a shared summary PDF to disk
  record                       Start recording in the running terminal form
  stop                         Stop recording in the running terminal form
  status                       Print the running terminal form's state
  devices                      List available input devices
  doctor                       Run configuration and environment checks
  mcp                          Serve shared summaries over MCP on stdio
  version                      Print version information
  help                         Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/consult/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
