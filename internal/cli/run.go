package cli

import (
	"fmt"
	"io"
)

const helpFlag = "--help"

// commands returns every command keyed by its invocation path.
func commands() map[string]*Command {
	return map[string]*Command{
		"fingerprint":   FingerprintCmd(),
		"cursor encode": CursorEncodeCmd(),
		"cursor decode": CursorDecodeCmd(),
	}
}

var commandOrder = []string{"fingerprint", "cursor encode", "cursor decode"}

// Run is the main entry point. args includes the program name. Returns exit code.
func Run(args []string, out, errOut io.Writer) int {
	o := NewIO(out, errOut)
	cmds := commands()

	if len(args) < 2 || args[1] == "-h" || args[1] == helpFlag {
		printUsage(out, cmds)
		return 0
	}

	name, rest := args[1], args[2:]
	if name == "cursor" {
		if len(rest) == 0 {
			fprintln(errOut, "error: cursor requires a subcommand: encode, decode")
			printUsage(errOut, cmds)
			return 1
		}
		name, rest = "cursor "+rest[0], rest[1:]
	}

	cmd, ok := cmds[name]
	if !ok {
		fprintln(errOut, "error: unknown command:", name)
		printUsage(errOut, cmds)
		return 1
	}

	return cmd.Run(o, rest)
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, cmds map[string]*Command) {
	fprintln(w, `dsctl - graph datasource developer tools

Usage: dsctl <command> [args]

Commands:`)
	for _, name := range commandOrder {
		fprintln(w, cmds[name].HelpLine())
	}
}
