// Command packctl is the operator-facing CLI for building, signing,
// verifying, installing, and updating knowledge packs. Subcommands are
// registered through the same addCommand registry chisel uses so each
// command stays a small, independently testable flags.Commander.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"
	"golang.org/x/term"
)

var (
	Stdin  io.Reader = os.Stdin
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

// isStderrTTY gates the colorized error prefix in main(): plain text when
// stderr is redirected to a file or pipe (cron, CI), red when a human is
// watching a terminal.
var isStderrTTY = term.IsTerminal(int(os.Stderr.Fd()))

type options struct{}

var optionsData options

// ErrExtraArgs is returned when a command is given more positional
// arguments than it accepts.
var ErrExtraArgs = fmt.Errorf("too many arguments for command")

type cmdInfo struct {
	name, shortHelp, longHelp string
	builder                   func() flags.Commander
}

var commands []*cmdInfo

func addCommand(name, shortHelp, longHelp string, builder func() flags.Commander) *cmdInfo {
	info := &cmdInfo{name: name, shortHelp: shortHelp, longHelp: longHelp, builder: builder}
	commands = append(commands, info)
	return info
}

// Parser creates and populates a fresh parser. A fresh parser per call
// keeps command-local state isolated between test runs.
func Parser() *flags.Parser {
	parser := flags.NewParser(&optionsData, flags.Options(flags.PassDoubleDash))
	parser.ShortDescription = "Build, sign, verify, install and update knowledge packs"
	parser.Usage = ""

	for _, c := range commands {
		obj := c.builder()
		if _, err := parser.AddCommand(c.name, c.shortHelp, strings.TrimSpace(c.longHelp), obj); err != nil {
			panic(fmt.Sprintf("cannot add command %q: %v", c.name, err))
		}
	}
	return parser
}

func main() {
	defer func() {
		if v := recover(); v != nil {
			if e, ok := v.(*exitStatus); ok {
				os.Exit(e.code)
			}
			panic(v)
		}
	}()

	if err := run(); err != nil {
		if isStderrTTY {
			fmt.Fprintf(Stderr, "\x1b[31merror:\x1b[0m %v\n", err)
		} else {
			fmt.Fprintf(Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

type exitStatus struct{ code int }

func (e *exitStatus) Error() string {
	return fmt.Sprintf("internal error: exitStatus{%d} being handled as normal error", e.code)
}

func run() error {
	parser := Parser()
	_, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok {
			switch e.Type {
			case flags.ErrCommandRequired:
				parser.WriteHelp(Stdout)
				return nil
			case flags.ErrHelp:
				parser.WriteHelp(Stdout)
				return nil
			}
		}
		return err
	}
	return nil
}
