package main

// Notes on program structure
// --------------------------
//
// tracepp uses subcommands to invoke specific functionality of the
// program. Each subcommand is implemented by a function named after the
// command, in a file of the same name (e.g. the "preprocess" command is
// implemented by the preprocess function in preprocess.go).
//
// The usage message for each command is declared by a constant starting
// with the command name and followed by the suffix "Usage".

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/stealthrocket/tracepp/internal/tracepp"
	"golang.org/x/exp/slices"
)

const rootUsage = `tracepp - JavaScript execution-trace preprocessor

   tracepp converts the textual traces produced by a JavaScript
   instrumentation agent into a compact binary trace format plus
   per-image symbol map files, for consumption by a downstream
   microarchitectural side-channel analyzer.

Example:

   $ tracepp preprocess --trace-dir ./traces --map-directory ./maps ./traces/run-1

For a list of commands available, run 'tracepp help'.`

// root is the tracepp entrypoint.
func root(ctx context.Context, args ...string) int {
	flagSet := newFlagSet("tracepp", rootUsage)
	_ = flagSet.Parse(args)

	if args = flagSet.Args(); len(args) == 0 {
		fmt.Println(rootUsage)
		return 0
	}

	cmd, args := args[0], args[1:]

run_command:
	var err error
	switch cmd {
	case "config":
		err = config(ctx, args)
	case "help":
		err = help(ctx, args)
	case "preprocess":
		err = preprocess(ctx, args)
	case "version":
		err = version(ctx, args)
	default:
		err = unknown(ctx, cmd)
	}

	switch e := err.(type) {
	case nil:
		return 0
	case exitCode:
		return int(e)
	case restart:
		goto run_command
	case usage:
		fmt.Fprintf(os.Stderr, "%s\n", e)
		return 2
	default:
		fmt.Fprintf(os.Stderr, "ERR: tracepp %s: %s\n", cmd, err)
		return 1
	}
}

// exitCode is an error type returned from command functions to indicate
// the exit code that should be returned by the program.
type exitCode int

func (e exitCode) Error() string {
	return fmt.Sprintf("exit: %d", e)
}

// restart is an error type returned from command functions to indicate
// that a command should be restarted; root dispatches the same command
// again when it receives one.
type restart struct{}

func (restart) Error() string { return "restart" }

// usage is an error type returned from command functions to indicate a
// usage error. Usage errors cause the program to exit with status 2.
type usage string

func usageError(msg string, args ...any) error {
	return usage(fmt.Sprintf(msg, args...))
}

func (e usage) Error() string {
	return string(e)
}

func newFlagSet(cmd, usage string) *flag.FlagSet {
	usage = strings.TrimSpace(usage)
	flagSet := flag.NewFlagSet(cmd, flag.ExitOnError)
	flagSet.Usage = func() { fmt.Println(usage) }
	customVar(flagSet, &tracepp.ConfigPath, "c", "config")
	return flagSet
}

// parseFlags is a greedy parser which consumes all options known to f and
// returns the remaining arguments.
func parseFlags(f *flag.FlagSet, args []string) ([]string, error) {
	var unknownArgs []string
	for {
		if err := f.Parse(args); err != nil {
			return nil, err
		}
		if args = f.Args(); len(args) == 0 {
			return unknownArgs, nil
		}
		i := slices.IndexFunc(args, func(s string) bool { return strings.HasPrefix(s, "-") })
		if i < 0 {
			i = len(args)
		} else if args[i] == "-" {
			i++
		}
		if i == 0 {
			return nil, fmt.Errorf("parsing command line arguments did not error on %q", args[0])
		}
		unknownArgs = append(unknownArgs, args[:i]...)
		args = args[i:]
	}
}

func boolVar(f *flag.FlagSet, dst *bool, name string, alias ...string) {
	f.BoolVar(dst, name, *dst, "")
	for _, name := range alias {
		f.BoolVar(dst, name, *dst, "")
	}
}

func intVar(f *flag.FlagSet, dst *int, name string, alias ...string) {
	f.IntVar(dst, name, *dst, "")
	for _, name := range alias {
		f.IntVar(dst, name, *dst, "")
	}
}

func customVar(f *flag.FlagSet, dst flag.Value, name string, alias ...string) {
	f.Var(dst, name, "")
	for _, name := range alias {
		f.Var(dst, name, "")
	}
}
