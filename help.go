package main

import (
	"context"
	"fmt"
)

const helpUsage = `
Usage:	tracepp <command> [options]

Commands:
   config       Show or edit the tracepp configuration
   help         Show usage information for a command
   preprocess   Run the prefix pass and preprocess testcase traces
   version      Show the tracepp version

Options:
   -h, --help  Show this usage information
`

var commandUsage = map[string]string{
	"config":     configUsage,
	"help":       helpUsage,
	"preprocess": preprocessUsage,
	"version":    versionUsage,
}

func help(ctx context.Context, args []string) error {
	flagSet := newFlagSet("tracepp help", helpUsage)
	args, err := parseFlags(flagSet, args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		fmt.Print(helpUsage)
		return nil
	}
	cmd := args[0]
	usage, ok := commandUsage[cmd]
	if !ok {
		return usageError("tracepp help %s: unknown command", cmd)
	}
	fmt.Println(usage)
	return nil
}
