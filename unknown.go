package main

import (
	"context"
)

const unknownCommand = `tracepp %s: unknown command
For a list of commands available, run 'tracepp help.'
`

func unknown(ctx context.Context, cmd string) error {
	return usageError(unknownCommand, cmd)
}
