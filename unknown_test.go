package main_test

import (
	"testing"

	"github.com/stealthrocket/tracepp/internal/assert"
)

var unknownSuite = tests{
	"an error is reported when invoking an unknown command": func(t *testing.T) {
		stdout, stderr, exitCode := tracepp(t, "frobnicate")
		assert.Equal(t, exitCode, 2)
		assert.Equal(t, stdout, "")
		assert.HasPrefix(t, stderr, "tracepp frobnicate: unknown command\n")
	},
}
