package main_test

import (
	"testing"

	"github.com/stealthrocket/tracepp/internal/assert"
)

var rootSuite = tests{
	"invoking tracepp without a command prints the introduction message": func(t *testing.T) {
		stdout, stderr, exitCode := tracepp(t)
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "tracepp - JavaScript execution-trace preprocessor\n")
		assert.Equal(t, stderr, "")
	},

	"show the tracepp help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := tracepp(t, "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "tracepp - JavaScript execution-trace preprocessor\n")
		assert.Equal(t, stderr, "")
	},

	"an unknown root command is reported as a usage error": func(t *testing.T) {
		_, stderr, exitCode := tracepp(t, "frobnicate")
		assert.Equal(t, exitCode, 2)
		assert.HasPrefix(t, stderr, "tracepp frobnicate: unknown command\n")
	},
}
