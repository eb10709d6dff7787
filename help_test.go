package main_test

import (
	"testing"

	"github.com/stealthrocket/tracepp/internal/assert"
)

var helpSuite = tests{
	"help with no arguments prints the command list": func(t *testing.T) {
		stdout, stderr, exitCode := tracepp(t, "help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "\nUsage:\ttracepp <command> [options]\n")
		assert.Equal(t, stderr, "")
	},

	"show the help command help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := tracepp(t, "help", "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\ttracepp <command> [options]\n")
		assert.Equal(t, stderr, "")
	},

	"help preprocess prints the preprocess usage": func(t *testing.T) {
		stdout, stderr, exitCode := tracepp(t, "help", "preprocess")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "\nUsage:\ttracepp preprocess [options]")
		assert.Equal(t, stderr, "")
	},

	"help config": func(t *testing.T) {
		stdout, stderr, exitCode := tracepp(t, "help", "config")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "\nUsage:\ttracepp config [options]")
		assert.Equal(t, stderr, "")
	},

	"help version": func(t *testing.T) {
		stdout, stderr, exitCode := tracepp(t, "help", "version")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "\nUsage:\ttracepp version\n")
		assert.Equal(t, stderr, "")
	},

	"help for an unknown command is a usage error": func(t *testing.T) {
		stdout, stderr, exitCode := tracepp(t, "help", "frobnicate")
		assert.Equal(t, exitCode, 2)
		assert.Equal(t, stdout, "")
		assert.HasPrefix(t, stderr, "tracepp help frobnicate: unknown command")
	},
}
