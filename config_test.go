package main_test

import (
	"strings"
	"testing"

	"github.com/stealthrocket/tracepp/internal/assert"
)

var configSuite = tests{
	"show the config command help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := tracepp(t, "config", "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\ttracepp config [options]\n")
		assert.Equal(t, stderr, "")
	},

	"config with no options prints the active configuration as text": func(t *testing.T) {
		stdout, stderr, exitCode := tracepp(t, "config")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "map-directory:")
		assert.Equal(t, stderr, "")
	},

	"config -o json prints the active configuration as json": func(t *testing.T) {
		stdout, stderr, exitCode := tracepp(t, "config", "-o", "json")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "{")
		assert.Equal(t, stderr, "")
	},

	"config -o yaml prints the active configuration as yaml": func(t *testing.T) {
		stdout, stderr, exitCode := tracepp(t, "config", "-o", "yaml")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "map-directory:")
		assert.Equal(t, stderr, "")
	},

	"config -o with an unsupported format is a usage error": func(t *testing.T) {
		_, stderr, exitCode := tracepp(t, "config", "-o", "xml")
		assert.Equal(t, exitCode, 2)
		if !strings.Contains(stderr, "unsupported output format") {
			t.Fatalf("expected an unsupported output format error, got: %q", stderr)
		}
	},
}
