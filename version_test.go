package main_test

import (
	"strings"
	"testing"

	"github.com/stealthrocket/tracepp/internal/assert"
)

var versionSuite = tests{
	"show the version command help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := tracepp(t, "version", "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\ttracepp version\n")
		assert.Equal(t, stderr, "")
	},

	"show the version command help with the long option": func(t *testing.T) {
		stdout, stderr, exitCode := tracepp(t, "version", "--help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\ttracepp version\n")
		assert.Equal(t, stderr, "")
	},

	"the version starts with the prefix tracepp": func(t *testing.T) {
		stdout, stderr, exitCode := tracepp(t, "version")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "tracepp ")
		assert.Equal(t, stderr, "")
	},

	"the version number is not empty": func(t *testing.T) {
		stdout, stderr, exitCode := tracepp(t, "version")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stderr, "")

		_, v, _ := strings.Cut(stdout, " ")
		if strings.TrimSpace(v) == "" {
			t.Fatal("version number is empty")
		}
	},
}
