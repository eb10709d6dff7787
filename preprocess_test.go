package main_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stealthrocket/tracepp/internal/assert"
)

var preprocessSuite = tests{
	"show the preprocess command help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := tracepp(t, "preprocess", "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\ttracepp preprocess [options]")
		assert.Equal(t, stderr, "")
	},

	"preprocess requires --trace-dir": func(t *testing.T) {
		_, stderr, exitCode := tracepp(t, "preprocess")
		assert.Equal(t, exitCode, 2)
		assert.HasPrefix(t, stderr, "tracepp preprocess: --trace-dir is required")
	},

	"preprocess a minimal run end to end": func(t *testing.T) {
		traceDir := t.TempDir()
		writeFile(t, filepath.Join(traceDir, "scripts.txt"), "0\tmain.js\n")
		writeFile(t, filepath.Join(traceDir, "prefix.trace"), "L:0|c;0;1:0:1:1;0;2:0:2:1;foo\n0\n")

		testcasePath := filepath.Join(traceDir, "run-1.trace")
		writeFile(t, testcasePath, "L:0|c;0;1:0:1:1;0;2:0:2:1;foo\n0\n")

		mapDir := t.TempDir()

		_, stderr, exitCode := tracepp(t, "preprocess", "--trace-dir", traceDir, "--map-directory", mapDir, testcasePath)
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stderr, "")

		if _, err := os.Stat(filepath.Join(mapDir, "main_js.map")); err != nil {
			t.Fatalf("expected a map file for main.js: %v", err)
		}
		if _, err := os.Stat(filepath.Join(mapDir, "[extern].map")); err != nil {
			t.Fatalf("expected a map file for [extern]: %v", err)
		}
	},
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0666); err != nil {
		t.Fatal(err)
	}
}
