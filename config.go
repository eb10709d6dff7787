package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/stealthrocket/tracepp/internal/tracepp"
	"gopkg.in/yaml.v3"
)

const configUsage = `
Usage:	tracepp config [options]

Options:
   -c, --config path    Path to the tracepp configuration file (overrides TRACEPPCONFIG env var)
       --edit           Open $EDITOR to edit the configuration
   -h, --help           Show usage information
   -o, --output format  Output format, one of: text, json, yaml
`

// outputFormat is a flag.Value restricting --output to a small set of
// known encodings.
type outputFormat string

func (o outputFormat) String() string { return string(o) }

func (o *outputFormat) Set(value string) error {
	switch value {
	case "text", "json", "yaml":
		*o = outputFormat(value)
		return nil
	default:
		return fmt.Errorf("unsupported output format: %q (not one of text, json, yaml)", value)
	}
}

func config(ctx context.Context, args []string) error {
	var (
		output = outputFormat("text")
		edit   bool
	)

	flagSet := newFlagSet("tracepp config", configUsage)
	customVar(flagSet, &output, "o", "output")
	boolVar(flagSet, &edit, "edit")

	if _, err := parseFlags(flagSet, args); err != nil {
		return err
	}

	if edit {
		if err := editConfig(); err != nil {
			return err
		}
	}

	conf, err := tracepp.LoadConfig()
	if err != nil {
		return err
	}
	return printConfig(os.Stdout, conf, output)
}

// editConfig opens $EDITOR on a scratch copy of the configuration file
// and, if the result still parses and validates, swaps it in for the
// real file. The original is left untouched on any failure along the
// way, including a bad edit.
func editConfig() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		return errors.New(`$EDITOR is not set`)
	}
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}

	r, path, err := tracepp.OpenConfig()
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		if !errors.Is(err, fs.ErrExist) {
			return err
		}
	}

	tmp, err := createTempFile(path, r)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	if err := runInteractive(shell, editor, tmp); err != nil {
		return err
	}

	f, err := os.Open(tmp)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := tracepp.ReadConfig(f); err != nil {
		return fmt.Errorf("not applying configuration updates: %w", err)
	}

	return os.Rename(tmp, path)
}

// runInteractive runs editor on path through shell, connecting its
// standard streams to the controlling terminal, and waits for it to exit.
func runInteractive(shell, editor, path string) error {
	p, err := os.StartProcess(shell, []string{shell, "-c", editor + " " + path}, &os.ProcAttr{
		Files: []*os.File{
			0: os.Stdin,
			1: os.Stdout,
			2: os.Stderr,
		},
	})
	if err != nil {
		return err
	}
	_, err = p.Wait()
	return err
}

// printConfig writes conf to w in the requested format. The "text"
// format echoes the configuration file's own bytes verbatim when it
// exists, falling back to a YAML rendering of the in-memory defaults
// when no file has been written yet.
func printConfig(w io.Writer, conf *tracepp.Config, format outputFormat) error {
	switch format {
	case "json":
		e := json.NewEncoder(w)
		e.SetEscapeHTML(false)
		e.SetIndent("", "  ")
		return e.Encode(conf)
	case "yaml":
		return encodeYAML(w, conf)
	default:
		r, _, err := tracepp.OpenConfig()
		switch {
		case err == nil:
			defer r.Close()
			_, err = io.Copy(w, r)
			return err
		case errors.Is(err, fs.ErrNotExist):
			return encodeYAML(w, conf)
		default:
			return err
		}
	}
}

func encodeYAML(w io.Writer, conf *tracepp.Config) error {
	e := yaml.NewEncoder(w)
	e.SetIndent(2)
	if err := e.Encode(conf); err != nil {
		return err
	}
	return e.Close()
}

func createTempFile(path string, r io.Reader) (string, error) {
	dir, file := filepath.Split(path)
	w, err := os.CreateTemp(dir, "."+file+".*")
	if err != nil {
		return "", err
	}
	defer w.Close()
	_, err = io.Copy(w, r)
	return w.Name(), err
}
