package main

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/stealthrocket/tracepp/internal/tracepp"
)

func init() {
	// TODO: do something better with logs
	log.SetOutput(io.Discard)

	if path := os.Getenv("TRACEPPCONFIG"); path != "" {
		_ = tracepp.ConfigPath.Set(path)
	}
}

func main() {
	os.Exit(root(context.Background(), os.Args[1:]...))
}
