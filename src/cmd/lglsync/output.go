package main

import (
	"fmt"
	"io"
	"os"
)

// OutputHandler gates all launcher console output behind quiet mode.
// Structured service logging is configured separately and has its own
// quiet handling.
type OutputHandler struct {
	quiet  bool
	stdout io.Writer
	stderr io.Writer
}

var output *OutputHandler

func InitOutputHandler(quiet bool) {
	output = &OutputHandler{
		quiet:  quiet,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

func (o *OutputHandler) Print(format string, args ...any) {
	if !o.quiet {
		fmt.Fprintf(o.stdout, format, args...)
	}
}

func (o *OutputHandler) Error(format string, args ...any) {
	if !o.quiet {
		fmt.Fprintf(o.stderr, format, args...)
	}
}

// FatalError writes to stderr (unless quiet) and exits.
func (o *OutputHandler) FatalError(code int, format string, args ...any) {
	o.Error(format, args...)
	os.Exit(code)
}

// Package-level helpers for the global handler.
func Print(format string, args ...any) {
	if output != nil {
		output.Print(format, args...)
	}
}

func Error(format string, args ...any) {
	if output != nil {
		output.Error(format, args...)
	}
}

func FatalError(code int, format string, args ...any) {
	if output != nil {
		output.FatalError(code, format, args...)
	}
	// Fallback if handler not initialized
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(code)
}
