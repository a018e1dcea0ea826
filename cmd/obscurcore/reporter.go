package main

import (
	"fmt"
	"os"
)

// reporter prints start/error/success messages to stderr. Unlike the
// teacher's terminal progress bar, obscurcore has no byte-level progress
// signal to drive one: PayloadMux's schedule is opaque until it finishes,
// so reporter only brackets an operation rather than animating through it.
type reporter struct {
	quiet bool
}

func newReporter(quiet bool) *reporter { return &reporter{quiet: quiet} }

func (r *reporter) info(format string, args ...any) {
	if r.quiet {
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func (r *reporter) printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}

func (r *reporter) printSuccess(format string, args ...any) {
	if r.quiet {
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
