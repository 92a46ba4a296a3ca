package ui

import (
	"fmt"
	"io"

	"github.com/appstash/appstash/internal/core"
)

// The reporters here implement the engine's Reporter interface, one per
// presentation mode: the terminal mode draws bars and colors, the plain
// mode emits line-oriented text for scripts, tests use the nop reporter.

// TerminalReporter renders colored messages and a byte progress bar
type TerminalReporter struct {
	bar *ProgressBar
}

// NewTerminalReporter creates a reporter for interactive terminal use
func NewTerminalReporter() *TerminalReporter {
	return &TerminalReporter{}
}

// Progress updates (lazily creating) the copy progress bar
func (r *TerminalReporter) Progress(ev core.ProgressEvent) {
	if ev.TotalBytes <= 0 {
		return
	}
	if r.bar == nil {
		r.bar = NewProgressBarBytes(ev.TotalBytes, "copying "+ev.PackageID)
	}
	r.bar.Set64(ev.Bytes)
	if ev.FilesDone >= ev.FilesTotal && ev.Bytes >= ev.TotalBytes {
		r.bar.Finish()
		r.bar = nil
	}
}

func (r *TerminalReporter) Info(format string, args ...interface{})    { PrintInfo(format, args...) }
func (r *TerminalReporter) Success(format string, args ...interface{}) { PrintSuccess(format, args...) }
func (r *TerminalReporter) Warn(format string, args ...interface{})    { PrintWarning(format, args...) }
func (r *TerminalReporter) Failure(format string, args ...interface{}) { PrintError(format, args...) }

// PlainReporter emits line-oriented uncolored output for non-interactive use
type PlainReporter struct {
	Out io.Writer
	Err io.Writer
}

// NewPlainReporter creates a reporter writing plain lines to out/err
func NewPlainReporter(out, err io.Writer) *PlainReporter {
	return &PlainReporter{Out: out, Err: err}
}

// Progress is a no-op in plain mode: incremental output would garble logs
func (r *PlainReporter) Progress(core.ProgressEvent) {}

func (r *PlainReporter) Info(format string, args ...interface{}) {
	fmt.Fprintf(r.Out, format+"\n", args...)
}

func (r *PlainReporter) Success(format string, args ...interface{}) {
	fmt.Fprintf(r.Out, format+"\n", args...)
}

func (r *PlainReporter) Warn(format string, args ...interface{}) {
	fmt.Fprintf(r.Err, "warning: "+format+"\n", args...)
}

func (r *PlainReporter) Failure(format string, args ...interface{}) {
	fmt.Fprintf(r.Err, "error: "+format+"\n", args...)
}

// NopReporter discards everything; used in tests
type NopReporter struct{}

func (NopReporter) Progress(core.ProgressEvent)             {}
func (NopReporter) Info(string, ...interface{})             {}
func (NopReporter) Success(string, ...interface{})          {}
func (NopReporter) Warn(string, ...interface{})             {}
func (NopReporter) Failure(string, ...interface{})          {}
