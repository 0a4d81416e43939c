package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/rsztools/rszfile/errors"
	"github.com/rsztools/rszfile/rsz"
)

// reporter writes warnings and errors for each processed file.
type reporter struct {
	w      io.Writer
	warnf  func(string, ...any) string
	errorf func(string, ...any) string
}

func plain(format string, a ...any) string {
	return fmt.Sprintf(format, a...)
}

// newReporter returns a reporter writing to w. Messages are colored when
// force is set or w is a terminal.
func newReporter(w io.Writer, force bool) *reporter {
	r := &reporter{w: w, warnf: plain, errorf: plain}
	if !force {
		f, ok := w.(*os.File)
		if !ok || !isatty.IsTerminal(f.Fd()) {
			return r
		}
	}
	warn := color.New(color.FgYellow)
	warn.EnableColor()
	fail := color.New(color.FgRed, color.Bold)
	fail.EnableColor()
	r.warnf = warn.SprintfFunc()
	r.errorf = fail.SprintfFunc()
	return r
}

// warnings writes one line per warning held by warn.
func (r *reporter) warnings(file string, warn error) {
	if warn == nil {
		return
	}
	errs, ok := warn.(errors.Errors)
	if !ok {
		errs = errors.Errors{warn}
	}
	for _, w := range errs {
		fmt.Fprintln(r.w, r.warnf("%s: warning: %s", file, w))
	}
}

func (r *reporter) error(file string, err error) {
	fmt.Fprintln(r.w, r.errorf("%s: error: %s", file, err))
}

// warningKinds counts the warnings held by warn per kind.
func warningKinds(warn error) map[string]int {
	m := map[string]int{}
	for _, w := range errors.Collect[rsz.Warning](warn) {
		m[w.Kind.String()]++
	}
	return m
}
