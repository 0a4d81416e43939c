package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
	"github.com/scott-cotton/cli"
)

func diff(cfg *DiffConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Diff.Parse(cc, args)
	if err != nil {
		cfg.Diff.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) != 2 {
		return fmt.Errorf("%w: diff requires 2 args, got %v", cli.ErrUsage, args)
	}
	rep := newReporter(os.Stderr, cfg.Color)
	var dumps [2]string
	for i, file := range args {
		var buf bytes.Buffer
		if err := dumpFile(cfg.MainConfig, rep, &buf, file); err != nil {
			return fmt.Errorf("error decoding %s: %w", file, err)
		}
		// Drop the header line naming the file.
		_, body, _ := strings.Cut(buf.String(), "\n")
		dumps[i] = body
	}
	if writeDiff(cc.Out, args[0], args[1], dumps[0], dumps[1]) {
		return cli.ExitCodeErr(1)
	}
	return nil
}

// writeDiff writes a line diff of from and to. Returns whether they differ.
func writeDiff(w io.Writer, fromName, toName, from, to string) bool {
	dmp := diffpatch.New()
	a, b, lines := dmp.DiffLinesToChars(from, to)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	differs := false
	for _, d := range diffs {
		if d.Type != diffpatch.DiffEqual {
			differs = true
			break
		}
	}
	if !differs {
		return false
	}

	fmt.Fprintf(w, "--- %s\n+++ %s\n", fromName, toName)
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffpatch.DiffInsert:
			prefix = "+"
		case diffpatch.DiffDelete:
			prefix = "-"
		}
		text := strings.TrimSuffix(d.Text, "\n")
		for _, line := range strings.Split(text, "\n") {
			fmt.Fprintf(w, "%s%s\n", prefix, line)
		}
	}
	return true
}
