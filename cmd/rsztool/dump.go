package main

import (
	"fmt"
	"io"
	"os"

	"github.com/scott-cotton/cli"

	"github.com/rsztools/rszfile/rsz"
)

func dump(cfg *DumpConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Dump.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: dump requires at least one file", cli.ErrUsage)
	}
	rep := newReporter(os.Stderr, cfg.Color)
	for i, file := range args {
		if i > 0 {
			io.WriteString(cc.Out, "\n")
		}
		if err := dumpFile(cfg.MainConfig, rep, cc.Out, file); err != nil {
			return fmt.Errorf("error processing %s: %w", file, err)
		}
	}
	return nil
}

func dumpFile(cfg *MainConfig, rep *reporter, w io.Writer, file string) error {
	list, warn, err := cfg.decodeFile(file)
	rep.warnings(file, warn)
	if err != nil {
		return err
	}
	return dumpList(w, file, list)
}

// dumpList writes each container of list preceded by a line naming it.
func dumpList(w io.Writer, file string, list []located) error {
	for _, l := range list {
		fmt.Fprintf(w, "# %s@%d\n", file, l.Offset)
		if err := rsz.Dump(w, l.Container); err != nil {
			return err
		}
	}
	return nil
}
