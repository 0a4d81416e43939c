package main

import (
	"fmt"

	"github.com/scott-cotton/cli"

	"github.com/rsztools/rszfile/schema"
)

func cache(cfg *CacheConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Command.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) != 0 {
		return fmt.Errorf("%w: cache takes no arguments", cli.ErrUsage)
	}
	if cfg.Out == "" {
		return fmt.Errorf("%w: cache requires -o", cli.ErrUsage)
	}
	dump, patches, overlay, err := cfg.sources()
	if err != nil {
		return err
	}
	store, err := cfg.loadStore()
	if err != nil {
		return err
	}
	if err := writeCache(cfg.Out, store, schema.Fingerprint(dump, patches, overlay)); err != nil {
		return err
	}
	fmt.Fprintf(cc.Out, "%s: %d classes\n", cfg.Out, store.Len())
	return nil
}
