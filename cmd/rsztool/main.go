// The rsztool command inspects and rewrites RSZ containers.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/scott-cotton/cli"

	"github.com/rsztools/rszfile/errors"
)

func main() {
	cli.MainContext(context.Background(), MainCommand())
}

func MainCommand() *cli.Command {
	cfg := &MainConfig{}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Main, "rsztool").
		WithSynopsis("rsztool -schema file [opts] command [opts] [files]").
		WithDescription("rsztool decodes, inspects, and rewrites RSZ containers.").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return rszMain(cfg, cc, args)
		}).
		WithSubs(
			StatCommand(cfg),
			DumpCommand(cfg),
			FindCommand(cfg),
			DiffCommand(cfg),
			RewriteCommand(cfg),
			CacheCommand(cfg))
}

func rszMain(cfg *MainConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Main.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return cli.ErrNoCommandProvided
	}
	sub := cfg.Main.FindSub(cc, args[0])
	if sub == nil {
		return fmt.Errorf("%w: %q not found", cli.ErrNoSuchCommand, args[0])
	}
	err = sub.Run(cc, args[1:])
	if errors.Is(err, cli.ErrUsage) {
		sub.Usage(cc, err)
		os.Exit(sub.Exit(cc, err))
	}
	if err == nil {
		err = cfg.savePatches()
	}
	return err
}

func StatCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &StatConfig{MainConfig: mainCfg, Top: 20}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Stat, "stat").
		WithAliases("s").
		WithSynopsis("stat [-json] [-top n] files|dirs...").
		WithDescription("report statistics for containers; failures are tallied and processing continues").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return stat(cfg, cc, args)
		})
}

func DumpCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &DumpConfig{MainConfig: mainCfg}
	return cli.NewCommandAt(&cfg.Dump, "dump").
		WithSynopsis("dump files...").
		WithDescription("write a readable dump of containers").
		WithRun(func(cc *cli.Context, args []string) error {
			return dump(cfg, cc, args)
		})
}

func FindCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &FindConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Find, "find").
		WithAliases("f").
		WithSynopsis("find -expr <expr> files...").
		WithDescription(findDescription).
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return find(cfg, cc, args)
		})
}

const findDescription = `find lists the instances reachable from the objects of each container for
which an expression is true.

The expression is evaluated for each instance with the variables:

  Class   the class name of the instance
  Index   the index of the instance
  Fields  a map of field names to values; references are instance indices,
          vectors and arrays are lists

For example:

  rsztool -schema rsz.json find -expr 'Class == "app.Item" && Fields.Value > 2' a.user`

func DiffCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &DiffConfig{MainConfig: mainCfg}
	return cli.NewCommandAt(&cfg.Diff, "diff").
		WithAliases("d").
		WithSynopsis("diff a b").
		WithDescription("compare the dumps of two containers; exits with 1 when they differ").
		WithRun(func(cc *cli.Context, args []string) error {
			return diff(cfg, cc, args)
		})
}

func RewriteCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &RewriteConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Rewrite, "rewrite").
		WithSynopsis("rewrite [-rebuild] [-version n] input [output]").
		WithDescription("decode a container and encode it again").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return rewrite(cfg, cc, args)
		})
}

func CacheCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &CacheConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Command, "cache").
		WithSynopsis("cache -o file").
		WithDescription("compile the schema, patches, and overlay into a cache file").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return cache(cfg, cc, args)
		})
}
