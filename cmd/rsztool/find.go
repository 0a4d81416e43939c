package main

import (
	"fmt"
	"io"
	"os"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/scott-cotton/cli"

	"github.com/rsztools/rszfile"
)

func find(cfg *FindConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Find.Parse(cc, args)
	if err != nil {
		return err
	}
	if cfg.Expr == "" {
		return fmt.Errorf("%w: find requires -expr", cli.ErrUsage)
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: find requires at least one file", cli.ErrUsage)
	}
	prg, err := compileFind(cfg.Expr)
	if err != nil {
		return fmt.Errorf("%w: %w", cli.ErrUsage, err)
	}
	rep := newReporter(os.Stderr, cfg.Color)
	for _, file := range args {
		list, warn, err := cfg.decodeFile(file)
		rep.warnings(file, warn)
		if err != nil {
			return fmt.Errorf("error processing %s: %w", file, err)
		}
		for _, l := range list {
			if err := findIn(cc.Out, prg, file, l); err != nil {
				return err
			}
		}
	}
	return nil
}

func compileFind(src string) (*vm.Program, error) {
	return expr.Compile(src, expr.AsBool())
}

func findIn(w io.Writer, prg *vm.Program, file string, l located) error {
	found, err := findMatches(prg, l.Container)
	if err != nil {
		return fmt.Errorf("%s@%d: %w", file, l.Offset, err)
	}
	for _, inst := range found {
		fmt.Fprintf(w, "%s@%d: %s\n", file, l.Offset, inst)
	}
	return nil
}

// findMatches returns the instances reachable from the objects of c for
// which prg is true, in the order of the instance list layout.
func findMatches(prg *vm.Program, c *rszfile.Container) ([]*rszfile.Instance, error) {
	var found []*rszfile.Instance
	seen := map[*rszfile.Instance]bool{}
	for _, root := range c.Objects() {
		for inst := range rszfile.Flatten(root, nil) {
			if seen[inst] {
				continue
			}
			seen[inst] = true
			out, err := expr.Run(prg, instanceEnv(inst))
			if err != nil {
				return found, fmt.Errorf("%s: %w", inst, err)
			}
			if ok, _ := out.(bool); ok {
				found = append(found, inst)
			}
		}
	}
	return found, nil
}

// instanceEnv returns the variables visible to find expressions.
func instanceEnv(inst *rszfile.Instance) map[string]any {
	fields := make(map[string]any, len(inst.Values))
	for i, v := range inst.Values {
		fields[inst.Class.Fields[i].Name] = envValue(v)
	}
	return map[string]any{
		"Class":    inst.Class.Name,
		"Index":    inst.Index,
		"Fields":   fields,
		"UserData": inst.IsUserData(),
	}
}

func envValue(v rszfile.Value) any {
	switch v := v.(type) {
	case rszfile.ValueBool:
		return bool(v)
	case rszfile.ValueInt:
		return int(v.Value)
	case rszfile.ValueUint:
		return int(v.Value)
	case rszfile.ValueFloat:
		return v.Value
	case rszfile.ValueString:
		return v.Value
	case rszfile.ValueRuntimeType:
		return string(v)
	case rszfile.ValueReference:
		if v.Instance == nil {
			return 0
		}
		return v.Instance.Index
	case rszfile.ValueVector:
		list := make([]any, len(v.Value))
		for i, f := range v.Value {
			list[i] = float64(f)
		}
		return list
	case rszfile.ValueVector64:
		list := make([]any, len(v.Value))
		for i, f := range v.Value {
			list[i] = f
		}
		return list
	case rszfile.ValueIntVector:
		list := make([]any, len(v.Value))
		for i, n := range v.Value {
			list[i] = int(n)
		}
		return list
	case rszfile.ValueUintVector:
		list := make([]any, len(v.Value))
		for i, n := range v.Value {
			list[i] = int(n)
		}
		return list
	case rszfile.ValueArray:
		list := make([]any, len(v.Values))
		for i, e := range v.Values {
			list[i] = envValue(e)
		}
		return list
	case nil:
		return nil
	}
	return v.String()
}
