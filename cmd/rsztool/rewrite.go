package main

import (
	"fmt"
	"io"
	"os"

	"github.com/scott-cotton/cli"

	"github.com/rsztools/rszfile/rsz"
	"github.com/rsztools/rszfile/stream"
)

// rewrite reads the container at the configured offset of INPUT, and writes
// to OUTPUT the bytes preceding it followed by the container encoded again.
// If INPUT is "-", stdin is used. If OUTPUT is "-" or unspecified, stdout is
// used.
func rewrite(cfg *RewriteConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Rewrite.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: rewrite requires an input and an optional output", cli.ErrUsage)
	}
	if cfg.Scan {
		return fmt.Errorf("%w: rewrite does not support -scan", cli.ErrUsage)
	}
	d, err := cfg.loadDecoder()
	if err != nil {
		return err
	}

	var data []byte
	if args[0] == "-" {
		data, err = io.ReadAll(cc.In)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	out, warn, err := rewriteData(d, rsz.Encoder{Version: uint32(cfg.Version)}, data, int64(cfg.Offset), cfg.Rebuild)
	newReporter(os.Stderr, cfg.Color).warnings(args[0], warn)
	if err != nil {
		return err
	}

	if len(args) < 2 || args[1] == "-" {
		_, err = cc.Out.Write(out)
		return err
	}
	f, err := os.Create(args[1])
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if _, err := f.Write(out); err != nil {
		f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync output: %w", err)
	}
	return f.Close()
}

// rewriteData decodes the container at offset of data and returns the bytes
// preceding it followed by the container encoded with e. With rebuild set,
// the instance list is laid out again from the objects before encoding.
func rewriteData(d *rsz.Decoder, e rsz.Encoder, data []byte, offset int64, rebuild bool) (out []byte, warn, err error) {
	if offset < 0 || offset > int64(len(data)) {
		return nil, nil, fmt.Errorf("offset %d outside of input", offset)
	}
	list, warn, err := decodeData(d, data, offset, false)
	if err != nil {
		return nil, warn, err
	}
	c := list[0].Container
	if rebuild {
		c.RebuildTables()
	}

	prefix := make([]byte, offset, offset+int64(len(data)))
	copy(prefix, data[:offset])
	s := stream.New(prefix)
	if err := s.Seek(offset); err != nil {
		return nil, warn, err
	}
	if _, err := e.Encode(c, s); err != nil {
		return nil, warn, fmt.Errorf("encode: %w", err)
	}
	return s.Bytes(), warn, nil
}
