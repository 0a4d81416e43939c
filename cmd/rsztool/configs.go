package main

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"

	"github.com/scott-cotton/cli"

	"github.com/rsztools/rszfile"
	"github.com/rsztools/rszfile/errors"
	"github.com/rsztools/rszfile/rsz"
	"github.com/rsztools/rszfile/schema"
	"github.com/rsztools/rszfile/stream"
)

type MainConfig struct {
	Schema      string `cli:"name=schema desc='schema dump (JSON)'"`
	Cache       string `cli:"name=cache desc='compiled schema cache, read when fresh and rewritten otherwise'"`
	Patches     string `cli:"name=patches desc='field type patch file (JSON)'"`
	SavePatches bool   `cli:"name=save-patches desc='write inferred field types back to the patch file'"`
	Overlay     string `cli:"name=overlay desc='JSON merge patch applied to the schema dump'"`
	Policy      string `cli:"name=policy desc='reference policy (YAML)'"`
	Offset      int    `cli:"name=offset desc='byte offset of the container within each file'"`
	Scan        bool   `cli:"name=scan desc='decode every container found in each file'"`
	Embedded    bool   `cli:"name=embedded desc='user data entries hold embedded containers'"`
	Color       bool   `cli:"name=color desc='color warnings and errors'"`

	store   *schema.Store
	decoder *rsz.Decoder

	Main *cli.Command
}

// sources reads the files the schema is built from. Missing optional files
// are returned as nil.
func (cfg *MainConfig) sources() (dump, patches, overlay []byte, err error) {
	if cfg.Schema == "" {
		return nil, nil, nil, fmt.Errorf("%w: -schema is required", cli.ErrUsage)
	}
	if dump, err = os.ReadFile(cfg.Schema); err != nil {
		return nil, nil, nil, err
	}
	if cfg.Patches != "" {
		patches, err = os.ReadFile(cfg.Patches)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, nil, err
		}
	}
	if cfg.Overlay != "" {
		if overlay, err = os.ReadFile(cfg.Overlay); err != nil {
			return nil, nil, nil, err
		}
	}
	return dump, patches, overlay, nil
}

// loadStore builds the schema from its sources, through the cache when one
// is configured.
func (cfg *MainConfig) loadStore() (*schema.Store, error) {
	if cfg.store != nil {
		return cfg.store, nil
	}
	dump, patchData, overlay, err := cfg.sources()
	if err != nil {
		return nil, err
	}
	fp := schema.Fingerprint(dump, patchData, overlay)

	if cfg.Cache != "" {
		if f, err := os.Open(cfg.Cache); err == nil {
			store, err := schema.ReadCache(f, fp)
			f.Close()
			if err == nil {
				cfg.store = store
				return store, nil
			}
		}
	}

	var opts []schema.LoadOption
	if patchData != nil {
		patches, err := schema.ReadPatches(bytes.NewReader(patchData))
		if err != nil {
			return nil, fmt.Errorf("read patches: %w", err)
		}
		opts = append(opts, schema.WithPatches(patches))
	}
	if overlay != nil {
		opts = append(opts, schema.WithOverlay(overlay))
	}
	store, err := schema.Parse(dump, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Cache != "" {
		if err := writeCache(cfg.Cache, store, fp); err != nil {
			return nil, err
		}
	}
	cfg.store = store
	return store, nil
}

func writeCache(path string, store *schema.Store, fp [32]byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := schema.WriteCache(f, store, fp); err != nil {
		f.Close()
		return fmt.Errorf("write cache: %w", err)
	}
	return f.Close()
}

func (cfg *MainConfig) loadDecoder() (*rsz.Decoder, error) {
	if cfg.decoder != nil {
		return cfg.decoder, nil
	}
	store, err := cfg.loadStore()
	if err != nil {
		return nil, err
	}
	d := &rsz.Decoder{Schema: store, EmbeddedUserData: cfg.Embedded}
	if cfg.Policy != "" {
		if d.Policy, err = schema.LoadPolicy(cfg.Policy); err != nil {
			return nil, fmt.Errorf("load policy: %w", err)
		}
	}
	cfg.decoder = d
	return d, nil
}

// savePatches writes the patch table back to its file when decoding has
// resolved new field types.
func (cfg *MainConfig) savePatches() error {
	if !cfg.SavePatches || cfg.store == nil || !cfg.store.Patches.Dirty() {
		return nil
	}
	if cfg.Patches == "" {
		return fmt.Errorf("%w: -save-patches requires -patches", cli.ErrUsage)
	}
	f, err := os.Create(cfg.Patches)
	if err != nil {
		return err
	}
	if _, err := cfg.store.Patches.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// located is a container decoded from a file.
type located struct {
	Offset    int64
	Container *rszfile.Container
}

// decodeData decodes the containers held by data. With scan set, every
// container found is decoded, and the failure of one does not stop the
// others; otherwise only the container at offset is decoded. Warnings are
// returned unwrapped so that they can be inspected.
func decodeData(d *rsz.Decoder, data []byte, offset int64, scan bool) (list []located, warn, err error) {
	offsets := []int64{offset}
	if scan {
		offsets = rsz.Find(data)
		if len(offsets) == 0 {
			return nil, nil, errors.New("no container found")
		}
	}
	var warns, errs errors.Errors
	s := stream.New(data)
	for _, off := range offsets {
		if err := s.Seek(off); err != nil {
			return list, warns.Return(), err
		}
		c, w, err := d.Decode(s)
		warn := errors.Union(warns, w)
		warns, _ = warn.(errors.Errors)
		if err != nil {
			errs = errs.Append(fmt.Errorf("offset %d: %w", off, err))
			continue
		}
		list = append(list, located{Offset: off, Container: c})
	}
	return list, warns.Return(), errs.Return()
}

// decodeFile decodes the containers of the file at path according to the
// options of cfg.
func (cfg *MainConfig) decodeFile(path string) (list []located, warn, err error) {
	d, err := cfg.loadDecoder()
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return decodeData(d, data, int64(cfg.Offset), cfg.Scan)
}

type StatConfig struct {
	*MainConfig
	JSON bool `cli:"name=json desc='write stats as JSON'"`
	Top  int  `cli:"name=top desc='number of largest arrays to list'"`

	Stat *cli.Command
}

type DumpConfig struct {
	*MainConfig
	Dump *cli.Command
}

type FindConfig struct {
	*MainConfig
	Expr string `cli:"name=expr aliases=e desc='predicate over Class, Index and Fields'"`

	Find *cli.Command
}

type DiffConfig struct {
	*MainConfig
	Diff *cli.Command
}

type RewriteConfig struct {
	*MainConfig
	Version int  `cli:"name=version desc='container version to write (default: keep)'"`
	Rebuild bool `cli:"name=rebuild desc='rebuild the instance list from the objects'"`

	Rewrite *cli.Command
}

type CacheConfig struct {
	*MainConfig
	Out string `cli:"name=o desc='output file'"`

	Command *cli.Command
}
