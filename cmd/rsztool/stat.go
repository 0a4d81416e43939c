package main

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/scott-cotton/cli"

	"github.com/rsztools/rszfile"
)

type ArrayLen struct {
	Class  string
	Field  string
	Type   string
	Length int
}

func (a ArrayLen) String() string {
	return fmt.Sprintf("%s.%s:%s(%d)", a.Class, a.Field, a.Type, a.Length)
}

type Stats struct {
	// Number of files processed, and of those that failed.
	Files  int
	Failed int

	// Number of containers decoded.
	Containers int

	// Number of instances overall, excluding Null.
	InstanceCount int

	// Number of field values overall.
	FieldCount int

	// Number of user data entries overall.
	UserDataCount int

	// Number of instances per class.
	ClassCount map[string]int

	// Number of values per type.
	TypeCount map[string]int

	// Number of warnings per kind.
	WarningCount map[string]int `json:",omitempty"`

	LargestArrays []ArrayLen `json:",omitempty"`

	top int
}

func newStats(top int) *Stats {
	return &Stats{
		ClassCount:   map[string]int{},
		TypeCount:    map[string]int{},
		WarningCount: map[string]int{},
		top:          top,
	}
}

// Fill adds the instances of c, including those of embedded containers.
func (s *Stats) Fill(c *rszfile.Container) {
	if c == nil {
		return
	}
	s.Containers++
	s.UserDataCount += len(c.UserData)
	for _, inst := range c.Instances[1:] {
		s.InstanceCount++
		s.ClassCount[inst.Class.Name]++
		for i, v := range inst.Values {
			if v == nil {
				continue
			}
			s.FieldCount++
			s.TypeCount[v.Type().String()]++
			if a, ok := v.(rszfile.ValueArray); ok && len(a.Values) > 0 {
				s.addArray(ArrayLen{
					Class:  inst.Class.Name,
					Field:  inst.Class.Fields[i].Name,
					Type:   a.Tag.String(),
					Length: len(a.Values),
				})
			}
		}
		if ud := inst.UserData; ud != nil && ud.Embedded != nil {
			s.Fill(ud.Embedded)
		}
	}
}

// addArray keeps the top largest arrays.
func (s *Stats) addArray(a ArrayLen) {
	if s.top <= 0 {
		return
	}
	i := sort.Search(len(s.LargestArrays), func(i int) bool {
		return s.LargestArrays[i].Length < a.Length
	})
	if i >= s.top {
		return
	}
	s.LargestArrays = append(s.LargestArrays, ArrayLen{})
	copy(s.LargestArrays[i+1:], s.LargestArrays[i:])
	s.LargestArrays[i] = a
	if len(s.LargestArrays) > s.top {
		s.LargestArrays = s.LargestArrays[:s.top]
	}
}

func (s *Stats) addWarnings(warn error) {
	for k, n := range warningKinds(warn) {
		s.WarningCount[k] += n
	}
}

// WriteText writes the stats as aligned text.
func (s *Stats) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "files:      %d (%d failed)\n", s.Files, s.Failed)
	fmt.Fprintf(w, "containers: %d\n", s.Containers)
	fmt.Fprintf(w, "instances:  %d\n", s.InstanceCount)
	fmt.Fprintf(w, "fields:     %d\n", s.FieldCount)
	fmt.Fprintf(w, "user data:  %d\n", s.UserDataCount)
	writeCounts(w, "classes", s.ClassCount)
	writeCounts(w, "types", s.TypeCount)
	writeCounts(w, "warnings", s.WarningCount)
	if len(s.LargestArrays) > 0 {
		fmt.Fprintln(w, "largest arrays:")
		for _, a := range s.LargestArrays {
			fmt.Fprintf(w, "\t%s\n", a)
		}
	}
	return nil
}

func writeCounts(w io.Writer, title string, m map[string]int) {
	if len(m) == 0 {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	fmt.Fprintf(w, "%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "\t%6d %s\n", m[k], k)
	}
}

// expandPaths returns the regular files named by args, walking directories.
func expandPaths(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		err := filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func stat(cfg *StatConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Stat.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: stat requires at least one file or directory", cli.ErrUsage)
	}
	if _, err := cfg.loadDecoder(); err != nil {
		return err
	}
	files, err := expandPaths(args)
	if err != nil {
		return err
	}

	rep := newReporter(os.Stderr, cfg.Color)
	stats := newStats(cfg.Top)
	for _, file := range files {
		stats.Files++
		list, warn, err := cfg.decodeFile(file)
		rep.warnings(file, warn)
		stats.addWarnings(warn)
		if err != nil {
			stats.Failed++
			rep.error(file, err)
		}
		for _, l := range list {
			stats.Fill(l.Container)
		}
	}

	if cfg.JSON {
		je := json.NewEncoder(cc.Out)
		je.SetEscapeHTML(false)
		je.SetIndent("", "\t")
		if err := je.Encode(stats); err != nil {
			return fmt.Errorf("write stats: %w", err)
		}
	} else if err := stats.WriteText(cc.Out); err != nil {
		return err
	}
	if stats.Failed > 0 {
		return cli.ExitCodeErr(1)
	}
	return nil
}
