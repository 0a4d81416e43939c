package rsz

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/rsztools/rszfile"
)

// Dump writes to w a readable representation of c. The output is stable for
// equal graphs, which makes it suitable for comparing containers.
func Dump(w io.Writer, c *rszfile.Container) error {
	bw := bufio.NewWriter(w)
	dumpContainer(bw, 0, c)
	bw.WriteByte('\n')
	return bw.Flush()
}

func dumpContainer(w *bufio.Writer, indent int, c *rszfile.Container) {
	fmt.Fprintf(w, "Version: %d", c.Version)
	dumpNewline(w, indent)
	fmt.Fprintf(w, "Objects: (count:%d) {", len(c.ObjectTable))
	for i, index := range c.ObjectTable {
		dumpNewline(w, indent+1)
		fmt.Fprintf(w, "%d: %s", i, c.Instance(index))
	}
	dumpNewline(w, indent)
	w.WriteByte('}')

	dumpNewline(w, indent)
	fmt.Fprintf(w, "Instances: (count:%d) {", len(c.Instances))
	for _, inst := range c.Instances[1:] {
		dumpNewline(w, indent+1)
		dumpInstance(w, indent+1, inst)
	}
	dumpNewline(w, indent)
	w.WriteByte('}')
}

func dumpInstance(w *bufio.Writer, indent int, inst *rszfile.Instance) {
	fmt.Fprintf(w, "#%d: %s (hash:%08x) {", inst.Index, inst.Class.Name, inst.Class.Hash)
	if ud := inst.UserData; ud != nil {
		dumpNewline(w, indent+1)
		if ud.Embedded != nil {
			fmt.Fprintf(w, "UserData: (embedded) (path hash:%08x) {", ud.PathHash)
			dumpNewline(w, indent+2)
			dumpContainer(w, indent+2, ud.Embedded)
			dumpNewline(w, indent+1)
			w.WriteByte('}')
		} else {
			w.WriteString("UserData: ")
			dumpString(w, indent+1, ud.Path)
		}
	}
	for i, v := range inst.Values {
		dumpNewline(w, indent+1)
		f := inst.Class.Fields[i]
		fmt.Fprintf(w, "%s: %s ", f.Name, f.Effective())
		dumpValue(w, indent+1, wordSize(f.Size), v)
	}
	dumpNewline(w, indent)
	w.WriteByte('}')
}

// wordSize returns the width of the groups in which the raw bytes of a field
// of the given size are shown: the largest of 8, 4 and 2 dividing size, or 1.
func wordSize(size int) int {
	for _, n := range []int{8, 4, 2} {
		if size >= n && size%n == 0 {
			return n
		}
	}
	return 1
}

func dumpValue(w *bufio.Writer, indent, word int, v rszfile.Value) {
	switch v := v.(type) {
	case rszfile.ValueArray:
		fmt.Fprintf(w, "(count:%d) [", len(v.Values))
		for i, e := range v.Values {
			dumpNewline(w, indent+1)
			fmt.Fprintf(w, "%d: ", i)
			dumpValue(w, indent+1, word, e)
		}
		if len(v.Values) > 0 {
			dumpNewline(w, indent)
		}
		w.WriteByte(']')
	case rszfile.ValueString:
		dumpString(w, indent, v.Value)
	case rszfile.ValueRuntimeType:
		dumpString(w, indent, string(v))
	case rszfile.ValueRaw:
		dumpBytes(w, indent, word, v.Value)
	case rszfile.ValueReference:
		w.WriteString("-> ")
		w.WriteString(v.String())
	case nil:
		w.WriteString("<nil>")
	default:
		w.WriteString(v.String())
	}
}

func dumpNewline(w *bufio.Writer, indent int) {
	w.WriteByte('\n')
	w.WriteString(strings.Repeat("\t", indent))
}

func dumpString(w *bufio.Writer, indent int, s string) {
	if strings.IndexFunc(s, func(r rune) bool { return !unicode.IsGraphic(r) }) >= 0 {
		dumpBytes(w, indent, 1, []byte(s))
		return
	}
	fmt.Fprintf(w, "(len:%d) %s", len(s), strconv.Quote(s))
}

// dumpBytes writes b as rows of up to 16 bytes, each starting with the
// offset of its first byte, followed by the bytes in hex grouped by word,
// and by the printable bytes.
func dumpBytes(w *bufio.Writer, indent, word int, b []byte) {
	const row = 16
	fmt.Fprintf(w, "(len:%d)", len(b))
	for off := 0; off < len(b); off += row {
		line := b[off:min(off+row, len(b))]
		dumpNewline(w, indent+1)
		fmt.Fprintf(w, "%04x:", off)
		for i := 0; i < len(line); i += word {
			w.WriteByte(' ')
			w.WriteString(hex.EncodeToString(line[i:min(i+word, len(line))]))
		}
		w.WriteString("  |")
		for _, c := range line {
			if c < 32 || c > 126 {
				c = '.'
			}
			w.WriteByte(c)
		}
		w.WriteByte('|')
	}
}
