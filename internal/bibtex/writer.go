package bibtex

import (
	"bytes"
	"fmt"
)

// Render serializes the file back to bibliography source text. Entries
// parsed from source reproduce their bytes exactly (with only the key
// spliced when renamed); entries without a source span are formatted in
// the standard layout. The output always ends with a newline.
func (f *File) Render() []byte {
	var b bytes.Buffer
	for i := range f.Entries {
		e := &f.Entries[i]
		b.WriteString(e.Leading)
		if e.Raw != "" {
			b.WriteString(e.Raw)
		} else {
			writeEntry(&b, e)
		}
	}
	b.WriteString(f.Trailing)
	out := b.Bytes()
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	return out
}

func writeEntry(b *bytes.Buffer, e *Entry) {
	fmt.Fprintf(b, "@%s{%s,\n", e.Type, e.Key)
	for _, f := range e.Fields {
		fmt.Fprintf(b, "  %s = {%s},\n", f.Name, f.Value)
	}
	b.WriteString("}")
}
