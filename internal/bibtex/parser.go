package bibtex

import (
	"bytes"
	"fmt"
	"strings"
)

// ParseError reports structurally unrecoverable bibliography input.
type ParseError struct {
	Offset int // byte offset of the entry that failed
	Line   int // 1-based line of that offset
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at byte %d (line %d): %s", e.Offset, e.Line, e.Msg)
}

// Parse parses bibliography source text into an ordered File. Text outside
// entries, including @comment/@string/@preamble blocks, is preserved as
// surrounding text and reproduced verbatim by Render.
func Parse(src []byte) (*File, error) {
	p := &parser{src: src, line: 1}
	return p.parse()
}

type parser struct {
	src  []byte
	pos  int
	line int
}

func (p *parser) eof() bool  { return p.pos >= len(p.src) }
func (p *parser) cur() byte  { return p.src[p.pos] }
func (p *parser) next() {
	if p.src[p.pos] == '\n' {
		p.line++
	}
	p.pos++
}

// advanceTo moves the cursor forward to target, keeping the line count.
func (p *parser) advanceTo(target int) {
	for p.pos < target {
		p.next()
	}
}

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.cur()) {
		p.next()
	}
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func (p *parser) parse() (*File, error) {
	f := &File{}
	gapStart := 0
	for {
		idx := bytes.IndexByte(p.src[p.pos:], '@')
		if idx < 0 {
			break
		}
		p.advanceTo(p.pos + idx)
		atOffset, atLine := p.pos, p.line

		e, special, perr := p.tryEntry()
		if perr != nil {
			return nil, perr
		}
		if special {
			continue // block stays in the surrounding text
		}
		if e == nil {
			// '@' in ordinary prose, not an entry start
			p.advanceTo(atOffset + 1)
			continue
		}
		e.Leading = string(p.src[gapStart:atOffset])
		e.Offset, e.Line = atOffset, atLine
		f.Entries = append(f.Entries, *e)
		gapStart = p.pos
	}
	f.Trailing = string(p.src[gapStart:])
	return f, nil
}

// tryEntry parses the entry starting at the current '@'. It returns
// (nil, false, nil) when the '@' does not open an entry, and
// (nil, true, nil) for @comment/@string/@preamble blocks, which are
// consumed but not modeled.
func (p *parser) tryEntry() (*Entry, bool, *ParseError) {
	save := *p
	p.next() // '@'

	typStart := p.pos
	for !p.eof() && isAlpha(p.cur()) {
		p.next()
	}
	typ := string(p.src[typStart:p.pos])
	if typ == "" {
		*p = save
		return nil, false, nil
	}

	p.skipSpace()
	if p.eof() || (p.cur() != '{' && p.cur() != '(') {
		*p = save
		return nil, false, nil
	}
	closer := byte('}')
	if p.cur() == '(' {
		closer = ')'
	}

	switch strings.ToLower(typ) {
	case "comment", "string", "preamble":
		if perr := p.skipBalanced(save, "@"+strings.ToLower(typ)); perr != nil {
			return nil, false, perr
		}
		return nil, true, nil
	}

	p.next() // opening delimiter

	// Key runs to the first comma or the closing delimiter; surrounding
	// whitespace is not part of the key.
	keyStart := p.pos
	for !p.eof() && p.cur() != ',' && p.cur() != closer {
		p.next()
	}
	if p.eof() {
		return nil, false, p.unterminated(save, string(p.src[keyStart:p.pos]))
	}
	rawKey := string(p.src[keyStart:p.pos])
	key := strings.TrimSpace(rawKey)
	if key == "" {
		return nil, false, &ParseError{Offset: save.pos, Line: save.line, Msg: "entry has no key"}
	}
	ks := keyStart + (len(rawKey) - len(strings.TrimLeft(rawKey, " \t\n\r")))

	e := &Entry{Type: typ, Key: key}
	if p.cur() == ',' {
		p.next()
		if perr := p.parseFields(e, closer, save); perr != nil {
			return nil, false, perr
		}
	} else {
		p.next() // closer: entry with a key and no fields
	}

	e.Raw = string(p.src[save.pos:p.pos])
	e.keyStart = ks - save.pos
	e.keyEnd = e.keyStart + len(key)
	return e, false, nil
}

func (p *parser) parseFields(e *Entry, closer byte, save parser) *ParseError {
	for {
		p.skipSpace()
		if p.eof() {
			return p.unterminated(save, e.Key)
		}
		switch p.cur() {
		case closer:
			p.next()
			return nil
		case ',':
			p.next() // stray or trailing comma
			continue
		}

		nameStart := p.pos
		for !p.eof() && p.cur() != '=' && p.cur() != ',' && p.cur() != closer && !isSpace(p.cur()) {
			p.next()
		}
		name := string(p.src[nameStart:p.pos])
		p.skipSpace()
		if p.eof() {
			return p.unterminated(save, e.Key)
		}
		if p.cur() != '=' {
			if p.cur() == ',' || p.cur() == closer {
				continue // dangling token without a value; tolerated
			}
			return &ParseError{Offset: p.pos, Line: p.line,
				Msg: fmt.Sprintf("expected '=' after field name %q in entry %q", name, e.Key)}
		}
		p.next() // '='
		p.skipSpace()
		if p.eof() {
			return p.unterminated(save, e.Key)
		}

		val, perr := p.parseValue(closer, save, e.Key)
		if perr != nil {
			return perr
		}
		if name != "" {
			e.Fields = append(e.Fields, Field{Name: name, Value: val})
		}
	}
}

// parseValue reads one field value: braced with nesting, quoted, or a bare
// token (including # concatenations) running to the next comma or the
// entry's closing delimiter.
func (p *parser) parseValue(closer byte, save parser, key string) (string, *ParseError) {
	switch p.cur() {
	case '{':
		p.next()
		start := p.pos
		depth := 1
		for !p.eof() {
			switch p.cur() {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					val := string(p.src[start:p.pos])
					p.next()
					return val, nil
				}
			}
			p.next()
		}
		return "", p.unterminated(save, key)

	case '"':
		p.next()
		start := p.pos
		depth := 0
		for !p.eof() {
			switch p.cur() {
			case '{':
				depth++
			case '}':
				if depth > 0 {
					depth--
				}
			case '"':
				if depth == 0 {
					val := string(p.src[start:p.pos])
					p.next()
					return val, nil
				}
			}
			p.next()
		}
		return "", p.unterminated(save, key)

	default:
		start := p.pos
		depth := 0
		inQuote := false
		for !p.eof() {
			c := p.cur()
			switch {
			case c == '"':
				inQuote = !inQuote
			case c == '{' && !inQuote:
				depth++
			case c == '}' && !inQuote:
				if depth == 0 && closer == '}' {
					return strings.TrimSpace(string(p.src[start:p.pos])), nil
				}
				if depth > 0 {
					depth--
				}
			case c == ',' && depth == 0 && !inQuote:
				return strings.TrimSpace(string(p.src[start:p.pos])), nil
			case c == closer && depth == 0 && !inQuote:
				return strings.TrimSpace(string(p.src[start:p.pos])), nil
			}
			p.next()
		}
		return "", p.unterminated(save, key)
	}
}

// skipBalanced consumes a brace/paren-balanced block starting at the
// current opening delimiter.
func (p *parser) skipBalanced(save parser, what string) *ParseError {
	opener := p.cur()
	closer := byte('}')
	if opener == '(' {
		closer = ')'
	}
	p.next()
	depth := 1
	for !p.eof() {
		switch p.cur() {
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				p.next()
				return nil
			}
		}
		p.next()
	}
	return &ParseError{Offset: save.pos, Line: save.line, Msg: "unterminated " + what}
}

func (p *parser) unterminated(save parser, key string) *ParseError {
	msg := "unterminated entry"
	if key != "" {
		msg = fmt.Sprintf("unterminated entry %q", key)
	}
	return &ParseError{Offset: save.pos, Line: save.line, Msg: msg}
}
