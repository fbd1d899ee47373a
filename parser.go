package gtkserver

import (
	"strings"
)

// parseState tracks the tokenizer position within a request line
type parseState int

const (
	stateBetween parseState = iota
	statePlain
	stateDouble
	stateSingle
)

// ParseLine tokenizes a request line.
//
// Tokens are separated by spaces, tabs, CR or LF. A token wrapped in double
// or single quotes may contain whitespace and the escapes \n, \t and \r;
// any other escaped character is taken literally. A token prefixed by '@'
// is string-like: when it is single-quoted its quotes are kept, so clients
// that need a quoted atom can pass one through. Parsing never fails; an
// unterminated quote yields the text collected so far.
func ParseLine(line string) []string {
	var (
		args       []string
		current    strings.Builder
		state      = stateBetween
		escaped    bool
		stringLike bool
	)

	for i := 0; i < len(line); i++ {
		c := line[i]

		switch state {
		case statePlain:
			if isSpace(c) {
				args = append(args, current.String())
				current.Reset()
				state = stateBetween
				continue
			}
			current.WriteByte(c)

		case stateDouble, stateSingle:
			quote := byte('"')
			if state == stateSingle {
				quote = '\''
			}
			if escaped {
				current.WriteByte(unescapeByte(c))
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case quote:
				if state == stateSingle && stringLike {
					current.WriteByte('\'')
				}
				args = append(args, current.String())
				current.Reset()
				state = stateBetween
				stringLike = false
			default:
				current.WriteByte(c)
			}

		default:
			switch {
			case isSpace(c):
			case c == '@':
				stringLike = true
			case c == '"':
				state = stateDouble
				stringLike = false
			case c == '\'':
				state = stateSingle
				if stringLike {
					current.WriteByte('\'')
				}
			default:
				state = statePlain
				stringLike = false
				current.WriteByte(c)
			}
		}
	}

	if state != stateBetween {
		args = append(args, current.String())
	}
	return args
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func unescapeByte(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	}
	return c
}

// FormatLine joins tokens into a request line that ParseLine splits back
// into the same tokens.
func FormatLine(tokens []string) string {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = quoteToken(tok)
	}
	return strings.Join(parts, " ")
}

func quoteToken(tok string) string {
	if tok != "" && !strings.ContainsAny(tok, " \t\r\n\"'\\@") {
		return tok
	}
	if tok != "" && !strings.ContainsAny(tok, " \t\r\n") && tok[0] != '"' && tok[0] != '\'' && tok[0] != '@' {
		return tok
	}

	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(tok); i++ {
		switch c := tok[i]; c {
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
