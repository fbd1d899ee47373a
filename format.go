package gtkserver

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Formatter renders dispatcher answers as response lines. Its scratch
// buffer is reused across calls.
type Formatter struct {
	config *Config
	buf    bytes.Buffer
}

// NewFormatter creates a formatter reading options from config
func NewFormatter(config *Config) *Formatter {
	return &Formatter{config: config}
}

// Format builds prefix + handle + body + suffix. When escaping is enabled
// and escape is set, body is escaped and wrapped in double quotes. The
// line-count prefix and trailing newline follow the configuration.
func (f *Formatter) Format(handle, prefix, body, suffix string, escape bool) string {
	f.buf.Reset()
	if f.config.LineCount {
		f.buf.WriteString(strconv.Itoa(strings.Count(body, "\n") + 1))
		f.buf.WriteByte('\n')
	}
	f.buf.WriteString(prefix)
	f.buf.WriteString(handle)
	if escape && f.config.Escaping {
		f.buf.WriteByte('"')
		escapeInto(&f.buf, body, f.config.EscapeChars)
		f.buf.WriteByte('"')
	} else {
		f.buf.WriteString(body)
	}
	f.buf.WriteString(suffix)

	if !f.config.NoNewline {
		f.buf.WriteByte('\n')
	}
	return f.buf.String()
}

// Escape applies C string escaping to s with the given escape set
func Escape(s, set string) string {
	var b bytes.Buffer
	escapeInto(&b, s, set)
	return b.String()
}

func escapeInto(b *bytes.Buffer, s, set string) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(set, c) >= 0 {
			b.WriteByte('\\')
			switch c {
			case '\a':
				b.WriteByte('a')
			case '\t':
				b.WriteByte('t')
			case '\n':
				b.WriteByte('n')
			case '\r':
				b.WriteByte('r')
			default:
				b.WriteByte(c)
			}
			continue
		}
		if c < 0x20 || c > 0x7E {
			fmt.Fprintf(b, "\\x%02X", c)
			continue
		}
		b.WriteByte(c)
	}
}
