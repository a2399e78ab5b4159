package wsproto

import (
	"fmt"
	"strings"
)

// EscapeJSONString escapes str for embedding as a JSON string literal's
// contents (the caller supplies the surrounding quotes), per spec.md §4.1:
// '"', '\\', and the named control characters get their short escape; any
// other byte below 0x20 becomes \u00XX; bytes >= 0x20 (including multibyte
// UTF-8 sequences) pass through unchanged. Grounded on original_source's
// ws_json_escape_string, which uses the same escape set.
func EscapeJSONString(str string) string {
	var b strings.Builder
	b.Grow(len(str))
	for i := 0; i < len(str); i++ {
		c := str[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	return b.String()
}
