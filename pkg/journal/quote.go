package journal

import (
	"fmt"
	"strings"
)

// QuoteErrorKind classifies unquoting failures.
type QuoteErrorKind uint8

const (
	MissingQuote QuoteErrorKind = iota + 1
	Unterminated
	InvalidEscape
)

// String returns the kind name.
func (k QuoteErrorKind) String() string {
	switch k {
	case MissingQuote:
		return "missing opening quote"
	case Unterminated:
		return "unterminated string"
	case InvalidEscape:
		return "invalid escape"
	default:
		return "unknown"
	}
}

// QuoteError reports where a quoted string is malformed. Offset is the
// byte position in the input.
type QuoteError struct {
	Kind   QuoteErrorKind
	Offset int
}

func (e *QuoteError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Kind, e.Offset)
}

const hexDigits = "0123456789abcdef"

// Quote returns s in double quotes with quote, backslash and control
// bytes escaped. The result never contains a newline.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			b.WriteString(`\"`)
		case c == '\\':
			b.WriteString(`\\`)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20 || c == 0x7f:
			b.WriteString(`\x`)
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Unquote reads one quoted string from the start of s. It returns the
// decoded value and the input following the closing quote.
func Unquote(s string) (value, rest string, err error) {
	if len(s) == 0 || s[0] != '"' {
		return "", s, &QuoteError{Kind: MissingQuote, Offset: 0}
	}

	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			return b.String(), s[i+1:], nil
		case '\\':
			if i+1 >= len(s) {
				return "", s, &QuoteError{Kind: Unterminated, Offset: len(s)}
			}
			i++
			switch s[i] {
			case '"', '\\':
				b.WriteByte(s[i])
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'x':
				if i+2 >= len(s) {
					return "", s, &QuoteError{Kind: Unterminated, Offset: len(s)}
				}
				hi, lo := unhex(s[i+1]), unhex(s[i+2])
				if hi < 0 || lo < 0 {
					return "", s, &QuoteError{Kind: InvalidEscape, Offset: i - 1}
				}
				b.WriteByte(byte(hi<<4 | lo))
				i += 2
			default:
				return "", s, &QuoteError{Kind: InvalidEscape, Offset: i - 1}
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", s, &QuoteError{Kind: Unterminated, Offset: len(s)}
}

func unhex(c byte) int {
	switch {
	case '0' <= c && c <= '9':
		return int(c - '0')
	case 'a' <= c && c <= 'f':
		return int(c-'a') + 10
	case 'A' <= c && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}
