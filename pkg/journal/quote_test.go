package journal

import (
	"errors"
	"strings"
	"testing"
)

func TestQuoteRoundTrip(t *testing.T) {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}

	tests := []string{
		"",
		"/apps/editor",
		`quote " and backslash \`,
		"line\nbreak\r\ttab",
		"\x00\x01\x1f\x7f",
		"unicode: grüße ✓",
		string(all),
	}

	for _, in := range tests {
		q := Quote(in)
		if strings.ContainsAny(q, "\n\r") {
			t.Errorf("Quote(%q) = %q contains a line break", in, q)
		}
		got, rest, err := Unquote(q + " tail")
		if err != nil {
			t.Fatalf("Unquote(%q) error = %v", q, err)
		}
		if got != in {
			t.Errorf("Unquote(Quote(%q)) = %q", in, got)
		}
		if rest != " tail" {
			t.Errorf("rest = %q, want %q", rest, " tail")
		}
	}
}

func TestQuoteEscapes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`a"b`, `"a\"b"`},
		{`a\b`, `"a\\b"`},
		{"a\nb", `"a\nb"`},
		{"\x01", `"\x01"`},
		{"\x7f", `"\x7f"`},
	}
	for _, tt := range tests {
		if got := Quote(tt.in); got != tt.want {
			t.Errorf("Quote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestUnquoteErrors(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		kind   QuoteErrorKind
		offset int
	}{
		{"missing quote", `abc"`, MissingQuote, 0},
		{"empty input", ``, MissingQuote, 0},
		{"unterminated", `"abc`, Unterminated, 4},
		{"trailing backslash", `"abc\`, Unterminated, 5},
		{"unknown escape", `"a\qb"`, InvalidEscape, 2},
		{"bad hex", `"\xzz"`, InvalidEscape, 1},
		{"short hex", `"\x4`, Unterminated, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Unquote(tt.in)
			var qe *QuoteError
			if !errors.As(err, &qe) {
				t.Fatalf("err = %v, want *QuoteError", err)
			}
			if qe.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", qe.Kind, tt.kind)
			}
			if qe.Offset != tt.offset {
				t.Errorf("Offset = %d, want %d", qe.Offset, tt.offset)
			}
		})
	}
}

func TestParseLine(t *testing.T) {
	valid := []Entry{
		Add(3, DefaultDatabase, "/apps/editor", "tcp://127.0.0.1:4000#listener"),
		Remove(18446744073709551615, "pebble:/tmp/db", "/a b", "unix:///tmp/c.sock#listener"),
		ClientAdd("tcp://127.0.0.1:4000#listener"),
		ClientRemove("tcp://127.0.0.1:4000#listener"),
	}
	for _, e := range valid {
		got, err := ParseLine(e.String())
		if err != nil {
			t.Errorf("ParseLine(%q) error = %v", e.String(), err)
			continue
		}
		if got != e {
			t.Errorf("ParseLine(%q) = %+v, want %+v", e.String(), got, e)
		}
	}

	malformed := []string{
		`ADD`,
		`ADD 0 "def" "/a" "tcp://h:1#l"`,
		`ADD x "def" "/a" "tcp://h:1#l"`,
		`ADD 1 "" "/a" "tcp://h:1#l"`,
		`ADD 1 "def" "/a"`,
		`ADD 1 "def" "/a" "tcp://h:1#l" junk`,
		`REMOVE 1 "def" "/a" "tcp://h:1#l`,
		`CLIENTADD ""`,
		`CLIENTADD tcp://h:1#l`,
		`FROB "x"`,
	}
	for _, line := range malformed {
		if _, err := ParseLine(line); !errors.Is(err, ErrMalformed) {
			t.Errorf("ParseLine(%q) error = %v, want ErrMalformed", line, err)
		}
	}
}
