// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iancoleman/strcase"
	"github.com/jinzhu/inflection"
)

// escapeRuby writes s escaped for a Ruby double quoted literal, following
// the rules of String#inspect.
func escapeRuby(s []byte, bf *bytes.Buffer) {
	last := 0
	for i := 0; i < len(s); {
		var (
			c      = s[i]
			width  = 1
			escape string
		)
		switch c {
		case '"':
			escape = `\"`
		case '\\':
			escape = `\\`
		case '\n':
			escape = `\n`
		case '\t':
			escape = `\t`
		case '\r':
			escape = `\r`
		case '\f':
			escape = `\f`
		case '\v':
			escape = `\v`
		case '\a':
			escape = `\a`
		case '\b':
			escape = `\b`
		case 0x1b:
			escape = `\e`
		case '#':
			// "#{", "#$" and "#@" would interpolate
			if i+1 < len(s) && (s[i+1] == '{' || s[i+1] == '$' || s[i+1] == '@') {
				escape = `\#`
			}
		default:
			if c < utf8.RuneSelf {
				if c < 0x20 || c == 0x7f {
					escape = fmt.Sprintf(`\x%02X`, c)
				}
				break
			}
			r, w := utf8.DecodeRune(s[i:])
			width = w
			switch {
			case r == utf8.RuneError && w == 1:
				escape = fmt.Sprintf(`\x%02X`, c)
			case !unicode.IsPrint(r) && r <= 0xffff:
				escape = fmt.Sprintf(`\u%04X`, r)
			case !unicode.IsPrint(r):
				escape = fmt.Sprintf(`\u{%X}`, r)
			}
		}

		if escape != "" {
			bf.Write(s[last:i])
			bf.WriteString(escape)
			last = i + width
		}
		i += width
	}
	bf.Write(s[last:])
}

func writeRubyString(bf *bytes.Buffer, s []byte) {
	bf.WriteByte('"')
	escapeRuby(s, bf)
	bf.WriteByte('"')
}

func rubyString(s string) string {
	var bf bytes.Buffer
	bf.Grow(len(s) + 2)
	writeRubyString(&bf, []byte(s))
	return bf.String()
}

// rubyFloat renders f like Float#inspect.
func rubyFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	if abs := math.Abs(f); abs >= 1e-4 && abs < 1e16 {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	idx := strings.IndexByte(s, 'e')
	mantissa, exponent := s[:idx], s[idx:]
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	return mantissa + exponent
}

func isRubyIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// rubySymbol renders name as a symbol literal, e.g. `:name` or `:"odd-name"`.
func rubySymbol(name string) string {
	if isRubyIdentifier(name) {
		return ":" + name
	}
	return ":" + rubyString(name)
}

// rubyHashKey renders name as the key part of a `key: value` hash pair.
func rubyHashKey(name string) string {
	if isRubyIdentifier(name) {
		return name + ":"
	}
	return rubyString(name) + ":"
}

// modelNameFromTable maps a table name to its conventional model class name,
// `range_samples` becomes `RangeSample`.
func modelNameFromTable(table string) string {
	return strcase.ToCamel(inflection.Singular(table))
}
