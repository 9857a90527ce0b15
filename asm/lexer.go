package asm

import (
	"strconv"
	"strings"

	"github.com/netizen-a/stackl/isa"
)

func isIdentStart(b byte) bool {
	return b == '_' || b == '.' || b == '?' || b == '$' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentCont(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

// lex scans src into a flat token stream plus any lexical diagnostics.
// Line comments (';' to end of line, with backslash-newline continuation)
// and insignificant whitespace are dropped; newlines are preserved as
// statement separators.
func lex(src string) ([]token, []Diagnostic) {
	var toks []token
	var diags []Diagnostic

	line, col := 1, 1
	i := 0
	n := len(src)

	advance := func(k int) {
		for j := 0; j < k; j++ {
			if i+j < n && src[i+j] == '\n' {
				line++
				col = 1
			} else {
				col++
			}
		}
		i += k
	}

	for i < n {
		c := src[i]

		switch {
		case c == ' ' || c == '\t' || c == '\r':
			advance(1)
			continue

		case c == '\\' && i+1 < n && src[i+1] == '\n':
			// Backslash-newline line continuation: swallow both, no
			// newline token emitted.
			advance(2)
			continue

		case c == ';':
			// Line comment; backslash-newline continues it onto the
			// following physical line.
			for i < n && src[i] != '\n' {
				if src[i] == '\\' && i+1 < n && src[i+1] == '\n' {
					advance(2)
					continue
				}
				advance(1)
			}
			continue

		case c == '\n':
			toks = append(toks, token{kind: tokNewline, line: line, col: col})
			advance(1)
			continue

		case c == ':':
			toks = append(toks, token{kind: tokColon, line: line, col: col})
			advance(1)
			continue

		case c == ',':
			toks = append(toks, token{kind: tokComma, line: line, col: col})
			advance(1)
			continue

		case c == '[':
			toks = append(toks, token{kind: tokLBracket, line: line, col: col})
			advance(1)
			continue

		case c == ']':
			toks = append(toks, token{kind: tokRBracket, line: line, col: col})
			advance(1)
			continue

		case c == '(':
			toks = append(toks, token{kind: tokLParen, line: line, col: col})
			advance(1)
			continue

		case c == ')':
			toks = append(toks, token{kind: tokRParen, line: line, col: col})
			advance(1)
			continue

		case c == '\'' || c == '"' || c == '`':
			startLine, startCol := line, col
			text, ok, consumed := lexString(src[i:], c)
			if !ok {
				diags = append(diags, newDiag(startLine, startCol, "unterminated string literal"))
				advance(consumed)
				continue
			}
			toks = append(toks, token{kind: tokString, text: text, line: startLine, col: startCol})
			advance(consumed)
			continue

		case c == '-' || (c >= '0' && c <= '9'):
			startLine, startCol := line, col
			text, consumed := lexNumber(src[i:])
			val, err := parseInteger(text)
			if err != nil {
				diags = append(diags, newDiag(startLine, startCol, "invalid integer literal %q", text))
			}
			toks = append(toks, token{kind: tokInteger, text: text, intVal: val, line: startLine, col: startCol})
			advance(consumed)
			continue

		case isIdentStart(c):
			startLine, startCol := line, col
			j := i + 1
			for j < n && isIdentCont(src[j]) {
				j++
			}
			text := src[i:j]
			toks = append(toks, classifyWord(text, startLine, startCol))
			advance(j - i)
			continue

		default:
			diags = append(diags, newDiag(line, col, "unexpected character %q", c))
			advance(1)
		}
	}

	toks = append(toks, token{kind: tokEOF, line: line, col: col})
	return toks, diags
}

func classifyWord(text string, line, col int) token {
	upper := strings.ToUpper(text)
	switch upper {
	case "DB":
		return token{kind: tokDB, text: text, line: line, col: col}
	case "DD":
		return token{kind: tokDD, text: text, line: line, col: col}
	}
	if op, ok := isa.Lookup(upper); ok {
		return token{kind: tokMnemonic, text: text, op: op, line: line, col: col}
	}
	return token{kind: tokIdentifier, text: text, line: line, col: col}
}

// lexNumber scans a hex (0x...) or decimal (optionally signed) integer
// literal starting at s[0].
func lexNumber(s string) (text string, consumed int) {
	i := 0
	if s[i] == '-' {
		i++
	}
	if i+1 < len(s) && s[i] == '0' && (s[i+1] == 'x' || s[i+1] == 'X') {
		i += 2
		for i < len(s) && isHexDigit(s[i]) {
			i++
		}
		return s[:i], i
	}
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i], i
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func parseInteger(text string) (int32, error) {
	neg := strings.HasPrefix(text, "-")
	unsigned := text
	if neg {
		unsigned = text[1:]
	}
	var v int64
	var err error
	if strings.HasPrefix(unsigned, "0x") || strings.HasPrefix(unsigned, "0X") {
		v, err = strconv.ParseInt(unsigned[2:], 16, 64)
	} else {
		v, err = strconv.ParseInt(unsigned, 10, 64)
	}
	if err != nil {
		return 0, err
	}
	if neg {
		v = -v
	}
	return int32(v), nil
}

// lexString scans a quoted string literal starting at s[0] == quote,
// applying the documented escape set. It returns the decoded text,
// whether the literal was properly terminated, and the number of source
// bytes consumed (including the quotes; on failure, everything up to
// the newline that ended the line, or the whole remainder if none).
func lexString(s string, quote byte) (decoded string, ok bool, consumed int) {
	var b strings.Builder
	i := 1
	n := len(s)
	for i < n {
		c := s[i]
		if c == quote {
			return b.String(), true, i + 1
		}
		if c == '\\' && i+1 < n {
			esc, adv := decodeEscape(s[i+1:])
			b.WriteString(esc)
			i += 1 + adv
			continue
		}
		if c == '\n' {
			return b.String(), false, i
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), false, n
}

func decodeEscape(s string) (string, int) {
	if len(s) == 0 {
		return "", 0
	}
	switch s[0] {
	case 'a':
		return "\a", 1
	case 'b':
		return "\b", 1
	case 't':
		return "\t", 1
	case 'n':
		return "\n", 1
	case 'v':
		return "\v", 1
	case 'f':
		return "\f", 1
	case 'r':
		return "\r", 1
	case 'e':
		return "\x1b", 1
	case '\'', '"', '`', '\\':
		return string(s[0]), 1
	case 'u', 'U':
		return decodeUnicodeEscape(s)
	default:
		return string(s[0]), 1
	}
}

// decodeUnicodeEscape handles \u{XXXX} and \U{XXXXXXXX}.
func decodeUnicodeEscape(s string) (string, int) {
	if len(s) < 2 || s[1] != '{' {
		return string(s[0]), 1
	}
	end := strings.IndexByte(s, '}')
	if end < 0 {
		return string(s[0]), 1
	}
	hex := s[2:end]
	v, err := strconv.ParseInt(hex, 16, 32)
	if err != nil {
		return string(s[0]), 1
	}
	return string(rune(v)), end + 1
}
