package wrapper

import (
	"bytes"
	"strconv"
	"strings"
)

// tokenKind classifies a content stream token
type tokenKind int

const (
	tokNumber tokenKind = iota
	tokString
	tokName
	tokOperator
	tokArrayStart
	tokArrayEnd
	tokOther
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

// contentLexer splits a content stream into operands and operators. It
// does not build objects; dictionaries are reported as tokOther.
type contentLexer struct {
	data []byte
	pos  int
}

func isPDFWhitespace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isPDFDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *contentLexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case isPDFWhitespace(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		default:
			return
		}
	}
}

// next returns the next token, or false at the end of the stream
func (l *contentLexer) next() (token, bool) {
	l.skipSpace()
	if l.pos >= len(l.data) {
		return token{}, false
	}

	c := l.data[l.pos]
	switch {
	case c == '(':
		return token{kind: tokString, text: decodePDFString(l.literal())}, true
	case c == '<' && l.pos+1 < len(l.data) && l.data[l.pos+1] == '<':
		l.pos += 2
		return token{kind: tokOther, text: "<<"}, true
	case c == '>' && l.pos+1 < len(l.data) && l.data[l.pos+1] == '>':
		l.pos += 2
		return token{kind: tokOther, text: ">>"}, true
	case c == '<':
		return token{kind: tokString, text: l.hex()}, true
	case c == '[':
		l.pos++
		return token{kind: tokArrayStart}, true
	case c == ']':
		l.pos++
		return token{kind: tokArrayEnd}, true
	case c == '/':
		l.pos++
		return token{kind: tokName, text: l.word()}, true
	case isPDFDelimiter(c):
		l.pos++
		return token{kind: tokOther, text: string(c)}, true
	}

	w := l.word()
	if n, err := strconv.ParseFloat(w, 64); err == nil {
		return token{kind: tokNumber, text: w, num: n}, true
	}
	return token{kind: tokOperator, text: w}, true
}

func (l *contentLexer) word() string {
	start := l.pos
	for l.pos < len(l.data) && !isPDFWhitespace(l.data[l.pos]) && !isPDFDelimiter(l.data[l.pos]) {
		l.pos++
	}
	if l.pos == start && l.pos < len(l.data) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// literal returns the raw bytes of a balanced (...) string
func (l *contentLexer) literal() []byte {
	l.pos++
	start := l.pos
	depth := 1
	for l.pos < len(l.data) {
		switch l.data[l.pos] {
		case '\\':
			l.pos++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				raw := l.data[start:l.pos]
				l.pos++
				return raw
			}
		}
		l.pos++
	}
	return l.data[start:]
}

// hex decodes a <...> string; an odd final digit is padded with 0
func (l *contentLexer) hex() string {
	l.pos++
	var digits []byte
	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		if v, ok := hexValue(l.data[l.pos]); ok {
			digits = append(digits, v)
		}
		l.pos++
	}
	l.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, 0)
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		out = append(out, digits[i]<<4|digits[i+1])
	}
	return string(out)
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// skipInlineImage moves past the binary data of BI ... ID ... EI
func (l *contentLexer) skipInlineImage() {
	if l.pos < len(l.data) {
		l.pos++
	}
	for l.pos+2 <= len(l.data) {
		if l.data[l.pos] == 'E' && l.data[l.pos+1] == 'I' &&
			(l.pos == 0 || isPDFWhitespace(l.data[l.pos-1])) &&
			(l.pos+2 == len(l.data) || isPDFWhitespace(l.data[l.pos+2])) {
			l.pos += 2
			return
		}
		l.pos++
	}
	l.pos = len(l.data)
}

// kernSpace is the TJ displacement, in thousandths of an em, treated as a
// word gap
const kernSpace = -200

// textFromContentStream collects the strings shown by Tj, TJ, ' and "
// inside BT..ET. Line moves with a vertical offset, T*, Tm and ET start
// new lines; a horizontal-only Td becomes a space.
func textFromContentStream(data []byte) string {
	lex := &contentLexer{data: data}
	var sb strings.Builder
	var operands []token
	inText := false
	inArray := false
	var array []token

	newline := func() {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
	}
	lastString := func() (string, bool) {
		for i := len(operands) - 1; i >= 0; i-- {
			if operands[i].kind == tokString {
				return operands[i].text, true
			}
		}
		return "", false
	}

	for {
		tok, ok := lex.next()
		if !ok {
			break
		}
		switch tok.kind {
		case tokArrayStart:
			inArray = true
			array = array[:0]
			continue
		case tokArrayEnd:
			inArray = false
			continue
		case tokOperator:
		default:
			if inArray {
				array = append(array, tok)
			} else {
				operands = append(operands, tok)
			}
			continue
		}

		switch tok.text {
		case "BT":
			inText = true
		case "ET":
			inText = false
			newline()
		case "ID":
			lex.skipInlineImage()
		case "Td", "TD":
			if !inText {
				break
			}
			if n := len(operands); n >= 2 && operands[n-1].kind == tokNumber && operands[n-1].num == 0 {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
			} else {
				newline()
			}
		case "T*", "Tm":
			if inText {
				newline()
			}
		case "Tj":
			if s, ok := lastString(); ok && inText {
				sb.WriteString(s)
			}
		case "'", "\"":
			if s, ok := lastString(); ok && inText {
				newline()
				sb.WriteString(s)
			}
		case "TJ":
			if !inText {
				break
			}
			for _, el := range array {
				switch {
				case el.kind == tokString:
					sb.WriteString(el.text)
				case el.kind == tokNumber && el.num <= kernSpace:
					sb.WriteByte(' ')
				}
			}
		}
		operands = operands[:0]
		array = array[:0]
	}

	lines := strings.Split(sb.String(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// decodePDFString resolves backslash escapes in a literal string
func decodePDFString(raw []byte) string {
	if !bytes.ContainsRune(raw, '\\') {
		return string(raw)
	}
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case '\r':
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
		case '\n':
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}
