package assistant

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"
)

const tagPrefix = "[ACTION:"

// Parsed is the result of scanning one model reply.
type Parsed struct {
	VisibleMessage string
	Directive      *Directive
}

// Parser extracts at most one directive tag from model text. The zero value
// is ready to use and safe for concurrent use.
type Parser struct{}

// Parse honors the first well-formed [ACTION:<type>:<json-object>] tag whose
// type is known. Without one, the raw text is returned unchanged and no
// directive is produced. Later tags are left in the visible message.
func (Parser) Parse(raw string) Parsed {
	for offset := 0; offset < len(raw); {
		idx := strings.Index(raw[offset:], tagPrefix)
		if idx < 0 {
			break
		}
		start := offset + idx
		offset = start + len(tagPrefix)

		d, end, ok := parseTag(raw, offset)
		if !ok {
			continue
		}
		return Parsed{
			VisibleMessage: joinAround(raw[:start], raw[end:]),
			Directive:      d,
		}
	}
	return Parsed{VisibleMessage: raw}
}

// parseTag reads "<type>:<object>]" starting at pos and returns the index
// just past the closing bracket.
func parseTag(raw string, pos int) (*Directive, int, bool) {
	colon := strings.IndexByte(raw[pos:], ':')
	if colon <= 0 {
		return nil, 0, false
	}
	typ := DirectiveType(strings.TrimSpace(raw[pos : pos+colon]))
	if !typ.Known() {
		return nil, 0, false
	}

	bodyStart := pos + colon + 1
	for bodyStart < len(raw) && raw[bodyStart] == ' ' {
		bodyStart++
	}
	objEnd, ok := balancedObject(raw, bodyStart)
	if !ok {
		return nil, 0, false
	}
	closing := objEnd
	for closing < len(raw) && raw[closing] == ' ' {
		closing++
	}
	if closing >= len(raw) || raw[closing] != ']' {
		return nil, 0, false
	}

	var payload map[string]any
	dec := json.NewDecoder(bytes.NewReader([]byte(raw[bodyStart:objEnd])))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil || payload == nil {
		return nil, 0, false
	}

	return &Directive{
		Type:            typ,
		Payload:         payload,
		ConfirmRequired: typ.RequiresConfirmation(),
		State:           StateProposed,
	}, closing + 1, true
}

// balancedObject returns the index just past the JSON object starting at
// start, tracking string literals and escapes so braces inside strings do
// not count.
func balancedObject(raw string, start int) (int, bool) {
	if start >= len(raw) || raw[start] != '{' {
		return 0, false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// joinAround stitches the text around a removed tag, keeping a line break
// only when the surrounding whitespace had one.
func joinAround(before, after string) string {
	trimmedBefore := strings.TrimRightFunc(before, unicode.IsSpace)
	trimmedAfter := strings.TrimLeftFunc(after, unicode.IsSpace)
	switch {
	case trimmedBefore == "":
		return trimmedAfter
	case trimmedAfter == "":
		return trimmedBefore
	}
	sep := " "
	if strings.Contains(before[len(trimmedBefore):], "\n") || strings.Contains(after[:len(after)-len(trimmedAfter)], "\n") {
		sep = "\n"
	}
	return trimmedBefore + sep + trimmedAfter
}
