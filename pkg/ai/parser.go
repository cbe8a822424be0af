package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnparsable is returned when no JSON object could be recovered from a
// model reply even after repair.
var ErrUnparsable = errors.New("no parsable JSON object in response")

// ParseError wraps a decode failure together with the raw text that caused
// it, so callers can log the offending reply and decide whether to retry.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse model response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var (
	// Bare object keys, e.g. `{text: "go"}` or `{위험도: "높음"}`.
	bareKeyRe = regexp.MustCompile(`([{,]\s*)([A-Za-z_\p{Hangul}][A-Za-z0-9_\p{Hangul}]*)(\s*:)`)
	// Bare scalar values after a colon, e.g. `risk: high`. Quoted strings,
	// numbers, booleans, null and nested containers are left alone.
	bareValueRe     = regexp.MustCompile(`(:\s*)([A-Za-z_\p{Hangul}][A-Za-z0-9_\p{Hangul} ]*[A-Za-z0-9_\p{Hangul}]|[A-Za-z_\p{Hangul}])(\s*[,}\]])`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON cuts the first top-level JSON object out of a reply that may
// be wrapped in prose or markdown fences. It returns the substring from the
// first '{' to the matching closing brace, or the tail of the text when the
// object is truncated.
func ExtractJSON(raw string) (string, error) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", ErrUnparsable
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
				return raw[start : i+1], nil
			}
		}
	}
	// Truncated object: return what we have, Repair balances the braces.
	return raw[start:], nil
}

// Repair applies a fixed sequence of textual fixes to almost-JSON: bare
// keys and scalar values are quoted, literal newlines inside strings are
// collapsed, trailing commas are dropped, stray interior quotes are escaped
// and unbalanced brackets are closed. The result is best effort; callers
// still have to decode it.
func Repair(s string) string {
	s = strings.TrimSpace(s)
	s = stripFences(s)

	s = collapseNewlines(s)
	s = outsideStrings(s, func(seg string) string {
		seg = bareKeyRe.ReplaceAllString(seg, `$1"$2"$3`)
		seg = quoteBareValues(seg)
		return trailingCommaRe.ReplaceAllString(seg, `$1`)
	})
	s = escapeStrayQuotes(s)
	s = balanceBrackets(s)
	return s
}

// Decode extracts, repairs and unmarshals the reply into v. A failure at
// any stage yields a *ParseError carrying the raw text.
func Decode(raw string, v interface{}) error {
	obj, err := ExtractJSON(raw)
	if err != nil {
		return &ParseError{Raw: raw, Err: err}
	}
	fixed := Repair(obj)
	if err := json.Unmarshal([]byte(fixed), v); err != nil {
		return &ParseError{Raw: raw, Err: err}
	}
	return nil
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// collapseNewlines replaces literal line breaks inside string literals with
// spaces. Breaks between tokens are preserved as-is; json.Unmarshal
// tolerates those.
func collapseNewlines(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			case c == '\n' || c == '\r':
				if c == '\r' && i+1 < len(s) && s[i+1] == '\n' {
					i++
				}
				b.WriteByte(' ')
				continue
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
		}
		b.WriteByte(c)
	}
	return b.String()
}

// outsideStrings applies fix to the stretches of s that lie outside quoted
// string literals, leaving literal contents byte for byte intact.
func outsideStrings(s string, fix func(string) string) string {
	var b strings.Builder
	b.Grow(len(s))
	segStart := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
				b.WriteString(s[segStart : i+1])
				segStart = i + 1
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteString(fix(s[segStart:i]))
			segStart = i
		}
	}
	if inString {
		b.WriteString(s[segStart:])
	} else {
		b.WriteString(fix(s[segStart:]))
	}
	return b.String()
}

// quoteBareValues wraps unquoted word values in quotes, skipping JSON
// literals and numbers. Runs repeatedly because the regexp consumes the
// delimiter that starts the next match.
func quoteBareValues(s string) string {
	for {
		replaced := bareValueRe.ReplaceAllStringFunc(s, func(m string) string {
			sub := bareValueRe.FindStringSubmatch(m)
			val := sub[2]
			switch strings.ToLower(strings.TrimSpace(val)) {
			case "true", "false", "null":
				return m
			}
			return sub[1] + `"` + val + `"` + sub[3]
		})
		if replaced == s {
			return s
		}
		s = replaced
	}
}

// escapeStrayQuotes escapes double quotes that appear inside a string value
// without terminating it, e.g. `"text": "he said "run" now"`. A closing
// quote is recognized only when followed by a structural character.
func escapeStrayQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}
		switch {
		case escaped:
			escaped = false
			b.WriteByte(c)
		case c == '\\':
			escaped = true
			b.WriteByte(c)
		case c == '"':
			if isStringEnd(s, i+1) {
				inString = false
				b.WriteByte(c)
			} else {
				b.WriteString(`\"`)
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// isStringEnd reports whether the text after a closing quote looks like the
// continuation of JSON structure rather than more string content.
func isStringEnd(s string, i int) bool {
	for ; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case ',', '}', ']', ':':
			return true
		default:
			return false
		}
	}
	return true // end of input closes the string
}

// balanceBrackets appends the closers missing from a truncated object. An
// unterminated string literal is closed first.
func balanceBrackets(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
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
		case '{', '[':
			stack = append(stack, c)
		case '}':
			if n := len(stack); n > 0 && stack[n-1] == '{' {
				stack = stack[:n-1]
			}
		case ']':
			if n := len(stack); n > 0 && stack[n-1] == '[' {
				stack = stack[:n-1]
			}
		}
	}
	if inString {
		s += `"`
	}
	s = strings.TrimRight(s, " \t\n\r")
	s = strings.TrimSuffix(s, ",")
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			s += "}"
		} else {
			s += "]"
		}
	}
	return s
}
