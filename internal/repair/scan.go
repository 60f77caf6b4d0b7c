package repair

import (
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\n?(.*?)(?:```|$)")

// clean strips markdown fences and any prose before the first '{'.
func clean(text string) string {
	s := strings.TrimSpace(text)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if i := strings.IndexByte(s, '{'); i >= 0 {
		s = s[i:]
	}
	return s
}

// balancedEnd returns the index just past the bracket that closes the one
// at start, or -1 when the text ends first. Brackets inside strings are
// ignored.
func balancedEnd(s string, start int) int {
	var stack []byte
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
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
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// cutPoint is a prefix length at which the text can be closed off.
type cutPoint struct {
	end     int
	closers string
}

// scanState walks s and reports where it could be cut, the closers open
// at the very end, and whether the text ends inside a string.
type scanState struct {
	cuts      []cutPoint
	open      string
	inString  bool
	malformed bool
}

func scan(s string) scanState {
	var st scanState
	var stack []byte
	escaped := false
	closers := func() string {
		b := make([]byte, len(stack))
		for i := range stack {
			b[i] = stack[len(stack)-1-i]
		}
		return string(b)
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if st.inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				st.inString = false
				st.cuts = append(st.cuts, cutPoint{end: i + 1, closers: closers()})
			}
			continue
		}
		switch c {
		case '"':
			st.inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				st.malformed = true
				st.open = closers()
				return st
			}
			stack = stack[:len(stack)-1]
			st.cuts = append(st.cuts, cutPoint{end: i + 1, closers: closers()})
		case ',':
			st.cuts = append(st.cuts, cutPoint{end: i, closers: closers()})
		}
	}
	st.open = closers()
	return st
}
