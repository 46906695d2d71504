package directive

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	keyRow        = "ROW"
	keyColumn     = "COLUMN"
	keyValue      = "VALUE"
	keyAdditional = "ADDITIONAL"
)

var markers = []string{keyRow, keyColumn, keyValue, keyAdditional}

type field struct {
	key   string
	value string
}

// tokenize splits the answer into marker fields. A field starts at a marker that
// sits on a token boundary and ends at the next marker on the same line or at
// the end of the line. ADDITIONAL always consumes the rest of its line, so
// markers quoted inside a note are not picked up as fields.
func tokenize(answer string) []field {
	var fields []field
	for _, line := range strings.Split(answer, "\n") {
		fields = append(fields, tokenizeLine(strings.TrimRight(line, "\r"))...)
	}
	return fields
}

func tokenizeLine(line string) []field {
	var fields []field

	key, start := "", -1
	for i := 0; i < len(line); {
		if key == keyAdditional {
			break
		}

		next, width := markerAt(line, i)
		if next == "" {
			i++
			continue
		}

		if key != "" {
			fields = append(fields, field{key: key, value: line[start:i]})
		}
		key, start = next, i+width
		i += width
	}

	if key != "" {
		fields = append(fields, field{key: key, value: line[start:]})
	}

	return fields
}

// markerAt returns the marker beginning at offset i and the length of the
// marker including its colon.
func markerAt(line string, i int) (string, int) {
	if i > 0 {
		prev, _ := utf8.DecodeLastRuneInString(line[:i])
		if unicode.IsLetter(prev) || unicode.IsDigit(prev) {
			return "", 0
		}
	}

	for _, m := range markers {
		if strings.HasPrefix(line[i:], m+":") {
			return m, len(m) + 1
		}
	}

	return "", 0
}

func extractCoordinate(fields []field, key string) int {
	for _, f := range fields {
		if f.key != key {
			continue
		}

		value := strings.TrimLeft(f.value, " \t")
		end := 0
		for end < len(value) && value[end] >= '0' && value[end] <= '9' {
			end++
		}
		if end == 0 {
			continue
		}

		n, err := strconv.Atoi(value[:end])
		if err != nil {
			continue
		}
		return n
	}

	return Unresolved
}

func extractOutcome(fields []field) (Outcome, bool) {
	for _, f := range fields {
		if f.key != keyValue {
			continue
		}

		value := strings.TrimSpace(f.value)
		if value == "" {
			continue
		}

		for _, l := range outcomeLiterals {
			if hasWordPrefix(value, l.literal) {
				return l.outcome, true
			}
		}
		return Unknown, true
	}

	return Unknown, false
}

func extractNote(fields []field) (string, bool) {
	for _, f := range fields {
		if f.key != keyAdditional {
			continue
		}
		if note := strings.TrimSpace(f.value); note != "" {
			return note, true
		}
	}
	return "", false
}

func hasWordPrefix(s, prefix string) bool {
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	rest := s[len(prefix):]
	if rest == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
