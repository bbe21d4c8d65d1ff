package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Literal is a condition value as it appears in WikiSQL annotations: either a
// string or a JSON number. The original spelling of numbers is kept.
type Literal struct {
	Text    string
	Numeric bool
}

// String returns a string literal.
func String(s string) Literal {
	return Literal{Text: s}
}

// Number returns a numeric literal from its decimal spelling.
func Number(s string) Literal {
	return Literal{Text: s, Numeric: true}
}

// LiteralOf converts a decoded JSON cell value into a Literal.
func LiteralOf(v any) Literal {
	switch t := v.(type) {
	case nil:
		return Literal{}
	case string:
		return String(t)
	case json.Number:
		return Number(t.String())
	case float64:
		return Number(strconv.FormatFloat(t, 'f', -1, 64))
	case int:
		return Number(strconv.Itoa(t))
	case int64:
		return Number(strconv.FormatInt(t, 10))
	default:
		return String(fmt.Sprint(t))
	}
}

// Canonical is the comparison form of the literal: numbers are reduced to
// their shortest decimal form and everything is lower-cased.
func (l Literal) Canonical() string {
	s := strings.TrimSpace(l.Text)
	if f, err := strconv.ParseFloat(s, 64); err == nil && (l.Numeric || looksNumeric(s)) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.ToLower(l.Text)
}

// Equal compares two literals under the benchmark convention: case-insensitive
// for text, value equality for numbers.
func (l Literal) Equal(o Literal) bool {
	return l.Canonical() == o.Canonical()
}

func (l Literal) MarshalJSON() ([]byte, error) {
	if l.Numeric {
		if _, err := strconv.ParseFloat(l.Text, 64); err == nil {
			return []byte(l.Text), nil
		}
	}
	return json.Marshal(l.Text)
}

func (l *Literal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = Literal{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = String(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("literal must be a string or number: %w", err)
	}
	*l = Number(n.String())
	return nil
}

// looksNumeric rejects spellings ParseFloat accepts but a table cell would not
// mean as a number ("inf", "nan", hex floats).
func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.', r == '-', r == '+', r == 'e', r == 'E':
		default:
			return false
		}
	}
	return true
}
