package adapter

import (
	"errors"
	"strings"
)

var (
	ErrMultipleStatements = errors.New("more than one statement")
	ErrNotQuery           = errors.New("statement is not a SELECT query")
)

// CheckQuery accepts a single SELECT (or WITH) statement and returns it
// without its trailing semicolon. Quoted literals and comments are skipped
// when looking for statement separators.
func CheckQuery(sql string) (string, error) {
	stmt := strings.TrimSpace(sql)
	end := -1
	for i := 0; i < len(stmt); i++ {
		c := stmt[i]
		switch {
		case end >= 0 && c != ';' && c != '-' && c != '/' && c != ' ' && c != '\t' && c != '\n' && c != '\r':
			return "", ErrMultipleStatements
		case c == '\'' || c == '"' || c == '`':
			j := closingQuote(stmt, i+1, c)
			if j < 0 {
				return "", errors.New("unterminated quoted literal")
			}
			i = j
		case c == '-' && i+1 < len(stmt) && stmt[i+1] == '-':
			nl := strings.IndexByte(stmt[i:], '\n')
			if nl < 0 {
				i = len(stmt)
			} else {
				i += nl
			}
		case c == '/' && i+1 < len(stmt) && stmt[i+1] == '*':
			n := strings.Index(stmt[i+2:], "*/")
			if n < 0 {
				return "", errors.New("unterminated comment")
			}
			i += n + 3
		case c == ';':
			if end < 0 {
				end = i
			}
		case end >= 0 && c != ' ' && c != '\t' && c != '\n' && c != '\r':
			// A lone '-' or '/' after the separator.
			return "", ErrMultipleStatements
		}
	}
	if end >= 0 {
		stmt = strings.TrimSpace(stmt[:end])
	}

	first := strings.ToUpper(strings.TrimLeft(stmt, "( \t\r\n"))
	if !strings.HasPrefix(first, "SELECT") && !strings.HasPrefix(first, "WITH") {
		return "", ErrNotQuery
	}
	return stmt, nil
}

// closingQuote returns the index of the quote ending a literal opened before
// from, treating a doubled quote as an escaped one.
func closingQuote(s string, from int, q byte) int {
	for i := from; i < len(s); i++ {
		if s[i] != q {
			continue
		}
		if i+1 < len(s) && s[i+1] == q {
			i++
			continue
		}
		return i
	}
	return -1
}
