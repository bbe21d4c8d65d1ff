package materialize

import (
	"fmt"
	"strings"
)

// IdentKind selects the prefix and suffix used when sanitizing.
type IdentKind int

const (
	TableIdent IdentKind = iota
	ColumnIdent
)

var reservedWords = map[string]bool{
	"select": true, "from": true, "where": true, "order": true, "group": true,
	"by": true, "having": true, "limit": true, "table": true, "and": true,
	"or": true, "not": true, "null": true,
}

// Sanitize restricts name to [A-Za-z0-9_], keeps it from starting with a
// digit and moves it off the reserved word list.
func Sanitize(name string, kind IdentKind) string {
	prefix, suffix := "table_", "_tbl"
	if kind == ColumnIdent {
		prefix, suffix = "col_", "_col"
	}

	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if s == "" {
		return prefix + "unknown"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = prefix + s
	}
	if reservedWords[strings.ToLower(s)] {
		s += suffix
	}
	return s
}

// nameSet hands out unique names, disambiguating repeats with _1, _2, ...
type nameSet map[string]bool

func (ns nameSet) unique(name string) string {
	if !ns[name] {
		ns[name] = true
		return name
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if !ns[candidate] {
			ns[candidate] = true
			return candidate
		}
	}
}

// ColumnName is the positional physical name of column i.
func ColumnName(i int) string {
	return fmt.Sprintf("col%d", i)
}
