// Package query holds the canonical WikiSQL query model and its wire formats.
package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Agg is the aggregation applied to the selected column.
type Agg int

const (
	AggNone Agg = iota
	AggMax
	AggMin
	AggCount
	AggSum
	AggAvg
)

var aggNames = [...]string{"", "MAX", "MIN", "COUNT", "SUM", "AVG"}

// Valid reports whether a is one of the six known aggregation codes.
func (a Agg) Valid() bool {
	return a >= AggNone && a <= AggAvg
}

// Keyword returns the SQL function name, or "" for AggNone.
func (a Agg) Keyword() string {
	if !a.Valid() {
		return ""
	}
	return aggNames[a]
}

func (a Agg) String() string {
	if a == AggNone {
		return "NONE"
	}
	if !a.Valid() {
		return fmt.Sprintf("Agg(%d)", int(a))
	}
	return aggNames[a]
}

// Op is a condition operator.
type Op int

const (
	OpEQ Op = iota
	OpGT
	OpLT
)

var opSymbols = [...]string{"=", ">", "<"}

func (o Op) Valid() bool {
	return o >= OpEQ && o <= OpLT
}

// Symbol returns the SQL comparison operator.
func (o Op) Symbol() string {
	if !o.Valid() {
		return ""
	}
	return opSymbols[o]
}

func (o Op) String() string {
	switch o {
	case OpEQ:
		return "EQ"
	case OpGT:
		return "GT"
	case OpLT:
		return "LT"
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Cond is one (column, operator, literal) filter. On the wire it is the
// three element array [col, op, value].
type Cond struct {
	Column int
	Op     Op
	Value  Literal
}

func (c Cond) Equal(o Cond) bool {
	return c.Column == o.Column && c.Op == o.Op && c.Value.Equal(o.Value)
}

func (c Cond) key() string {
	return fmt.Sprintf("%d\x00%d\x00%s", c.Column, c.Op, c.Value.Canonical())
}

func (c Cond) MarshalJSON() ([]byte, error) {
	val, err := c.Value.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("[%d,%d,%s]", c.Column, int(c.Op), val)), nil
}

func (c *Cond) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("condition must be an array: %w", err)
	}
	if len(parts) != 3 {
		return fmt.Errorf("condition must have 3 elements, got %d", len(parts))
	}
	var col, op int
	if err := json.Unmarshal(parts[0], &col); err != nil {
		return fmt.Errorf("condition column: %w", err)
	}
	if err := json.Unmarshal(parts[1], &op); err != nil {
		return fmt.Errorf("condition operator: %w", err)
	}
	var val Literal
	if err := val.UnmarshalJSON(parts[2]); err != nil {
		return fmt.Errorf("condition value: %w", err)
	}
	*c = Cond{Column: col, Op: Op(op), Value: val}
	return nil
}

// Query is the bounded WikiSQL query: one selected column, an optional
// aggregation and AND-conjoined conditions.
type Query struct {
	Sel   int    `json:"sel"`
	Agg   Agg    `json:"agg"`
	Conds []Cond `json:"conds"`
}

// Equal compares two queries. Sel and Agg must match exactly. Conditions are
// compared position by position when ordered is set, otherwise as multisets.
func (q Query) Equal(o Query, ordered bool) bool {
	if q.Sel != o.Sel || q.Agg != o.Agg {
		return false
	}
	if len(q.Conds) != len(o.Conds) {
		return false
	}
	if ordered {
		for i := range q.Conds {
			if !q.Conds[i].Equal(o.Conds[i]) {
				return false
			}
		}
		return true
	}
	a, b := condKeys(q.Conds), condKeys(o.Conds)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func condKeys(conds []Cond) []string {
	keys := make([]string, len(conds))
	for i, c := range conds {
		keys[i] = c.key()
	}
	sort.Strings(keys)
	return keys
}

// Validate checks the enumerations and index bounds that do not depend on a
// table.
func (q Query) Validate() error {
	if q.Sel < 0 {
		return fmt.Errorf("sel must be non-negative, got %d", q.Sel)
	}
	if !q.Agg.Valid() {
		return fmt.Errorf("unknown aggregation %d", int(q.Agg))
	}
	for i, c := range q.Conds {
		if c.Column < 0 {
			return fmt.Errorf("condition %d: negative column %d", i, c.Column)
		}
		if !c.Op.Valid() {
			return fmt.Errorf("condition %d: unknown operator %d", i, int(c.Op))
		}
	}
	return nil
}


func (q Query) String() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if q.Agg != AggNone {
		fmt.Fprintf(&sb, "%s(col%d)", q.Agg.Keyword(), q.Sel)
	} else {
		fmt.Fprintf(&sb, "col%d", q.Sel)
	}
	for i, c := range q.Conds {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		fmt.Fprintf(&sb, "col%d %s %q", c.Column, c.Op.Symbol(), c.Value.Text)
	}
	return sb.String()
}

func (q Query) MarshalJSON() ([]byte, error) {
	type wire struct {
		Sel   int    `json:"sel"`
		Agg   int    `json:"agg"`
		Conds []Cond `json:"conds"`
	}
	w := wire{Sel: q.Sel, Agg: int(q.Agg), Conds: q.Conds}
	if w.Conds == nil {
		w.Conds = []Cond{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(w); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
