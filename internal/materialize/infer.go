// Package materialize turns logical WikiSQL tables into physical relational
// tables with positional column names and inferred column types.
package materialize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ColumnType is an inferred physical column type.
type ColumnType string

const (
	TypeText    ColumnType = "TEXT"
	TypeInteger ColumnType = "INTEGER"
	TypeReal    ColumnType = "REAL"
)

// numericThreshold is the share of non-empty values that must parse as numbers
// for a column to be numeric.
const numericThreshold = 0.8

// Numeric reports whether the type is INTEGER or REAL.
func (t ColumnType) Numeric() bool {
	return t == TypeInteger || t == TypeReal
}

// InferType decides a column type from its cells. Empty cells are ignored;
// a column with no non-empty cells is TEXT.
func InferType(values []any) ColumnType {
	var nonEmpty, numeric int
	sawFloat := false
	for _, v := range values {
		s, ok := cellText(v)
		if !ok {
			continue
		}
		nonEmpty++
		isNum, isFloat := parseNumber(s)
		if isNum {
			numeric++
			sawFloat = sawFloat || isFloat
		}
	}
	if nonEmpty == 0 || float64(numeric)/float64(nonEmpty) <= numericThreshold {
		return TypeText
	}
	if sawFloat {
		return TypeReal
	}
	return TypeInteger
}

// cellText returns the trimmed text of a cell and false for empty cells.
func cellText(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		s = fmt.Sprint(t)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// parseNumber tries integer parsing first, then floating point.
func parseNumber(s string) (isNum, isFloat bool) {
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return true, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return false, false
	}
	return true, true
}

// convertCell maps a cell to the value bound for its column. Empty cells
// become NULL; values that do not fit a numeric column are stored as text.
func convertCell(v any, t ColumnType) any {
	s, ok := cellText(v)
	if !ok {
		return nil
	}
	switch t {
	case TypeInteger:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	case TypeReal:
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return f
		}
	}
	return s
}
