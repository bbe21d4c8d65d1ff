package executor

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rows is a normalized result set.
type Rows [][]any

// Normalize lower-cases string and byte cells; everything else passes
// through unchanged. A nil input stays nil.
func Normalize(rows [][]any) Rows {
	if rows == nil {
		return Rows{}
	}
	out := make(Rows, len(rows))
	for i, row := range rows {
		nr := make([]any, len(row))
		for j, v := range row {
			switch t := v.(type) {
			case string:
				nr[j] = strings.ToLower(t)
			case []byte:
				nr[j] = strings.ToLower(string(t))
			default:
				nr[j] = v
			}
		}
		out[i] = nr
	}
	return out
}

const nullCell = "\x00null"

// cellKey is the comparison form of a cell: numbers by value regardless of
// driver type, NULL distinct from any string.
func cellKey(v any) string {
	switch t := v.(type) {
	case nil:
		return nullCell
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}

func rowKey(row []any) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = cellKey(v)
	}
	return strings.Join(parts, "\x1f")
}

// RowsEqual compares two result sets as multisets of rows.
func RowsEqual(a, b Rows) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, row := range a {
		counts[rowKey(row)]++
	}
	for _, row := range b {
		k := rowKey(row)
		if counts[k] == 0 {
			return false
		}
		counts[k]--
	}
	return true
}
