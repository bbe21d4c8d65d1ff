// Package sqlparse maps free-text SQL produced by a language model back into
// the canonical WikiSQL query model.
package sqlparse

import (
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"wikisqleval/internal/query"
)

// ErrNoSelect is returned when the text has no SELECT ... FROM shape.
var ErrNoSelect = errors.New("no SELECT ... FROM clause found")

// Parser turns SQL text into a query. Implementations must be stateless.
type Parser interface {
	Parse(sql string) (*query.Query, error)
}

// Result is a parse with its diagnostics.
type Result struct {
	Query    query.Query
	Dropped  []string // conjuncts that matched no pattern
	Warnings []string
}

// RegexParser is the pattern-based Parser. Fragments it cannot read are
// dropped rather than failing the whole statement.
type RegexParser struct {
	log *slog.Logger
}

// New returns a RegexParser that logs dropped fragments to log.
func New(log *slog.Logger) *RegexParser {
	if log == nil {
		log = slog.Default()
	}
	return &RegexParser{log: log}
}

var (
	fenceRe  = regexp.MustCompile("(?i)```(?:sql)?")
	selectRe = regexp.MustCompile(`(?is)\bSELECT\b(.*?)\bFROM\b`)
	whereRe  = regexp.MustCompile(`(?i)\bWHERE\b`)
	selColRe = regexp.MustCompile(`(?i)\bcol(\d+)\b`)

	aggPatterns = []struct {
		re  *regexp.Regexp
		agg query.Agg
	}{
		{regexp.MustCompile(`(?i)\bCOUNT\s*\(`), query.AggCount},
		{regexp.MustCompile(`(?i)\bMAX\s*\(`), query.AggMax},
		{regexp.MustCompile(`(?i)\bMIN\s*\(`), query.AggMin},
		{regexp.MustCompile(`(?i)\bSUM\s*\(`), query.AggSum},
		{regexp.MustCompile(`(?i)\bAVG\s*\(`), query.AggAvg},
	}
)

const (
	colRef    = "(?:[A-Za-z0-9_\"`\\[\\]]+\\.)?[\"`\\[]?col(?P<col>\\d+)[\"`\\]]?"
	quotedVal = `'(?P<single>(?:[^']|'')*)'|"(?P<double>[^"]*)"`
	bareNum   = `(?P<num>-?\d+(?:\.\d+)?)`
)

type condPattern struct {
	name string
	re   *regexp.Regexp
	op   query.Op
}

// Tried in order; the first match wins.
var condPatterns = []condPattern{
	{"quoted equality", regexp.MustCompile(`(?is)^` + colRef + `\s*=\s*(?:` + quotedVal + `)$`), query.OpEQ},
	{"bare equality", regexp.MustCompile(`(?is)^` + colRef + `\s*=\s*` + bareNum + `$`), query.OpEQ},
	{"greater than", regexp.MustCompile(`(?is)^` + colRef + `\s*>\s*(?:` + quotedVal + `|` + bareNum + `)$`), query.OpGT},
	{"less than", regexp.MustCompile(`(?is)^` + colRef + `\s*<\s*(?:` + quotedVal + `|` + bareNum + `)$`), query.OpLT},
	{"like", regexp.MustCompile(`(?is)^` + colRef + `\s+LIKE\s+(?:` + quotedVal + `)$`), query.OpEQ},
}

// Parse implements Parser.
func (p *RegexParser) Parse(sql string) (*query.Query, error) {
	res, err := p.ParseDetailed(sql)
	if err != nil {
		return nil, err
	}
	return &res.Query, nil
}

// ParseDetailed parses sql and reports what it had to drop.
func (p *RegexParser) ParseDetailed(sql string) (Result, error) {
	text := strings.TrimSpace(fenceRe.ReplaceAllString(sql, ""))

	loc := selectRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return Result{}, ErrNoSelect
	}
	selectSpan := text[loc[2]:loc[3]]
	rest := text[loc[1]:]

	var res Result
	res.Query.Conds = []query.Cond{}

	if m := selColRe.FindStringSubmatch(selectSpan); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			res.Query.Sel = n
		}
	}
	for _, ap := range aggPatterns {
		if ap.re.MatchString(selectSpan) {
			res.Query.Agg = ap.agg
			break
		}
	}

	if w := whereRe.FindStringIndex(rest); w != nil {
		for _, conj := range splitConjuncts(rest[w[1]:]) {
			cond, warn, ok := parseCondition(conj)
			if !ok {
				res.Dropped = append(res.Dropped, conj)
				p.log.Warn("dropping unparseable condition", "condition", conj)
				continue
			}
			if warn != "" {
				res.Warnings = append(res.Warnings, warn)
				p.log.Warn(warn, "condition", conj)
			}
			res.Query.Conds = append(res.Query.Conds, cond)
		}
	}
	return res, nil
}

func parseCondition(conj string) (query.Cond, string, bool) {
	conj = stripParens(strings.TrimSpace(conj))
	if conj == "" || containsWord(conj, "OR") {
		return query.Cond{}, "", false
	}
	for _, cp := range condPatterns {
		m := cp.re.FindStringSubmatchIndex(conj)
		if m == nil {
			continue
		}
		col, err := strconv.Atoi(group(cp.re, conj, m, "col"))
		if err != nil {
			return query.Cond{}, "", false
		}
		value := literalOf(cp.re, conj, m)
		var warn string
		if cp.name == "like" {
			value.Text = strings.Trim(value.Text, "%")
			warn = "LIKE condition folded into equality"
		}
		return query.Cond{Column: col, Op: cp.op, Value: value}, warn, true
	}
	return query.Cond{}, "", false
}

// group returns the named submatch, "" when it did not participate.
func group(re *regexp.Regexp, s string, m []int, name string) string {
	i := re.SubexpIndex(name)
	if i < 0 || m[2*i] < 0 {
		return ""
	}
	return s[m[2*i]:m[2*i+1]]
}

func matched(re *regexp.Regexp, m []int, name string) bool {
	i := re.SubexpIndex(name)
	return i >= 0 && m[2*i] >= 0
}

// literalOf picks whichever value group matched: bare number, double-quoted
// or single-quoted with doubled quotes undone. Bare numbers keep their text
// as a string literal, the wire form of the official evaluator.
func literalOf(re *regexp.Regexp, s string, m []int) query.Literal {
	switch {
	case matched(re, m, "num"):
		return query.String(group(re, s, m, "num"))
	case matched(re, m, "double"):
		return query.String(group(re, s, m, "double"))
	default:
		return query.String(strings.ReplaceAll(group(re, s, m, "single"), "''", "'"))
	}
}

// stripParens removes parentheses wrapping the whole conjunct and the
// unbalanced ones left over when a grouped WHERE body is split on AND.
func stripParens(s string) string {
	for {
		opens, closes := parenBalance(s)
		switch {
		case len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')':
			s = strings.TrimSpace(s[1 : len(s)-1])
		case len(s) > 0 && s[0] == '(' && opens > closes:
			s = strings.TrimSpace(s[1:])
		case len(s) > 0 && s[len(s)-1] == ')' && closes > opens:
			s = strings.TrimSpace(s[:len(s)-1])
		default:
			return s
		}
	}
}

// parenBalance counts parentheses outside quoted literals.
func parenBalance(s string) (opens, closes int) {
	walk(s, func(i int) bool {
		switch s[i] {
		case '(':
			opens++
		case ')':
			closes++
		}
		return true
	})
	return opens, closes
}
