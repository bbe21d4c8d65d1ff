package heavy

import (
	"fmt"
	"regexp"
	"strings"

	"wikisqleval/internal/sqlparse"
)

// Patterns that locate a proposed SQL statement, most specific first.
var improvedSQLPatterns = []*regexp.Regexp{
	regexp.MustCompile("(?is)```sql\\s*\\n(.*?)\\n```"),
	regexp.MustCompile("(?is)```\\s*\\n(SELECT.*?;)\\s*\\n```"),
	regexp.MustCompile("(?is)\\*\\*Improved SQL\\*\\*.*?```sql\\s*\\n(.*?)\\n```"),
	regexp.MustCompile(`(?is)\*\*Improved SQL\*\*.*?[:：]\s*(SELECT.*?;)`),
	regexp.MustCompile(`(?is)corrected.*?SQL.*?[:：]\s*(SELECT.*?;)`),
	regexp.MustCompile(`(?is)improved.*?SQL.*?[:：]\s*(SELECT.*?;)`),
	regexp.MustCompile(`(?is)(SELECT\s+col\d+.*?WHERE.*?;)`),
	regexp.MustCompile(`(?is)(SELECT\s+.*?FROM\s+.*?WHERE.*?AND.*?;)`),
}

// normalizeSQL collapses whitespace and ends the statement with ';'.
func normalizeSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s != "" && !strings.HasSuffix(s, ";") {
		s += ";"
	}
	return s
}

// ExtractRevision returns the first proposed SQL in text that parser can read
// and JudgeRevision accepts against original. reason explains the last
// verdict reached.
func ExtractRevision(text, original string, parser sqlparse.Parser) (revised, reason string, ok bool) {
	orig := normalizeSQL(original)
	reason = "no revised sql proposed"
	for _, re := range improvedSQLPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		cand := normalizeSQL(m[1])
		if cand == "" || cand == orig || len(cand) <= 10 || !strings.Contains(strings.ToUpper(cand), "SELECT") {
			continue
		}
		if _, err := parser.Parse(cand); err != nil {
			reason = "revised sql does not parse: " + err.Error()
			continue
		}
		if ok, reason = JudgeRevision(cand, original); ok {
			return cand, reason, true
		}
	}
	return "", reason, false
}

var (
	whereClauseRe = regexp.MustCompile(`(?is)WHERE\s+(.+?)(?:\s+ORDER|\s+GROUP|\s+LIMIT|;|$)`)
	andRe         = regexp.MustCompile(`(?i)\bAND\b`)
	selectListRe  = regexp.MustCompile(`(?is)SELECT\s+(.*?)\s+FROM`)
)

var complexityIndicators = []string{"LIKE", "LOWER", "UPPER", "CROSS APPLY", "STRING_SPLIT", "%"}

func countConditions(sql string) int {
	m := whereClauseRe.FindStringSubmatch(sql)
	if m == nil {
		return 0
	}
	return len(andRe.FindAllString(m[1], -1)) + 1
}

func complexity(sql string) int {
	upper := strings.ToUpper(sql)
	n := 0
	for _, c := range complexityIndicators {
		if strings.Contains(upper, c) {
			n++
		}
	}
	return n
}

// JudgeRevision decides whether revised improves on original. Only a
// revision that adds conditions is accepted.
func JudgeRevision(revised, original string) (bool, string) {
	if n, o := countConditions(revised), countConditions(original); n > o {
		return true, fmt.Sprintf("adds %d condition(s)", n-o)
	}
	o := selectListRe.FindStringSubmatch(original)
	r := selectListRe.FindStringSubmatch(revised)
	if o != nil && r != nil && strings.TrimSpace(o[1]) != strings.TrimSpace(r[1]) {
		return false, "changes the select list"
	}
	if complexity(revised) > complexity(original) {
		return false, "adds complexity"
	}
	return false, "no clear improvement"
}
