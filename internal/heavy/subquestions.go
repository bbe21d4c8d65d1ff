package heavy

import (
	"fmt"
	"strings"
)

var subquestionPrefixes = []string{"ORIGINAL:", "SPECIFIC:", "ALTERNATIVE:", "VERIFICATION:"}

// ParseSubquestions reads the four labelled lines of a reformulation
// response. ok is false unless exactly four were found.
func ParseSubquestions(resp string) (qs []string, ok bool) {
	for _, line := range strings.Split(resp, "\n") {
		line = strings.TrimSpace(line)
		for _, p := range subquestionPrefixes {
			if strings.HasPrefix(line, p) {
				qs = append(qs, strings.TrimSpace(strings.TrimPrefix(line, p)))
				break
			}
		}
	}
	return qs, len(qs) == len(subquestionPrefixes)
}

// FallbackSubquestions keeps the question and adds three templated framings.
func FallbackSubquestions(question string) []string {
	return []string{
		question,
		fmt.Sprintf("Which specific details and conditions are most important when answering: '%s'?", question),
		fmt.Sprintf("How can we rephrase this inquiry using different terminology: '%s'?", question),
		fmt.Sprintf("What evidence would confirm we have correctly answered: '%s'?", question),
	}
}
