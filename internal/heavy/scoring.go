package heavy

import (
	"regexp"
	"strconv"
	"strings"
)

// Scorer estimates how confident a critique text is, in [0,1].
type Scorer interface {
	Score(text string) float64
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(string) float64

func (f ScorerFunc) Score(text string) float64 { return f(text) }

// KeywordScorer counts affirmative keywords and rewards the structured
// answer format the critique prompt asks for. It is a lexical heuristic.
type KeywordScorer struct{}

var critiqueKeywords = []string{
	"correct", "accurate", "appropriate", "valid", "suitable",
	"recommend", "suggest", "should", "would", "effective",
	"optimal", "proper", "reliable", "consistent", "logical",
}

var structureBonus = []struct {
	marker string
	bonus  float64
}{
	{"**SQL Analysis**", 0.1},
	{"**Query Reasoning**", 0.1},
	{"**Expected Results**", 0.05},
	{"**Correctness Assessment**", 0.05},
}

func (KeywordScorer) Score(text string) float64 {
	if text == "" {
		return 0
	}
	score := min(float64(countKeywords(strings.ToLower(text), critiqueKeywords))/10, 0.8)
	for _, s := range structureBonus {
		if strings.Contains(text, s.marker) {
			score += s.bonus
		}
	}
	return min(score, 1)
}

func countKeywords(lower string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			n++
		}
	}
	return n
}

var recommendationWords = []string{"should", "recommend", "suggest", "need", "could"}

const maxRecommendations = 5

// Recommendations returns up to five lines of text that read as advice.
func Recommendations(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) <= 10 {
			continue
		}
		lower := strings.ToLower(line)
		for _, w := range recommendationWords {
			if strings.Contains(lower, w) {
				out = append(out, line)
				break
			}
		}
		if len(out) == maxRecommendations {
			break
		}
	}
	return out
}

var confidenceMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\*\*Confidence\*\*[：:]\s*([0-9.]+)`),
	regexp.MustCompile(`(?i)confidence[：:]\s*([0-9.]+)`),
	regexp.MustCompile(`(?i)Confidence Score[：:]\s*([0-9.]+)`),
	regexp.MustCompile(`(?i)Overall confidence[：:]\s*([0-9.]+)`),
	regexp.MustCompile(`(?i)([0-9.]+)\s*(?:out of|/)\s*1(?:\.0+)?\b`),
	regexp.MustCompile(`(?i)([0-9.]+)\s*(?:%|percent)`),
}

// ExplicitConfidence finds a stated confidence in text. Values above 1 are
// read as percentages. Markers are tried in order and the first one whose
// first match lands in [0,1] wins.
func ExplicitConfidence(text string) (float64, bool) {
	for _, re := range confidenceMarkers {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if v > 1 {
			v /= 100
		}
		if v >= 0 && v <= 1 {
			return v, true
		}
	}
	return 0, false
}

var (
	qualityWords = []string{
		"correct", "accurate", "appropriate", "valid", "suitable",
		"recommend", "improved", "better", "optimal", "effective",
	}
	negativeWords = []string{
		"error", "incorrect", "wrong", "missing", "failed",
		"unclear", "ambiguous", "problematic", "insufficient",
	}
)

// SynthesisConfidence derives the overall confidence of a synthesis. An
// explicit marker wins; otherwise the mean critique confidence is scaled by
// the share of critiques that succeeded and adjusted by the tone of the
// synthesis text.
func SynthesisConfidence(text string, critiques []float64, total int) float64 {
	if v, ok := ExplicitConfidence(text); ok {
		return v
	}
	if len(critiques) == 0 || total == 0 {
		return 0.5
	}
	var sum float64
	for _, c := range critiques {
		sum += c
	}
	avg := sum / float64(len(critiques))

	lower := strings.ToLower(text)
	pos := float64(countKeywords(lower, qualityWords))
	neg := float64(countKeywords(lower, negativeWords))
	quality := clamp((pos-0.5*neg)/10, -0.3, 0.3)

	return clamp(avg*float64(len(critiques))/float64(total)+quality, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
