package retrieval

import "unicode"

var positiveFeedback = map[string]bool{
	"accurate": true, "actionable": true, "excellent": true, "good": true, "great": true,
	"helpful": true, "insightful": true, "relevant": true, "success": true,
	"successful": true, "timely": true, "useful": true, "valuable": true, "worked": true,
}

var negativeFeedback = map[string]bool{
	"bad": true, "failed": true, "inaccurate": true, "irrelevant": true, "late": true,
	"misleading": true, "noise": true, "poor": true, "stale": true, "useless": true,
	"wrong": true,
}

// FeedbackSentiment maps free-text feedback to an execution score: 0.8 when
// positive words outnumber negative ones, 0.2 for the reverse, else 0.5.
func FeedbackSentiment(text string) float64 {
	pos, neg := 0, 0
	for _, t := range tokenize(text) {
		switch {
		case positiveFeedback[t]:
			pos++
		case negativeFeedback[t]:
			neg++
		}
	}
	switch {
	case pos > neg:
		return 0.8
	case neg > pos:
		return 0.2
	}
	return 0.5
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
