package scoring

import (
	"fmt"
	"strings"
)

// Reasons renders a result as short human-readable lines, largest
// contributions first within each category.
func Reasons(r Result) []string {
	lines := []string{fmt.Sprintf("Score %d/100 (%s), model confidence %d%%", r.Score, r.Recommendation, r.Confidence)}
	if len(r.MatchedPositive) > 0 {
		lines = append(lines, "Strengths: "+strings.Join(r.MatchedPositive, ", "))
	}
	if len(r.MatchedNegative) > 0 {
		lines = append(lines, "Concerns: "+strings.Join(r.MatchedNegative, ", "))
	}
	if len(r.MatchedRedFlags) > 0 {
		lines = append(lines, "Red flags: "+strings.Join(r.MatchedRedFlags, ", "))
	}
	for _, a := range r.Adjustments {
		switch a.Category {
		case CategoryYears:
			if a.Delta > 0 {
				lines = append(lines, "Experience within the target range")
			} else {
				lines = append(lines, "Experience outside the target range")
			}
		case CategoryLocation:
			lines = append(lines, "Preferred location: "+a.Token)
		}
	}
	if len(r.Adjustments) == 0 {
		lines = append(lines, "No recipe signals matched; neutral score")
	}
	return lines
}
