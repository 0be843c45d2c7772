package memory

import (
	"fmt"
	"sort"
	"strings"
)

// Summary limits.
const (
	SummaryTopPreferences = 5
	SummaryRecentEntities = 5
)

// BuildContextSummary renders the persona's memory as plain-text sections
// for splicing into an LLM prompt. Section order is preferences, recent
// likes, recent dislikes, reward stats.
func (s *Store) BuildContextSummary(id string) (string, error) {
	st, err := s.GetState(id)
	if err != nil {
		return "", err
	}
	return RenderSummary(id, st), nil
}

// RenderSummary renders one state. It does not modify st.
func RenderSummary(personaID string, st *PersonaMemoryState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Persona: %s\n", personaID)

	positive, negative := splitPreferences(st.LearnedPreferences)
	b.WriteString("\nPreferences:\n")
	if len(positive) == 0 && len(negative) == 0 {
		b.WriteString("  (none learned yet)\n")
	}
	for _, p := range positive {
		fmt.Fprintf(&b, "  + %s: %s (%+.2f)\n", p.Category, p.Value, p.Net())
	}
	for _, p := range negative {
		fmt.Fprintf(&b, "  - %s: %s (%+.2f)\n", p.Category, p.Value, p.Net())
	}

	writeRecent(&b, "Recent likes", st.LikedEntities)
	writeRecent(&b, "Recent dislikes", st.DislikedEntities)

	b.WriteString("\nReward stats:\n")
	fmt.Fprintf(&b, "  total reward: %.1f\n", st.TotalReward)
	fmt.Fprintf(&b, "  liked: %d, disliked: %d, events: %d\n",
		len(st.LikedEntities), len(st.DislikedEntities), len(st.RewardHistory))
	return b.String()
}

// splitPreferences returns the strongest net-positive and net-negative
// preferences, strongest first. Zero-net preferences are omitted.
func splitPreferences(prefs []Preference) (positive, negative []Preference) {
	for _, p := range prefs {
		switch net := p.Net(); {
		case net > 0:
			positive = append(positive, p)
		case net < 0:
			negative = append(negative, p)
		}
	}
	sort.SliceStable(positive, func(i, j int) bool { return positive[i].Net() > positive[j].Net() })
	sort.SliceStable(negative, func(i, j int) bool { return negative[i].Net() < negative[j].Net() })
	if len(positive) > SummaryTopPreferences {
		positive = positive[:SummaryTopPreferences]
	}
	if len(negative) > SummaryTopPreferences {
		negative = negative[:SummaryTopPreferences]
	}
	return positive, negative
}

func writeRecent(b *strings.Builder, title string, refs []EntityRef) {
	fmt.Fprintf(b, "\n%s:\n", title)
	if len(refs) == 0 {
		b.WriteString("  (none)\n")
		return
	}
	shown := 0
	for i := len(refs) - 1; i >= 0 && shown < SummaryRecentEntities; i-- {
		r := refs[i]
		name := r.Name
		if name == "" {
			name = r.ID
		}
		line := "  " + name
		if r.Reason != "" {
			line += " (" + r.Reason + ")"
		}
		b.WriteString(line + "\n")
		shown++
	}
}
