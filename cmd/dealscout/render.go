package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/dealscout/internal/dispatch"
	"github.com/fyrsmithlabs/dealscout/internal/persona"
	"github.com/fyrsmithlabs/dealscout/internal/scoring"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	strongStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	softStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("120"))

	borderlineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	passStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)
)

// recommendationStyle colors a recommendation band.
func recommendationStyle(r scoring.Recommendation) lipgloss.Style {
	switch r {
	case scoring.StrongPass:
		return strongStyle
	case scoring.SoftPass:
		return softStyle
	case scoring.Borderline:
		return borderlineStyle
	default:
		return passStyle
	}
}

// scoreBar renders score out of 100 as a fixed-width bar.
func scoreBar(score int) string {
	const width = 20
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	filled := score * width / 100
	return strings.Repeat("█", filled) + dimStyle.Render(strings.Repeat("░", width-filled))
}

// renderScoreCard formats one score-person result.
func renderScoreCard(personaName string, d dispatch.ScoreData) string {
	res := d.Result
	name := d.Name
	if name == "" {
		name = d.CandidateID
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(name))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render("as " + personaName))
	b.WriteString("\n\n")

	style := recommendationStyle(res.Recommendation)
	fmt.Fprintf(&b, "%s %s %s\n",
		labelStyle.Render("Score     "),
		valueStyle.Render(fmt.Sprintf("%3d", res.Score)),
		scoreBar(res.Score))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Verdict   "), style.Render(string(res.Recommendation)))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Confidence"), valueStyle.Render(fmt.Sprintf("%d%%", res.Confidence)))

	writeTokens(&b, "Strengths ", res.MatchedPositive, strongStyle)
	writeTokens(&b, "Concerns  ", res.MatchedNegative, borderlineStyle)
	writeTokens(&b, "Red flags ", res.MatchedRedFlags, passStyle)

	if notes := extraReasons(d.Reasons); len(notes) > 0 {
		b.WriteString("\n")
		for _, r := range notes {
			b.WriteString(dimStyle.Render("• " + r))
			b.WriteString("\n")
		}
	}

	return cardStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// extraReasons drops the summary line and the token lines the card already
// shows.
func extraReasons(reasons []string) []string {
	var out []string
	for i, r := range reasons {
		if i == 0 || strings.HasPrefix(r, "Strengths: ") ||
			strings.HasPrefix(r, "Concerns: ") || strings.HasPrefix(r, "Red flags: ") {
			continue
		}
		out = append(out, r)
	}
	return out
}

func writeTokens(b *strings.Builder, label string, tokens []string, style lipgloss.Style) {
	if len(tokens) == 0 {
		return
	}
	fmt.Fprintf(b, "%s %s\n", labelStyle.Render(label), style.Render(strings.Join(tokens, ", ")))
}

// renderPersonas formats the persona list, marking the active one.
func renderPersonas(personas []persona.Persona, active string) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Personas"))
	b.WriteString("\n\n")
	for _, p := range personas {
		marker := "  "
		if p.ID == active {
			marker = strongStyle.Render("● ")
		}
		fmt.Fprintf(&b, "%s%s %s\n", marker, valueStyle.Render(fmt.Sprintf("%-10s", p.ID)), dimStyle.Render(p.Name))
		if len(p.Recipe.PositiveHighlights) > 0 {
			fmt.Fprintf(&b, "    %s %s\n", labelStyle.Render("likes:"), strings.Join(p.Recipe.PositiveHighlights, ", "))
		}
		if len(p.Recipe.RedFlags) > 0 {
			fmt.Fprintf(&b, "    %s %s\n", labelStyle.Render("red flags:"), strings.Join(p.Recipe.RedFlags, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
