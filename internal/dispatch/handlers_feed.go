package dispatch

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/dealscout/internal/candidate"
	"github.com/fyrsmithlabs/dealscout/internal/learning"
	"github.com/fyrsmithlabs/dealscout/internal/memory"
	"github.com/fyrsmithlabs/dealscout/internal/scoring"
)

// CandidatesPayload carries a batch of candidates.
type CandidatesPayload struct {
	Candidates []candidate.Candidate `json:"candidates"`
}

// scoreAll scores candidates in input order.
func scoreAll(sc *scorer, cands []candidate.Candidate) []learning.ScoredCandidate {
	out := make([]learning.ScoredCandidate, 0, len(cands))
	for _, c := range cands {
		out = append(out, learning.ScoredCandidate{Candidate: c, Result: sc.score(c)})
	}
	return out
}

// sortByScore orders by score descending, keeping input order among ties.
func sortByScore(scored []learning.ScoredCandidate) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Result.Score > scored[j].Result.Score
	})
}

// ShortlistPayload is the payload of create-shortlist.
type ShortlistPayload struct {
	Candidates []candidate.Candidate `json:"candidates"`
	Limit      int                   `json:"limit,omitempty"`
	MinScore   int                   `json:"min_score,omitempty"`
}

const defaultShortlistLimit = 10

func (d *Dispatcher) handleCreateShortlist(_ context.Context, personaID string, req Request) (*Outcome, error) {
	p, err := decode[ShortlistPayload](req)
	if err != nil {
		return nil, err
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultShortlistLimit
	}
	sc, err := d.scorerFor(personaID)
	if err != nil {
		return nil, err
	}

	scored := scoreAll(sc, p.Candidates)
	sortByScore(scored)
	shortlist := make([]learning.ScoredCandidate, 0, limit)
	for _, s := range scored {
		if len(shortlist) == limit {
			break
		}
		if s.Result.Score >= p.MinScore {
			shortlist = append(shortlist, s)
		}
	}

	data := toScoreData(shortlist)
	reasoning := fmt.Sprintf("Shortlisted %d of %d candidates (limit %d, minimum score %d).",
		len(data), len(p.Candidates), limit, p.MinScore)
	if len(data) > 0 {
		reasoning += fmt.Sprintf(" Top pick: %s at %d.", displayName(shortlist[0].Candidate), shortlist[0].Result.Score)
	}
	return &Outcome{Data: data, Reasoning: reasoning}, nil
}

func (d *Dispatcher) handleAutoScore(_ context.Context, personaID string, req Request) (*Outcome, error) {
	p, err := decode[CandidatesPayload](req)
	if err != nil {
		return nil, err
	}
	sc, err := d.scorerFor(personaID)
	if err != nil {
		return nil, err
	}

	scored := scoreAll(sc, p.Candidates)
	counts := map[scoring.Recommendation]int{}
	for _, s := range scored {
		counts[s.Result.Recommendation]++
	}
	reasoning := fmt.Sprintf("Scored %d candidates: %d strong pass, %d soft pass, %d borderline, %d pass.",
		len(scored), counts[scoring.StrongPass], counts[scoring.SoftPass], counts[scoring.Borderline], counts[scoring.Pass])
	return &Outcome{Data: toScoreData(scored), Reasoning: reasoning}, nil
}

func (d *Dispatcher) handleSortFeed(_ context.Context, personaID string, req Request) (*Outcome, error) {
	p, err := decode[CandidatesPayload](req)
	if err != nil {
		return nil, err
	}
	sc, err := d.scorerFor(personaID)
	if err != nil {
		return nil, err
	}

	scored := scoreAll(sc, p.Candidates)
	sortByScore(scored)
	reasoning := fmt.Sprintf("Sorted %d feed items by fit score.", len(scored))
	if len(scored) > 0 {
		reasoning += fmt.Sprintf(" Range %d to %d.", scored[len(scored)-1].Result.Score, scored[0].Result.Score)
	}
	return &Outcome{Data: toScoreData(scored), Reasoning: reasoning}, nil
}

// AlertKind classifies an alert.
type AlertKind string

const (
	AlertRedFlag    AlertKind = "red_flag"
	AlertStrongPass AlertKind = "strong_match"
)

// Alert flags a candidate that needs attention.
type Alert struct {
	Kind        AlertKind `json:"kind"`
	CandidateID string    `json:"candidate_id"`
	Name        string    `json:"name,omitempty"`
	Score       int       `json:"score"`
	Signals     []string  `json:"signals,omitempty"`
	Message     string    `json:"message"`
}

func (d *Dispatcher) handleCheckAlerts(_ context.Context, personaID string, req Request) (*Outcome, error) {
	p, err := decode[CandidatesPayload](req)
	if err != nil {
		return nil, err
	}
	sc, err := d.scorerFor(personaID)
	if err != nil {
		return nil, err
	}

	alerts := []Alert{}
	for _, s := range scoreAll(sc, p.Candidates) {
		name := displayName(s.Candidate)
		if len(s.Result.MatchedRedFlags) > 0 {
			alerts = append(alerts, Alert{
				Kind:        AlertRedFlag,
				CandidateID: s.Candidate.ID,
				Name:        s.Candidate.Name,
				Score:       s.Result.Score,
				Signals:     s.Result.MatchedRedFlags,
				Message:     fmt.Sprintf("%s shows red flags: %s", name, strings.Join(s.Result.MatchedRedFlags, ", ")),
			})
		}
		if s.Result.Recommendation == scoring.StrongPass {
			alerts = append(alerts, Alert{
				Kind:        AlertStrongPass,
				CandidateID: s.Candidate.ID,
				Name:        s.Candidate.Name,
				Score:       s.Result.Score,
				Signals:     s.Result.MatchedPositive,
				Message:     fmt.Sprintf("%s is a strong match at %d", name, s.Result.Score),
			})
		}
	}

	reasoning := fmt.Sprintf("Checked %d candidates; no alerts.", len(p.Candidates))
	if len(alerts) > 0 {
		reasoning = fmt.Sprintf("Checked %d candidates; %d alert(s).", len(p.Candidates), len(alerts))
	}
	return &Outcome{Data: alerts, Reasoning: reasoning}, nil
}

// SessionSummaryData describes the persona's accumulated memory.
type SessionSummaryData struct {
	PersonaID      string              `json:"persona_id"`
	PersonaName    string              `json:"persona_name"`
	Liked          int                 `json:"liked"`
	Disliked       int                 `json:"disliked"`
	TotalReward    float64             `json:"total_reward"`
	RewardEvents   int                 `json:"reward_events"`
	TopPreferences []memory.Preference `json:"top_preferences"`
	Context        string              `json:"context"`
}

func (d *Dispatcher) handleSessionSummary(_ context.Context, personaID string, _ Request) (*Outcome, error) {
	pers, err := d.deps.Registry.Get(personaID)
	if err != nil {
		return nil, err
	}
	st, err := d.deps.Store.GetState(personaID)
	if err != nil {
		return nil, err
	}

	prefs := append([]memory.Preference{}, st.LearnedPreferences...)
	sort.SliceStable(prefs, func(i, j int) bool {
		return abs(prefs[i].Net()) > abs(prefs[j].Net())
	})
	if len(prefs) > memory.SummaryTopPreferences {
		prefs = prefs[:memory.SummaryTopPreferences]
	}

	data := SessionSummaryData{
		PersonaID:      personaID,
		PersonaName:    pers.Name,
		Liked:          len(st.LikedEntities),
		Disliked:       len(st.DislikedEntities),
		TotalReward:    round1(st.TotalReward),
		RewardEvents:   len(st.RewardHistory),
		TopPreferences: prefs,
		Context:        memory.RenderSummary(personaID, st),
	}
	reasoning := fmt.Sprintf("%s: %d liked, %d disliked, total reward %.1f across %d events.",
		pers.Name, data.Liked, data.Disliked, data.TotalReward, data.RewardEvents)
	return &Outcome{Data: data, Reasoning: reasoning}, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// NaturalSearchPayload is the payload of natural-search. Candidates, when
// given, are filtered locally instead of calling the Searcher.
type NaturalSearchPayload struct {
	Query      string                `json:"query"`
	Candidates []candidate.Candidate `json:"candidates,omitempty"`
	Limit      int                   `json:"limit,omitempty"`
}

// NaturalSearchData is the parsed query and its scored matches.
type NaturalSearchData struct {
	Query   SearchQuery `json:"query"`
	Source  string      `json:"source"` // "searcher" or "local"
	Results []ScoreData `json:"results"`
}

var (
	yearsPlusRe  = regexp.MustCompile(`(\d+)\s*\+\s*years?`)
	yearsRangeRe = regexp.MustCompile(`(\d+)\s*(?:-|to)\s*(\d+)\s*years?`)
	minYearsRe   = regexp.MustCompile(`(?:at least|over|more than)\s+(\d+)\s*years?`)
	maxYearsRe   = regexp.MustCompile(`(?:under|less than|at most)\s+(\d+)\s*years?`)
	regionRe     = regexp.MustCompile(`\b(?:in|from|based in)\s+([a-z][a-z ]*?)(?:\s+(?:with|who|and|that)\b|$)`)
)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "with": true,
	"who": true, "that": true, "in": true, "from": true, "based": true, "of": true,
	"for": true, "find": true, "show": true, "me": true, "people": true,
	"candidates": true, "years": true, "year": true, "experience": true,
	"at": true, "least": true, "over": true, "under": true, "more": true,
	"less": true, "than": true, "most": true, "to": true, "is": true, "are": true,
}

// ParseQuery extracts structured filters from a free-text query. Terms are
// normalized tokens; signal types named by the recipe are lifted out.
func ParseQuery(raw string, signalTypes []string) SearchQuery {
	q := SearchQuery{Raw: raw}
	text := strings.ToLower(strings.TrimSpace(raw))

	if m := yearsRangeRe.FindStringSubmatch(text); m != nil {
		q.MinYears, _ = strconv.Atoi(m[1])
		q.MaxYears, _ = strconv.Atoi(m[2])
		text = strings.Replace(text, m[0], " ", 1)
	}
	if m := yearsPlusRe.FindStringSubmatch(text); m != nil {
		q.MinYears, _ = strconv.Atoi(m[1])
		text = strings.Replace(text, m[0], " ", 1)
	}
	if m := minYearsRe.FindStringSubmatch(text); m != nil {
		q.MinYears, _ = strconv.Atoi(m[1])
		text = strings.Replace(text, m[0], " ", 1)
	}
	if m := maxYearsRe.FindStringSubmatch(text); m != nil {
		q.MaxYears, _ = strconv.Atoi(m[1])
		text = strings.Replace(text, m[0], " ", 1)
	}
	if m := regionRe.FindStringSubmatch(text); m != nil {
		q.Region = candidate.NormalizeToken(m[1])
		text = strings.Replace(text, m[0], " ", 1)
	}

	var words []string
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if !stopwords[w] {
			words = append(words, w)
		}
	}
	// A signal type matches whole adjacent words ("new company"), with an
	// optional plural on the last one ("left jobs").
	for _, st := range signalTypes {
		if st == "" {
			continue
		}
		n := strings.Count(st, "_") + 1
		for i := 0; i+n <= len(words); i++ {
			if w := strings.Join(words[i:i+n], "_"); w == st || w == st+"s" {
				q.SignalType = st
				words = append(words[:i:i], words[i+n:]...)
				break
			}
		}
		if q.SignalType != "" {
			break
		}
	}
	q.Terms = append(q.Terms, words...)
	return q
}

// matchesQuery applies the parsed filters to one candidate.
func matchesQuery(c candidate.Candidate, q SearchQuery) bool {
	if q.MinYears > 0 && c.YearsExperience < q.MinYears {
		return false
	}
	if q.MaxYears > 0 && c.YearsExperience > q.MaxYears {
		return false
	}
	if q.Region != "" && !scoring.Matches(candidate.NormalizeToken(c.Region), q.Region) {
		return false
	}
	if q.SignalType != "" && candidate.NormalizeToken(c.SignalType) != q.SignalType &&
		!containsToken(c.Tokens(), q.SignalType) {
		return false
	}
	if len(q.Terms) == 0 {
		return true
	}
	haystack := append(c.Tokens(),
		candidate.NormalizeToken(c.Name),
		candidate.NormalizeToken(c.Title),
		candidate.NormalizeToken(c.Industry),
		candidate.NormalizeToken(c.CurrentCompany))
	for _, term := range q.Terms {
		for _, h := range haystack {
			if h != "" && strings.Contains(h, term) {
				return true
			}
		}
	}
	return false
}

func containsToken(tokens []string, t string) bool {
	for _, x := range tokens {
		if x == t {
			return true
		}
	}
	return false
}

const defaultSearchLimit = 20

func (d *Dispatcher) handleNaturalSearch(ctx context.Context, personaID string, req Request) (*Outcome, error) {
	p, err := decode[NaturalSearchPayload](req)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Query) == "" {
		return nil, Errorf(CodeInvalidPayload, "query is required")
	}
	sc, err := d.scorerFor(personaID)
	if err != nil {
		return nil, err
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	q := ParseQuery(p.Query, sc.recipe.SignalTypes)
	q.Limit = limit

	var (
		found  []candidate.Candidate
		source = "local"
		tools  []ToolCall
	)
	if len(p.Candidates) == 0 && d.deps.Searcher != nil {
		source = "searcher"
		tc, err := toolCall("search", p.Query, func() error {
			var err error
			found, err = d.deps.Searcher.Search(ctx, q)
			return err
		})
		tools = append(tools, tc)
		if err != nil {
			return &Outcome{
				Data:        NaturalSearchData{Query: q, Source: source, Results: []ScoreData{}},
				Reasoning:   fmt.Sprintf("Search backend failed (%v); no results.", err),
				ToolsCalled: tools,
			}, nil
		}
	} else {
		for _, c := range p.Candidates {
			if matchesQuery(c, q) {
				found = append(found, c)
			}
		}
	}

	scored := scoreAll(sc, found)
	sortByScore(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}

	reasoning := fmt.Sprintf("Parsed %q into %d term(s)", p.Query, len(q.Terms))
	if q.Region != "" {
		reasoning += ", region " + q.Region
	}
	if q.MinYears > 0 || q.MaxYears > 0 {
		reasoning += fmt.Sprintf(", years %d-%d", q.MinYears, q.MaxYears)
	}
	reasoning += fmt.Sprintf("; %d match(es) from %s search.", len(scored), source)
	return &Outcome{
		Data:        NaturalSearchData{Query: q, Source: source, Results: toScoreData(scored)},
		Reasoning:   reasoning,
		ToolsCalled: tools,
	}, nil
}

func displayName(c candidate.Candidate) string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}
