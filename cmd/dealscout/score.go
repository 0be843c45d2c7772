package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/dealscout/internal/candidate"
	"github.com/fyrsmithlabs/dealscout/internal/dispatch"
)

var (
	scorePersona    string
	scoreFile       string
	scoreJSON       bool
	scoreDeep       bool
	scoreCandidate  candidate.Candidate
	scoreHighlights []string
)

func init() {
	f := scoreCmd.Flags()
	f.StringVar(&scorePersona, "persona", "", "persona to score as (default: active persona)")
	f.StringVarP(&scoreFile, "file", "f", "", "candidate JSON file, or - for stdin")
	f.BoolVar(&scoreJSON, "json", false, "print the raw dispatch response as JSON")
	f.BoolVar(&scoreDeep, "deep", false, "enrich from the upstream API before scoring")
	f.StringVar(&scoreCandidate.ID, "id", "", "candidate ID")
	f.StringVar(&scoreCandidate.Name, "name", "", "candidate name")
	f.StringVar(&scoreCandidate.Title, "title", "", "title or seniority")
	f.StringVar(&scoreCandidate.Industry, "industry", "", "industry")
	f.StringVar(&scoreCandidate.Region, "region", "", "location or region")
	f.IntVar(&scoreCandidate.YearsExperience, "years", 0, "years of experience")
	f.StringSliceVar(&scoreHighlights, "highlight", nil, "highlight token (repeatable or comma-separated)")
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one candidate and print a card",
	Long: `Score a candidate against a persona without starting a server.

Examples:
  # Score from flags
  dealscout score --persona early --id p1 --name "Ada" --highlight serial_founder,technical_founder

  # Score a JSON candidate
  dealscout score --persona angel -f candidate.json

  # Enrich first, then score
  dealscout score --persona growth --id co_42 --deep`,
	RunE: runScore,
}

func runScore(cmd *cobra.Command, args []string) error {
	c, err := readCandidate(cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, appOptions{quiet: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.close(context.Background()) }()

	trigger := dispatch.TriggerScorePerson
	var payload any = dispatch.ScorePersonPayload{Candidate: c}
	if scoreDeep {
		trigger = dispatch.TriggerDeepDive
		payload = dispatch.DeepDivePayload{Candidate: c}
	}
	req, err := dispatch.NewRequest(trigger, scorePersona, payload)
	if err != nil {
		return err
	}
	resp := a.dispatcher.Dispatch(ctx, req)

	out := cmd.OutOrStdout()
	if scoreJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	if resp.Error != nil {
		return resp.Error
	}

	name := resp.PersonaID
	if p, err := a.registry.Get(resp.PersonaID); err == nil {
		name = p.Name
	}
	data, ok := scoreDataFrom(resp)
	if !ok {
		fmt.Fprintln(out, resp.Reasoning)
		return nil
	}
	fmt.Fprintln(out, renderScoreCard(name, data))
	return nil
}

// readCandidate builds the candidate from --file or from flags.
func readCandidate(stdin io.Reader) (candidate.Candidate, error) {
	if scoreFile == "" {
		c := scoreCandidate
		c.Highlights = scoreHighlights
		if c.ID == "" {
			return c, errors.New("--id or --file is required")
		}
		return c, nil
	}

	var r io.Reader = stdin
	if scoreFile != "-" {
		f, err := os.Open(scoreFile)
		if err != nil {
			return candidate.Candidate{}, fmt.Errorf("failed to open candidate file: %w", err)
		}
		defer f.Close()
		r = f
	}
	var c candidate.Candidate
	if err := json.NewDecoder(io.LimitReader(r, 1<<20)).Decode(&c); err != nil {
		return candidate.Candidate{}, fmt.Errorf("failed to decode candidate: %w", err)
	}
	return c, nil
}

// scoreDataFrom extracts the card data from score-person and deep-dive
// responses.
func scoreDataFrom(resp dispatch.Response) (dispatch.ScoreData, bool) {
	switch d := resp.Data.(type) {
	case dispatch.ScoreData:
		return d, true
	case dispatch.DeepDiveData:
		return dispatch.ScoreData{
			CandidateID: d.Candidate.ID,
			Name:        d.Candidate.Name,
			Result:      d.Result,
			Reasons:     d.Reasons,
		}, true
	}
	return dispatch.ScoreData{}, false
}
