package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dealscout/internal/dispatch"
	"github.com/fyrsmithlabs/dealscout/internal/logging"
)

// triggerInput is the argument shape shared by every trigger tool.
type triggerInput[P any] struct {
	PersonaID string `json:"persona_id,omitempty" jsonschema:"Persona to act as. Defaults to the active persona."`
	Priority  int    `json:"priority,omitempty" jsonschema:"Queue priority, only honored in priority queue mode"`
	Payload   P      `json:"payload,omitempty" jsonschema:"Trigger-specific payload"`
}

type noPayload struct{}

type triggerTool struct {
	trigger     dispatch.Trigger
	category    ToolCategory
	description string
	keywords    []string
}

// ToolName maps a trigger onto its MCP tool name.
func ToolName(t dispatch.Trigger) string {
	return strings.ReplaceAll(string(t), "-", "_")
}

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	addTriggerTool[dispatch.ScorePersonPayload](s, triggerTool{
		dispatch.TriggerScorePerson, CategoryScoring,
		"Score one candidate against the persona's recipe and learned preferences, with reasons.",
		[]string{"score", "rate", "evaluate"},
	})
	addTriggerTool[dispatch.SuggestDatapointsPayload](s, triggerTool{
		dispatch.TriggerSuggestDatapoints, CategoryScoring,
		"Suggest the datapoints most worth checking for this persona, optionally for one candidate.",
		[]string{"datapoints", "signals", "suggest"},
	})
	addTriggerTool[dispatch.DeepDivePayload](s, triggerTool{
		dispatch.TriggerDeepDive, CategoryScoring,
		"Enrich a candidate from upstream person, company and funding profiles, then rescore it.",
		[]string{"enrich", "research", "funding"},
	})
	addTriggerTool[dispatch.BulkPayload](s, triggerTool{
		dispatch.TriggerBulkLike, CategoryFeedback,
		"Record a like for each entity and teach the persona from them.",
		[]string{"like", "approve", "feedback"},
	})
	addTriggerTool[dispatch.BulkPayload](s, triggerTool{
		dispatch.TriggerBulkDislike, CategoryFeedback,
		"Record a dislike for each entity and teach the persona from them.",
		[]string{"dislike", "reject", "feedback"},
	})
	addTriggerTool[dispatch.AutoProcessPayload](s, triggerTool{
		dispatch.TriggerAutoProcess, CategoryFeedback,
		"Score candidates and auto-like or auto-dislike those past the thresholds.",
		[]string{"auto", "threshold", "triage"},
	})
	addTriggerTool[dispatch.LearnCorrectionPayload](s, triggerTool{
		dispatch.TriggerLearnCorrection, CategoryFeedback,
		"Teach the persona from a user decision that disagrees with its recommendation.",
		[]string{"correction", "disagree", "override"},
	})
	addTriggerTool[dispatch.ShortlistPayload](s, triggerTool{
		dispatch.TriggerCreateShortlist, CategoryFeed,
		"Build a ranked shortlist of the best candidates.",
		[]string{"shortlist", "top", "rank"},
	})
	addTriggerTool[dispatch.CandidatesPayload](s, triggerTool{
		dispatch.TriggerAutoScore, CategoryFeed,
		"Score every candidate in a batch.",
		[]string{"batch", "score"},
	})
	addTriggerTool[dispatch.CandidatesPayload](s, triggerTool{
		dispatch.TriggerSortFeed, CategoryFeed,
		"Sort a feed by persona score, highest first.",
		[]string{"sort", "order", "feed"},
	})
	addTriggerTool[dispatch.CandidatesPayload](s, triggerTool{
		dispatch.TriggerCheckAlerts, CategoryFeed,
		"Flag strong matches and red flags in a feed.",
		[]string{"alert", "red flag", "notify"},
	})
	addTriggerTool[noPayload](s, triggerTool{
		dispatch.TriggerSessionSummary, CategoryPersona,
		"Summarize what the persona has learned and its recent decisions.",
		[]string{"summary", "session", "stats"},
	})
	addTriggerTool[dispatch.NaturalSearchPayload](s, triggerTool{
		dispatch.TriggerNaturalSearch, CategoryFeed,
		"Search candidates with a natural-language query such as 'serial founders in London'.",
		[]string{"search", "query", "find"},
	})

	s.registerPersonaTools()
	s.registerRequestTools()
	s.registerSearchTools()
}

// addTriggerTool registers one dispatch trigger as a tool.
func addTriggerTool[P any](s *Server, t triggerTool) {
	name := ToolName(t.trigger)
	s.toolRegistry.Register(&ToolMetadata{
		Name:        name,
		Description: t.description,
		Category:    t.category,
		Keywords:    t.keywords,
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        name,
		Description: t.description,
	}, func(ctx context.Context, req *mcp.CallToolRequest, args triggerInput[P]) (*mcp.CallToolResult, dispatch.Response, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, name)
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, name)
			s.metrics.RecordInvocation(ctx, name, time.Since(start), toolErr)
		}()

		dreq, err := dispatch.NewRequest(t.trigger, args.PersonaID, args.Payload)
		if err != nil {
			toolErr = err
			return nil, dispatch.Response{}, err
		}
		dreq.Priority = args.Priority
		ctx = logging.WithRequestID(ctx, dreq.ID)
		ctx = logging.WithPersonaID(ctx, args.PersonaID)

		resp := s.dispatcher.Dispatch(ctx, dreq)
		if resp.Error != nil {
			toolErr = resp.Error
			return nil, dispatch.Response{}, resp.Error
		}
		return textResult(resp.Reasoning), resp, nil
	})
}

type personaInfo struct {
	ID     string `json:"id" jsonschema:"Persona ID"`
	Name   string `json:"name" jsonschema:"Display name"`
	Active bool   `json:"active" jsonschema:"Whether this is the active persona"`
}

type listPersonasOutput struct {
	Personas []personaInfo `json:"personas" jsonschema:"Registered personas"`
	Active   string        `json:"active,omitempty" jsonschema:"Active persona ID"`
}

type personaIDInput struct {
	PersonaID string `json:"persona_id,omitempty" jsonschema:"Persona ID. Defaults to the active persona."`
}

type setActiveInput struct {
	PersonaID string `json:"persona_id" jsonschema:"Persona to activate"`
}

type setActiveOutput struct {
	PersonaID string `json:"persona_id" jsonschema:"Now-active persona"`
}

type personaContextOutput struct {
	PersonaID string `json:"persona_id" jsonschema:"Persona the summary describes"`
	Summary   string `json:"summary" jsonschema:"Plain-text memory summary for prompt context"`
}

func (s *Server) registerPersonaTools() {
	s.toolRegistry.Register(&ToolMetadata{
		Name:        "list_personas",
		Description: "List registered personas and which one is active.",
		Category:    CategoryPersona,
		Keywords:    []string{"persona", "lens"},
	})
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_personas",
		Description: "List registered personas and which one is active.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ noPayload) (*mcp.CallToolResult, listPersonasOutput, error) {
		active := s.store.ActivePersona()
		out := listPersonasOutput{Active: active, Personas: []personaInfo{}}
		for _, p := range s.registry.List() {
			out.Personas = append(out.Personas, personaInfo{ID: p.ID, Name: p.Name, Active: p.ID == active})
		}
		return textResult(fmt.Sprintf("%d personas, active: %q", len(out.Personas), active)), out, nil
	})

	s.toolRegistry.Register(&ToolMetadata{
		Name:        "set_active_persona",
		Description: "Switch the persona used when a request names none.",
		Category:    CategoryPersona,
		Keywords:    []string{"persona", "switch", "select"},
	})
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "set_active_persona",
		Description: "Switch the persona used when a request names none.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args setActiveInput) (*mcp.CallToolResult, setActiveOutput, error) {
		if err := s.store.SetActivePersona(args.PersonaID); err != nil {
			return nil, setActiveOutput{}, err
		}
		s.logger.Info("active persona changed", zap.String("persona.id", args.PersonaID))
		return textResult("active persona: " + args.PersonaID), setActiveOutput{PersonaID: args.PersonaID}, nil
	})

	s.toolRegistry.Register(&ToolMetadata{
		Name:        "persona_context",
		Description: "Render a persona's learned preferences and recent decisions as prompt context.",
		Category:    CategoryPersona,
		Keywords:    []string{"memory", "context", "preferences"},
	})
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "persona_context",
		Description: "Render a persona's learned preferences and recent decisions as prompt context.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args personaIDInput) (*mcp.CallToolResult, personaContextOutput, error) {
		id := args.PersonaID
		if id == "" {
			id = s.store.ActivePersona()
		}
		summary, err := s.store.BuildContextSummary(id)
		if err != nil {
			return nil, personaContextOutput{}, err
		}
		return textResult(summary), personaContextOutput{PersonaID: id, Summary: summary}, nil
	})
}

type requestResultInput struct {
	RequestID string `json:"request_id" jsonschema:"ID returned by a queued tool call"`
}

func (s *Server) registerRequestTools() {
	s.toolRegistry.Register(&ToolMetadata{
		Name:        "request_result",
		Description: "Fetch the response of a request that was queued behind another.",
		Category:    CategorySearch,
		Keywords:    []string{"queued", "poll", "result"},
	})
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "request_result",
		Description: "Fetch the response of a request that was queued behind another.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args requestResultInput) (*mcp.CallToolResult, dispatch.Response, error) {
		resp, state := s.dispatcher.Lookup(args.RequestID)
		switch state {
		case dispatch.RequestDone:
		case dispatch.RequestUnknown:
			return nil, dispatch.Response{}, fmt.Errorf("request %s is unknown", args.RequestID)
		default:
			return nil, dispatch.Response{}, fmt.Errorf("request %s is still %s", args.RequestID, state)
		}
		data, err := json.Marshal(resp)
		if err != nil {
			return nil, dispatch.Response{}, err
		}
		return textResult(string(data)), resp, nil
	})
}

type toolSearchInput struct {
	Query    string `json:"query" jsonschema:"Search query or regex pattern matched against tool names, descriptions and keywords"`
	Category string `json:"category,omitempty" jsonschema:"Filter results to a category (scoring, feedback, feed, persona, search)"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum results to return (default: 5)"`
}

type toolSearchHit struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Score       int    `json:"score"`
	MatchReason string `json:"match_reason"`
}

type toolSearchOutput struct {
	Query      string          `json:"query" jsonschema:"Search query used"`
	Results    []toolSearchHit `json:"results" jsonschema:"Matching tools"`
	Count      int             `json:"count" jsonschema:"Number of tools found"`
	TotalTools int             `json:"total_tools" jsonschema:"Total number of tools in registry"`
}

func (s *Server) registerSearchTools() {
	s.toolRegistry.Register(&ToolMetadata{
		Name:        "tool_search",
		Description: "Search the available tools by name, description or keyword.",
		Category:    CategorySearch,
		Keywords:    []string{"discover", "help"},
	})
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "tool_search",
		Description: "Search the available tools by name, description or keyword.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args toolSearchInput) (*mcp.CallToolResult, toolSearchOutput, error) {
		if args.Query == "" {
			return nil, toolSearchOutput{}, fmt.Errorf("query is required")
		}
		limit := args.Limit
		if limit <= 0 {
			limit = 5
		}

		var found []*SearchResult
		if args.Category != "" {
			found = s.toolRegistry.SearchByCategory(args.Query, ToolCategory(args.Category))
		} else {
			found = s.toolRegistry.Search(args.Query)
		}
		if len(found) > limit {
			found = found[:limit]
		}

		out := toolSearchOutput{
			Query:      args.Query,
			Results:    make([]toolSearchHit, 0, len(found)),
			TotalTools: s.toolRegistry.Count(),
		}
		names := make([]string, 0, len(found))
		for _, r := range found {
			out.Results = append(out.Results, toolSearchHit{
				Name:        r.Tool.Name,
				Description: r.Tool.Description,
				Category:    string(r.Tool.Category),
				Score:       r.Score,
				MatchReason: r.MatchReason,
			})
			names = append(names, r.Tool.Name)
		}
		out.Count = len(out.Results)

		text := fmt.Sprintf("No tools found matching: %s", args.Query)
		if len(names) > 0 {
			text = fmt.Sprintf("Found %d tool(s) for query '%s': %s", len(names), args.Query, strings.Join(names, ", "))
		}
		return textResult(text), out, nil
	})
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
