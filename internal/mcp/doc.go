// Package mcp exposes the dealscout dispatcher as an MCP server.
//
// It uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp) on the
// stdio transport. Every dispatch trigger is registered as a tool named
// after the trigger with dashes replaced by underscores (score-person
// becomes score_person). Each trigger tool takes an optional persona_id
// and the trigger's payload, and returns the dispatch response.
//
// A request that arrives while another is running is queued. Its tool call
// returns the queued response and the result can be fetched later with
// request_result.
//
// Persona tools (list_personas, set_active_persona, persona_context) and
// tool discovery (tool_search) are registered alongside.
package mcp
