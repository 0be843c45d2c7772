// Package enrich is the HTTP client for the upstream people and company
// data API.
//
// Client implements the dispatcher's Enricher and Searcher collaborators.
// Every call waits on a shared token-bucket limiter and retries transient
// failures (transport errors, 429 and 5xx) with exponential backoff.
// A 404 is reported as ErrNotFound and is never retried.
//
// Endpoints:
//
//	GET  {base}/v1/people/{id}
//	GET  {base}/v1/companies/{id}
//	GET  {base}/v1/companies/{id}/funding
//	POST {base}/v1/search
package enrich
