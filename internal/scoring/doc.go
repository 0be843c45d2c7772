// Package scoring computes a persona fit score for a single candidate.
//
// Score is a pure function of the candidate, the persona recipe and the
// effective weight table (recipe defaults overlaid with learned weights). It
// reads no clock, no random source and no shared state, so identical inputs
// always produce identical results.
package scoring
