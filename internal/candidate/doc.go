// Package candidate defines the normalized record scored against personas.
//
// Upstream data arrives in three shapes (people, companies and market
// signals). Each shape is a variant of the FeatureSource tagged union and has
// exactly one extraction function producing a Candidate. The scoring engine
// only ever sees Candidate values.
//
// All signal vocabulary is compared through NormalizeToken: lowercase, trimmed,
// with whitespace runs collapsed to a single underscore.
package candidate
