// Package learning turns user feedback into per-persona preferences and
// learned weights.
//
// The update rule is a plain bounded accumulator, not a statistical model:
// a newly seen (category, value) pair starts at confidence 0.5 on the side of
// the feedback, and every further observation adds 0.1 times the event
// weight, capped at 1.0. Learned scoring weights are then derived from the
// net preference (confidence minus negative confidence) around the recipe
// default. Every write goes through memory.Store.Mutate.
package learning
