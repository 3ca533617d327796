// Package workflow models the plan for a unit of work as a directed graph of
// steps, where each edge runs from a step to one of its dependencies.
//
// A Graph is built from a step list with New, which rejects empty and
// duplicate step names. Everything else is reported by Validate:
//
//	W001  cycle (every simple cycle, rendered "a -> b -> a")
//	W002  dependency on a step absent from the graph
//	W003  duplicate step name
//	W004  longest dependency chain deeper than the ceiling (default 10)
//	W005  empty step name
//
// Graphs are immutable. Changes go through a Builder obtained from
// Graph.Edit, and the result must be validated again before use.
package workflow
