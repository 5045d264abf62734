// Package core provides the foundational domain types and interfaces used by
// reviewmesh. It defines the abstractions for:
//
//   - Diff changes (one record per added or removed line)
//   - Findings, their severity ordering and the aggregation key
//   - Agents (rule-based or generation-backed reviewers)
//   - Reviews, persisted comments and per-agent traces
//   - Pluggable collaborators for persistence and context retrieval
//
// The package keeps implementation concerns (parsing, orchestration, storage
// engines) out of scope and exposes small interfaces so backends can be
// swapped without touching the pipeline.
package core
