// Package agent provides the review agents used by reviewmesh.
//
// Four rule-based reviewers ship with the package:
//
//   - CodeReviewer: leftover TODO/FIXME markers and debug output
//   - Security: secret-looking material and dynamic code execution
//   - Style: tab characters and overlong lines
//   - Critic: a placeholder preference record used for preference pairs
//
// Any of them can be wrapped by Generative, which asks a model.Generator for
// structured findings and falls back to the rule-based result whenever the
// model output is unusable. Whether an agent is wrapped is a configuration
// decision made when the agent set is built (see Build).
package agent
