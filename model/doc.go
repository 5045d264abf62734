// Package model defines the provider-agnostic generation contract used by
// reviewmesh agents and concrete helpers around it.
//
// Core goals:
//   - A single text-in/text-out Generator with an order-preserving batch call
//   - Bounded fan-out for providers without a native batch endpoint (ParallelBatch)
//   - Call budgeting shared across reviews (Limit)
//   - Lightweight mocking for tests (MockModel)
//
// Providers (Anthropic, OpenAI, Ollama) live in sub-packages and implement
// Generator so higher layers (agents, orchestrator, cache) stay decoupled
// from vendor SDKs.
package model
