package agent

import "fmt"

// BaseAgent bundles the identity shared by all agents. Embed it in concrete
// agents and supply an Analyze method to satisfy core.Agent.
type BaseAgent struct {
	id          string
	name        string
	description string
}

// NewBaseAgent constructs a BaseAgent with a generated description
// (customizable via SetDescription).
func NewBaseAgent(id, name string) BaseAgent {
	return BaseAgent{id: id, name: name, description: fmt.Sprintf("Agent %s", name)}
}

// ID returns the stable identifier recorded on findings and traces.
func (b *BaseAgent) ID() string { return b.id }

// Name returns the human-readable name for this agent.
func (b *BaseAgent) Name() string { return b.name }

// Description returns a short description of this agent's purpose.
func (b *BaseAgent) Description() string { return b.description }

// SetDescription updates the agent's description.
func (b *BaseAgent) SetDescription(desc string) { b.description = desc }
