// Package agent provides the specialist customer-service agents and the
// registry the dispatcher routes through. Each agent wraps an LLM-driven
// conversation loop with its own system prompt, capabilities, and local
// backends (product search, order lookup).
package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wardrobe-labs/concierge/pkg/llm"
	"github.com/wardrobe-labs/concierge/pkg/models"
	"github.com/wardrobe-labs/concierge/pkg/search"
)

// Agent is the uniform capability surface the executor invokes. Handle must
// be safe for concurrent calls on distinct conversations; the dispatcher
// serializes turns within one conversation.
type Agent interface {
	ID() string
	Type() string
	Capabilities() []string
	Handle(ctx context.Context, msg *models.Message, turnContext map[string]any) (*models.AgentResponse, error)
}

// Completer is the slice of the LLM service agents depend on.
type Completer interface {
	AgentCompletion(ctx context.Context, agentID string, messages []llm.Message) (*llm.Response, error)
}

// ProductSearcher is the slice of the search client the sales, knowledge,
// and styling agents depend on.
type ProductSearcher interface {
	Enabled() bool
	Search(ctx context.Context, q search.Query) (*search.Result, error)
}

// Registry holds the live agents by ID.
type Registry struct {
	agents map[string]Agent
	mu     sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// Register adds an agent. Registering a duplicate ID is an error.
func (r *Registry) Register(a Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[a.ID()]; exists {
		return fmt.Errorf("agent %q already registered", a.ID())
	}
	r.agents[a.ID()] = a
	return nil
}

// Get returns the agent with the given ID.
func (r *Registry) Get(agentID string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[agentID]
	return a, ok
}

// IDs returns the registered agent IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Capabilities returns each registered agent's advertised skills, keyed by
// agent ID. The stats API and the analyzer prompt consume this.
func (r *Registry) Capabilities() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	caps := make(map[string][]string, len(r.agents))
	for id, a := range r.agents {
		caps[id] = a.Capabilities()
	}
	return caps
}
