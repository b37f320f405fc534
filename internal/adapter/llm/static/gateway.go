// Package static provides a canned Gateway for tests and local runs
// without a live LLM backend.
package static

import (
	"context"
	"strings"
	"sync"
)

// Gateway returns pre-configured responses in order of configuration:
// the first matching rule wins, otherwise the default response.
type Gateway struct {
	mu       sync.Mutex
	rules    []rule
	fallback string
	prompts  []string
}

type rule struct {
	contains string
	response string
}

// NewGateway constructs a Gateway with the given default response.
func NewGateway(fallback string) *Gateway {
	return &Gateway{fallback: fallback}
}

// Respond registers a canned response for prompts containing the marker.
func (g *Gateway) Respond(contains, response string) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules = append(g.rules, rule{contains: contains, response: response})
	return g
}

// Invoke records the prompt and returns the first matching canned response.
func (g *Gateway) Invoke(ctx context.Context, prompt string, modelHint string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	for _, r := range g.rules {
		if strings.Contains(prompt, r.contains) {
			return r.response, nil
		}
	}
	return g.fallback, nil
}

// Prompts returns a copy of every prompt seen, in order.
func (g *Gateway) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.prompts))
	copy(out, g.prompts)
	return out
}
