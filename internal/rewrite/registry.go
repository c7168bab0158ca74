package rewrite

import (
	"fmt"
	"sort"

	"PhoneVerse/internal/ports"
)

// Registry keeps a mapping from strategy names to rewriter implementations.
type Registry struct {
	rewriters map[string]ports.ContentRewriter
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{rewriters: map[string]ports.ContentRewriter{}}
}

// Register adds or replaces a rewriter implementation.
func (r *Registry) Register(rewriter ports.ContentRewriter) {
	if r.rewriters == nil {
		r.rewriters = map[string]ports.ContentRewriter{}
	}
	r.rewriters[rewriter.Name()] = rewriter
}

// Resolve returns a rewriter by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.ContentRewriter, error) {
	if rewriter, ok := r.rewriters[name]; ok {
		return rewriter, nil
	}
	return nil, fmt.Errorf("rewriter %s is not registered", name)
}

// Names lists registered strategies in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.rewriters))
	for name := range r.rewriters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
