package operations

import (
	"fmt"
	"sync"
)

// Registry manages registered pipeline steps
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Step
	order []string // registration order
}

// NewRegistry creates an empty Step registry
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[string]Step),
		order: make([]string, 0),
	}
}

// Register adds a Step to the registry
func (r *Registry) Register(step Step) error {
	if step == nil {
		return fmt.Errorf("cannot register nil Step")
	}

	id := step.ID()
	if id == "" {
		return fmt.Errorf("Step ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.steps[id]; exists {
		return fmt.Errorf("Step with ID %s already registered", id)
	}

	r.steps[id] = step
	r.order = append(r.order, id)
	return nil
}

// Get retrieves a Step by ID
func (r *Registry) Get(id string) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, exists := r.steps[id]
	if !exists {
		return nil, fmt.Errorf("Step with ID %s not found", id)
	}
	return step, nil
}

// Has checks if a Step is registered
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.steps[id]
	return exists
}

// ListIDs returns all registered Step IDs in registration order
func (r *Registry) ListIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Count returns the number of registered steps
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.steps)
}

// DependencyOrder returns the steps in topological order (Kahn's algorithm).
// Steps that become ready together run in registration order.
func (r *Registry) DependencyOrder() ([]Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dependencyOrder()
}

func (r *Registry) dependencyOrder() ([]Step, error) {
	graph := make(map[string][]string, len(r.steps))
	inDegree := make(map[string]int, len(r.steps))
	position := make(map[string]int, len(r.order))
	for i, id := range r.order {
		position[id] = i
		inDegree[id] = 0
	}

	for _, id := range r.order {
		for _, dep := range r.steps[id].Dependencies() {
			if _, exists := r.steps[dep]; !exists {
				return nil, NewDependencyError(id, dep, "depends on a step that is not registered")
			}
			graph[dep] = append(graph[dep], id)
			inDegree[id]++
		}
	}

	queue := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	ordered := make([]Step, 0, len(r.steps))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		ordered = append(ordered, r.steps[current])

		var ready []string
		for _, dependent := range graph[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
		insertByPosition(&queue, ready, position)
	}

	if len(ordered) != len(r.steps) {
		return nil, NewDependencyError("", "", "dependency cycle detected")
	}
	return ordered, nil
}

// insertByPosition appends ready to queue keeping registration order among
// the newly ready steps
func insertByPosition(queue *[]string, ready []string, position map[string]int) {
	for len(ready) > 0 {
		best := 0
		for i := range ready {
			if position[ready[i]] < position[ready[best]] {
				best = i
			}
		}
		*queue = append(*queue, ready[best])
		ready = append(ready[:best], ready[best+1:]...)
	}
}

// ValidateDependencies checks that every dependency exists and that there is
// no cycle
func (r *Registry) ValidateDependencies() error {
	_, err := r.DependencyOrder()
	return err
}

// Dependents returns the IDs of steps that depend directly on id
func (r *Registry) Dependents(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, sid := range r.order {
		for _, dep := range r.steps[sid].Dependencies() {
			if dep == id {
				out = append(out, sid)
				break
			}
		}
	}
	return out
}
