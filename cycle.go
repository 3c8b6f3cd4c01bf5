package kitchencost

import "fmt"

// CircularReferenceError reports a recipe that contains itself through its
// sub-recipes. RecipeName is the recipe that closes the cycle.
type CircularReferenceError struct {
	RecipeID   string
	RecipeName string
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("circular sub-recipe reference detected: %q contains itself", e.RecipeName)
}

// CycleGuard tracks the recipe ids on the current costing path. It is not safe
// for concurrent use; a guard belongs to one top-level costing call.
type CycleGuard struct {
	visited map[string]struct{}
}

func NewCycleGuard(ids ...string) *CycleGuard {
	g := &CycleGuard{visited: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		g.visited[id] = struct{}{}
	}
	return g
}

func (g *CycleGuard) Enter(id, name string) error {
	if _, ok := g.visited[id]; ok {
		return &CircularReferenceError{RecipeID: id, RecipeName: name}
	}
	g.visited[id] = struct{}{}
	return nil
}

// Exit removes id so a sibling branch of a DAG may enter it again.
func (g *CycleGuard) Exit(id string) {
	delete(g.visited, id)
}

func (g *CycleGuard) Contains(id string) bool {
	_, ok := g.visited[id]
	return ok
}

func (g *CycleGuard) Clone() *CycleGuard {
	c := &CycleGuard{visited: make(map[string]struct{}, len(g.visited))}
	for id := range g.visited {
		c.visited[id] = struct{}{}
	}
	return c
}
