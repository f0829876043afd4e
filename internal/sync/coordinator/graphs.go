package coordinator

import (
	"context"
	"log/slog"
)

// GraphLoader is a chart that reloads its own data
type GraphLoader interface {
	// ID identifies the graph
	ID() string
	// Exists reports whether the graph is still displayed
	Exists() bool
	// Busy reports whether a load is running
	Busy() bool
	// Load starts a reload
	Load(ctx context.Context)
}

// RegisterGraph adds a graph to the graph refresh
func (c *defaultCoordinator) RegisterGraph(g GraphLoader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.graphs = append(c.graphs, g)
}

// graphsUpdate reloads every displayed graph that is not loading and drops
// graphs that are gone
func (c *defaultCoordinator) graphsUpdate(ctx context.Context) (result, error) {
	c.mu.Lock()
	graphs := c.graphs
	c.mu.Unlock()

	existing := make([]GraphLoader, 0, len(graphs))
	reloaded := 0
	for _, g := range graphs {
		if !g.Exists() {
			slog.Debug("Dropping graph", "graph", g.ID())
			continue
		}
		existing = append(existing, g)
		if !g.Busy() {
			g.Load(ctx)
			reloaded++
		}
	}

	c.mu.Lock()
	// keep graphs registered while this run was in progress
	c.graphs = append(existing, c.graphs[len(graphs):]...)
	c.mu.Unlock()

	return result{items: reloaded}, nil
}
