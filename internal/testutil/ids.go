package testutil

import (
	"fmt"
	"sync"
)

// RunIDs hands out predictable run identifiers: run-0001, run-0002, ...
type RunIDs struct {
	mu sync.Mutex
	n  int
}

// Next returns the next identifier.
func (g *RunIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("run-%04d", g.n)
}
