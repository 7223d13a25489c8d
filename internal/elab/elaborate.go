package elab

import (
	"github.com/rs/zerolog"

	"github.com/roach88/desflat/internal/ir"
	"github.com/roach88/desflat/internal/symtab"
)

// Options configures an elaboration run.
type Options struct {
	// Logger receives per-pass debug records. Nil disables logging.
	Logger *zerolog.Logger
}

// Elaborate flattens a model into a network.
//
// Every call starts from a fresh symbol table, so Elaborate is safe to call
// concurrently on independent models. The returned network is never partial:
// on error it is nil.
//
// Groups declared by the model's components are carried into the network;
// use the partition package to replace them.
func Elaborate(m *ir.Model, opts Options) (*ir.Network, error) {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "elab").Logger()
	}

	table := symtab.New()

	r := newResolver(table, logger)
	if err := r.defineTemplates(m.Templates); err != nil {
		return nil, err
	}
	instances, err := r.resolve(m.Components)
	if err != nil {
		return nil, err
	}
	table.Freeze()

	clauses, err := newExpander(table, instances, logger).expand(m.Requirements)
	if err != nil {
		return nil, err
	}

	net := ir.NewNetwork(table.Events.Events(), instances, clauses)
	if groups, order := declaredGroups(m.Components); len(order) > 0 {
		net = net.WithGroups(groups, order)
	}

	logger.Debug().
		Int("instances", len(net.Instances)).
		Int("events", len(net.Events)).
		Int("clauses", len(net.Clauses)).
		Int("groups", len(net.GroupOrder)).
		Msg("elaboration complete")
	return net, nil
}

// declaredGroups collects group annotations in first-appearance order.
func declaredGroups(components []ir.Component) (map[string]string, []string) {
	groups := make(map[string]string)
	var order []string
	seen := make(map[string]bool)
	for _, c := range components {
		if c.Group == "" {
			continue
		}
		groups[c.Name] = c.Group
		if !seen[c.Group] {
			seen[c.Group] = true
			order = append(order, c.Group)
		}
	}
	return groups, order
}
