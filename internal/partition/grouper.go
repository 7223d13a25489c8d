package partition

import (
	"sort"

	"github.com/roach88/desflat/internal/ir"
	"github.com/roach88/desflat/internal/syntax"
)

// Group is one named set of instances, members in the order given.
type Group struct {
	Name    string   `json:"name" yaml:"name"`
	Members []string `json:"members" yaml:"members"`
}

// Grouper produces a grouping for a network. Groups are emitted in the order
// returned.
type Grouper interface {
	Groups(n *ir.Network) ([]Group, error)
}

// None leaves every instance ungrouped.
type None struct{}

func (None) Groups(*ir.Network) ([]Group, error) { return nil, nil }

// FromNetwork keeps the groups declared by the source document.
type FromNetwork struct{}

func (FromNetwork) Groups(n *ir.Network) ([]Group, error) {
	byName := make(map[string]*Group, len(n.GroupOrder))
	groups := make([]Group, len(n.GroupOrder))
	for i, name := range n.GroupOrder {
		groups[i].Name = name
		byName[name] = &groups[i]
	}
	for _, inst := range n.Instances {
		if g, ok := byName[n.GroupOf(inst.Name)]; ok {
			g.Members = append(g.Members, inst.Name)
		}
	}
	return groups, nil
}

// Explicit is a fixed grouping, typically taken from configuration.
type Explicit []Group

// NewExplicit builds an Explicit grouper from a group -> members map.
// Groups are ordered by name.
func NewExplicit(groups map[string][]string) Explicit {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(Explicit, len(names))
	for i, name := range names {
		out[i] = Group{Name: name, Members: groups[name]}
	}
	return out
}

func (e Explicit) Groups(*ir.Network) ([]Group, error) {
	return []Group(e), nil
}

// NodeTable groups instances by the group column of a node CSV file.
// Rows with an empty group leave the instance ungrouped.
type NodeTable []Node

func (t NodeTable) Groups(*ir.Network) ([]Group, error) {
	index := make(map[string]int)
	var groups []Group
	for _, node := range t {
		if node.Group == "" {
			continue
		}
		i, ok := index[node.Group]
		if !ok {
			i = len(groups)
			index[node.Group] = i
			groups = append(groups, Group{Name: node.Group})
		}
		groups[i].Members = append(groups[i].Members, node.Name)
	}
	return groups, nil
}

// Apply validates the grouping produced by g and returns a copy of n carrying
// it. Empty groups are dropped. Members of a group are emitted in instance
// declaration order regardless of the order given.
func Apply(n *ir.Network, g Grouper) (*ir.Network, error) {
	groups, err := g.Groups(n)
	if err != nil {
		return nil, err
	}

	assigned := make(map[string]string)
	seen := make(map[string]bool)
	var order []string

	for _, grp := range groups {
		if !ir.IsIdentifier(grp.Name) || syntax.IsReserved(grp.Name) {
			return nil, &PartitionError{Group: grp.Name, Message: "group name is not a valid identifier"}
		}
		if seen[grp.Name] {
			return nil, &PartitionError{Group: grp.Name, Message: "group is defined twice"}
		}
		seen[grp.Name] = true

		for _, member := range grp.Members {
			if _, ok := n.Instance(member); !ok {
				return nil, &PartitionError{Group: grp.Name, Instance: member, Message: "unknown instance"}
			}
			if prev, ok := assigned[member]; ok {
				return nil, &PartitionError{Group: grp.Name, Instance: member,
					Message: "instance is already assigned to group " + prev}
			}
			assigned[member] = grp.Name
		}
		if len(grp.Members) > 0 {
			order = append(order, grp.Name)
		}
	}

	if len(order) == 0 {
		return n.WithGroups(nil, nil), nil
	}
	return n.WithGroups(assigned, order), nil
}
