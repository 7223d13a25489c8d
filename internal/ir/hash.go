package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainNetwork is the domain prefix for network digests.
// The version suffix allows a future encoding migration.
const DomainNetwork = "desflat/network/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest computes the content-addressed identity of a flattened network.
// Identical elaboration input always yields an identical digest.
func Digest(n *Network) (string, error) {
	canonical, err := MarshalCanonical(n.CanonicalMap())
	if err != nil {
		return "", fmt.Errorf("Digest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainNetwork, canonical), nil
}

// CanonicalMap converts the network into plain values accepted by
// MarshalCanonical. Events are addressed by qualified name, not by id, and
// listed per owning instance with controllable events first, so the digest
// does not depend on arena numbering.
func (n *Network) CanonicalMap() map[string]any {
	ref := func(id EventID) string { return n.Events[id].QualifiedName() }

	events := make([]any, 0, len(n.Events))
	for _, id := range n.canonicalEventOrder() {
		e := n.Events[id]
		events = append(events, map[string]any{
			"owner": e.Owner,
			"name":  e.Name,
			"kind":  e.Kind.String(),
		})
	}

	instances := make([]any, len(n.Instances))
	for i, inst := range n.Instances {
		locs := make([]any, len(inst.Locations))
		for j, loc := range inst.Locations {
			edges := make([]any, len(loc.Edges))
			for k, e := range loc.Edges {
				edges[k] = map[string]any{"event": ref(e.Event), "target": e.Target}
			}
			locs[j] = map[string]any{
				"name":    loc.Name,
				"initial": loc.Initial,
				"marked":  loc.Marked,
				"edges":   edges,
			}
		}
		instances[i] = map[string]any{
			"name":      inst.Name,
			"group":     n.Groups[inst.Name],
			"locations": locs,
		}
	}

	clauses := make([]any, len(n.Clauses))
	for i, c := range n.Clauses {
		clauses[i] = map[string]any{
			"guard":    c.Guard.String(),
			"disables": ref(c.Disables),
		}
	}

	groupOrder := make([]any, len(n.GroupOrder))
	for i, g := range n.GroupOrder {
		groupOrder[i] = g
	}

	return map[string]any{
		"ir_version":  IRVersion,
		"events":      events,
		"instances":   instances,
		"clauses":     clauses,
		"group_order": groupOrder,
	}
}

// canonicalEventOrder lists event ids in instance declaration order, each
// instance's controllable events before its uncontrollable ones, keeping
// declaration order within a kind. This is the order the flattened text
// declares them in. Events no instance owns follow in arena order.
func (n *Network) canonicalEventOrder() []EventID {
	order := make([]EventID, 0, len(n.Events))
	listed := make(map[EventID]bool, len(n.Events))
	for _, inst := range n.Instances {
		for _, kind := range []Controllability{Controllable, Uncontrollable} {
			for _, id := range inst.Owned {
				if !listed[id] && n.Events[id].Kind == kind {
					listed[id] = true
					order = append(order, id)
				}
			}
		}
	}
	for i := range n.Events {
		if id := EventID(i); !listed[id] {
			order = append(order, id)
		}
	}
	return order
}
