// Package elab flattens a parameterized model into an instance-qualified
// network.
//
// Elaboration runs three passes over a fresh symtab.Table:
//
//  1. Template checks: unique names, exactly one initial location, edges
//     referencing only declared locations, parameters and local events.
//  2. Resolution: components are processed in declaration order. Actual
//     events bind to formal parameters by position; a bare name creates a
//     fresh event owned by the instance, a dotted name borrows an event of an
//     earlier instance. Inline automata (flattened input) declare their events
//     first and resolve their dotted edge references last.
//  3. Expansion: every requirement is validated against the resolved
//     instances and expanded into one clause per disabled event.
//
// The first error aborts the run; no partial network is ever returned.
package elab
