// Package partition assigns flattened instances to groups and provides the
// dependency structure matrix (DSM) tooling used to derive groupings.
//
// Elaboration never decides a partition. A Grouper supplies one, and Apply
// checks it against the network before attaching it:
//
//	net, err := partition.Apply(net, partition.NewExplicit(groups))
//
// Node and matrix CSV files use ";" as the default delimiter.
package partition

// DefaultDelimiter separates CSV fields unless configured otherwise.
const DefaultDelimiter = ';'
