// Package ir provides the intermediate representation types for desflat.
//
// This package contains type definitions and their canonical encodings only.
// All other internal packages import ir; ir imports nothing internal. This
// keeps IR the foundational layer with no circular dependencies.
//
// Two families of types live here:
//   - Model types (Template, Component, Requirement) are the read-only input
//     handed to the elaboration engine by a surface-syntax front end.
//   - Network types (Event, Instance, Clause, Network) are the flattened,
//     instance-qualified output of one elaboration run.
//
// Key design constraints:
//   - Events are identified by EventID, an index into Network.Events. Two
//     instances that synchronise on an event hold the same EventID.
//   - Slices preserve declaration order; maps are only used for lookup.
//   - All JSON tags use snake_case
package ir
