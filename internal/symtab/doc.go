// Package symtab holds the symbol table shared by every elaboration pass.
//
// A Table is built once per elaboration run, append-only while the resolver
// runs, and frozen before the expander reads it. It owns three structures:
//   - Registry: template definitions by name
//   - Arena: every concrete event, addressed by ir.EventID
//   - Scope: per-instance name -> event bindings
//
// Nothing here is global; callers create a fresh Table for every run.
package symtab
