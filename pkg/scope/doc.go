// Package scope walks a project tree and decides which files are in scope.
//
// A Resolver prunes directories matched by the ignore rules, skips symlinks,
// applies the include whitelist when it has patterns, and assigns every
// surviving file a flat, possibly transcoded, staging name. The resulting
// Snapshot is sorted by relative path and never depends on walk order.
package scope
