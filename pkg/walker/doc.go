// Package walker enumerates the artifacts a rule is evaluated against.
//
// A Walker is bound to a target root and the target-level include and exclude
// globs. Walk returns a lazy iter.Seq2 over the artifacts that pass a
// per-rule Filter; every call to the returned sequence walks the tree again,
// so the same sequence can be ranged over more than once.
//
// Filtering order:
//
//  1. exclude globs (directories matching an exclude glob are pruned)
//  2. include globs
//  3. the rule's file pattern regex
//  4. size and binary checks, for text-pattern rules only
//
// Access failures are yielded as *WalkError values alongside a zero
// Artifact and never stop the walk. Symlink cycles are skipped silently.
package walker
