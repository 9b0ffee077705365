// Package graph builds the dependency graph of one build cycle.
//
// # Construction
//
// Build performs a breadth-first closure walk from the entry file:
//
//	queue := [entry]
//	for queue not empty:
//	    path := dequeue
//	    if visited[path]: continue
//	    visited[path] = true
//	    names   := files.DependenciesOf(path)
//	    targets := resolve(path, name) for each name
//	    record  := {ID: next(), Path: path, RawSource: read(path), Dependencies: names -> targets}
//	    enqueue every target not yet visited
//
// The walk is single-threaded. Ids are handed out densely in the order paths
// are first visited, so the entry is always 0 and the assignment depends only
// on the entry and each file's declaration order.
//
// # Invariants
//
// A Graph returned by Build is closed: every resolved path in any record's
// Dependencies is itself a module in the graph. Cycles are allowed; each path
// is visited at most once.
//
// A Graph belongs to exactly one build cycle. Rebuilds construct a new one.
package graph
