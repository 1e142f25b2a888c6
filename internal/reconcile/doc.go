// Package reconcile merges the event collections of several sources into one
// table with a fixed column set.
//
// Input order matters: when two rows are duplicates the one that appears
// first is kept, so callers control precedence by the order in which they
// pass collections.
package reconcile
