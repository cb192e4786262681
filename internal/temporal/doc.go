// Package temporal implements the interval algebra used by the planner.
//
// Bounds are opaque strings interpreted through a Subtype: numeric eras
// compare by decimal value with "infinity" and "-infinity" sentinels, all
// others compare lexicographically. Intervals are half-open [From, Until).
//
// # Contents
//
//   - Subtype: ordering, equality, one-unit steps for valid_to columns
//   - Relation: the thirteen Allen relations and their inverses
//   - Multirange and BoundarySet: btree-backed ordered sets
//   - FormatRange / ParseRange: range literals
package temporal
