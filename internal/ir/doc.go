// Package ir provides the value model shared by every tmerge package.
//
// Column values read from source and target tables are represented as
// sealed IRValue types. ir imports nothing internal; every other package
// imports ir. This keeps the value model the foundational layer with no
// circular dependencies.
//
// Key design constraints:
//   - NO float types - integral numbers are IRInt, others are decimal text (IRNumber)
//   - NULL is explicit (IRNull) and payload comparisons treat it like an absent key
//   - All JSON tags use snake_case
//   - Content hashes run over RFC 8785 canonical JSON only
package ir
