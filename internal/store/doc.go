// Package store is the SQLite side of tmerge: it introspects tables,
// reads source and target rows, persists plans and applies them.
//
// # Plans
//
// A plan is written once under its plan id together with the config hash
// and a digest over its canonical rows. Writing the same plan again is a
// no-op; writing different rows under an existing id fails.
//
// # Determinism
//
// Every read carries an ORDER BY. Plan rows are read back in plan_op_seq
// order and applied in statement_seq order inside one transaction.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
