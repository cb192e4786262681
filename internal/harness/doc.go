// Package harness runs merge scenarios end to end.
//
// A scenario builds a throwaway SQLite database, runs one merge job against
// it through the engine, and checks the resulting plan and table contents.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: upsert_shrink
//	description: "A source row shortens an existing period"
//	setup:
//	  - |
//	    CREATE TABLE emp (...);
//	    INSERT INTO emp VALUES (...);
//	job:
//	  source_table: emp_src
//	  target_table: emp
//	  mode: MERGE_ENTITY_UPSERT
//	  era: {name: valid, valid_from: valid_from, valid_until: valid_until, subtype: date}
//	  identity_columns: [id]
//	  apply: true
//	idempotent: true
//	snapshot: [emp]
//	assertions:
//	  - type: operation_count
//	    operation: INSERT
//	    count: 2
//	  - type: plan_row
//	    seq: 1
//	    expect: {operation: UPDATE, update_effect: SHRINK}
//	  - type: final_state
//	    table: emp
//	    where: {id: 1, valid_from: "2024-01-01"}
//	    expect: {name: Anna}
//
// The job block uses the job file format of package config and is validated
// the same way.
//
// # Assertion Types
//
//   - operation_count: the plan holds exactly count rows with the operation
//   - plan_row: the row with plan_op_seq = seq matches expect (subset match)
//   - final_state: exactly one table row matches where, and it matches expect
//   - row_count: the table holds count rows matching where
//
// # Determinism
//
// Plan ids come from engine.FixedGenerator, so snapshots compare
// byte-for-byte against golden files in testdata/golden.
package harness
