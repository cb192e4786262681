package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tmerge/internal/config"
	"github.com/roach88/tmerge/internal/engine"
)

// Scenario defines one merge scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Setup holds SQL scripts run in order on a fresh database.
	Setup []string `yaml:"setup"`

	// Job is a single job in job file format.
	Job map[string]any `yaml:"job"`

	// PlanID is the id given to the plan. Defaults to "plan-<name>".
	PlanID string `yaml:"plan_id,omitempty"`

	// Idempotent requires a second plan, made after applying the first,
	// to contain no INSERT, UPDATE or DELETE rows. Needs job.apply.
	Idempotent bool `yaml:"idempotent,omitempty"`

	// ExpectError makes the scenario pass only if the run fails with an
	// error containing this text.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Snapshot lists tables whose final contents go into the golden file.
	Snapshot []string `yaml:"snapshot,omitempty"`

	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Assertion validates the plan or the final table contents.
type Assertion struct {
	// Type is one of operation_count, plan_row, final_state, row_count,
	// coverage.
	Type string `yaml:"type"`

	// Operation is the plan operation (operation_count).
	Operation string `yaml:"operation,omitempty"`

	// Count is the expected number of rows (operation_count, row_count).
	Count int `yaml:"count,omitempty"`

	// Seq is the plan_op_seq of the row to check (plan_row).
	Seq int64 `yaml:"seq,omitempty"`

	// Table is the table to query (final_state, row_count, coverage).
	Table string `yaml:"table,omitempty"`

	// From and Until bound the period the matching rows must cover
	// without gaps (coverage).
	From  string `yaml:"from,omitempty"`
	Until string `yaml:"until,omitempty"`

	// Where filters table rows by exact column values.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect holds expected field values; a subset match.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertOperationCount = "operation_count"
	AssertPlanRow        = "plan_row"
	AssertFinalState     = "final_state"
	AssertRowCount       = "row_count"
	AssertCoverage       = "coverage"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// EngineJob validates the scenario's job block and converts it.
func (s *Scenario) EngineJob() (engine.Job, error) {
	data, err := yaml.Marshal(map[string]any{"jobs": []any{s.Job}})
	if err != nil {
		return engine.Job{}, fmt.Errorf("encode job: %w", err)
	}
	f, err := config.Parse(s.Name+".yaml", data)
	if err != nil {
		return engine.Job{}, err
	}
	return f.Jobs[0].EngineJob(), nil
}

func (s *Scenario) planID() string {
	if s.PlanID != "" {
		return s.PlanID
	}
	return "plan-" + s.Name
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Setup) == 0 {
		return fmt.Errorf("setup list is required and must be non-empty")
	}
	if len(s.Job) == 0 {
		return fmt.Errorf("job is required")
	}
	if _, err := s.EngineJob(); err != nil {
		return fmt.Errorf("job: %w", err)
	}
	if s.Idempotent && s.Job["apply"] != true {
		return fmt.Errorf("idempotent scenarios must set job.apply")
	}
	if s.ExpectError == "" && len(s.Assertions) == 0 && len(s.Snapshot) == 0 {
		return fmt.Errorf("scenario checks nothing: add assertions, a snapshot or expect_error")
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOperationCount:
		if a.Operation == "" {
			return fmt.Errorf("assertions[%d]: operation is required for operation_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for operation_count", index)
		}
	case AssertPlanRow:
		if a.Seq <= 0 {
			return fmt.Errorf("assertions[%d]: seq must be positive for plan_row", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for plan_row", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRowCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for row_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertCoverage:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for coverage", index)
		}
		if a.From == "" || a.Until == "" {
			return fmt.Errorf("assertions[%d]: from and until are required for coverage", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
