// Package config loads tmerge job files.
//
// Job files are YAML or CUE. Both are checked against an embedded CUE
// schema before being decoded; semantic checks (mode combinations, key
// strategy, era subtype) are left to planner.NewContext.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tmerge/internal/engine"
	"github.com/roach88/tmerge/internal/planner"
)

//go:embed schema.cue
var schemaCUE string

// File is a decoded job file.
type File struct {
	Jobs []Job `json:"jobs"`
}

// Job is one job as written in a job file.
type Job struct {
	Name                 string     `json:"name,omitempty"`
	SourceTable          string     `json:"source_table"`
	TargetTable          string     `json:"target_table"`
	Mode                 string     `json:"mode"`
	DeleteMode           string     `json:"delete_mode,omitempty"`
	Era                  Era        `json:"era"`
	IdentityColumns      []string   `json:"identity_columns,omitempty"`
	LookupKeys           [][]string `json:"lookup_keys,omitempty"`
	EphemeralColumns     []string   `json:"ephemeral_columns,omitempty"`
	ExcludeIfNullColumns []string   `json:"exclude_if_null_columns,omitempty"`
	FoundingIDColumn     string     `json:"founding_id_column,omitempty"`
	RowIDColumn          string     `json:"row_id_column,omitempty"`
	LogTrace             bool       `json:"log_trace,omitempty"`
	Apply                bool       `json:"apply,omitempty"`
}

// Era describes the target's temporal columns.
type Era struct {
	Name             string   `json:"name"`
	RangeColumn      string   `json:"range_column,omitempty"`
	ValidFrom        string   `json:"valid_from,omitempty"`
	ValidUntil       string   `json:"valid_until,omitempty"`
	ValidTo          string   `json:"valid_to,omitempty"`
	Subtype          string   `json:"subtype"`
	SubtypeCategory  string   `json:"subtype_category,omitempty"`
	EphemeralColumns []string `json:"ephemeral_columns,omitempty"`
}

// Load reads and validates a job file. The extension selects the format:
// .cue for CUE, anything else is parsed as YAML.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, Message: err.Error(), Path: path}
	}
	return Parse(path, data)
}

// Parse validates and decodes job file contents. filename selects the
// format and appears in error messages.
func Parse(filename string, data []byte) (*File, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile embedded schema: %w", err)
	}

	var doc cue.Value
	if strings.EqualFold(filepath.Ext(filename), ".cue") {
		doc = ctx.CompileBytes(data, cue.Filename(filename))
		if err := doc.Err(); err != nil {
			return nil, schemaError(ErrCodeParse, filename, err)
		}
	} else {
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, &LoadError{Code: ErrCodeParse, Message: err.Error(), Path: filename}
		}
		if raw == nil {
			return nil, &LoadError{Code: ErrCodeSchema, Message: "empty job file", Path: filename}
		}
		doc = ctx.Encode(raw)
		if err := doc.Err(); err != nil {
			return nil, schemaError(ErrCodeParse, filename, err)
		}
	}

	unified := schema.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, schemaError(ErrCodeSchema, filename, err)
	}
	if err := closedTopLevel(doc); err != nil {
		return nil, &LoadError{Code: ErrCodeSchema, Message: err.Error(), Path: filename}
	}

	var f File
	if err := unified.Decode(&f); err != nil {
		return nil, schemaError(ErrCodeSchema, filename, err)
	}
	for i := range f.Jobs {
		if f.Jobs[i].Name == "" {
			f.Jobs[i].Name = f.Jobs[i].TargetTable
		}
	}
	return &f, nil
}

// closedTopLevel rejects unknown top-level keys; the schema's definitions
// close everything below jobs.
func closedTopLevel(doc cue.Value) error {
	iter, err := doc.Fields()
	if err != nil {
		return err
	}
	for iter.Next() {
		if sel := iter.Selector().String(); sel != "jobs" {
			return fmt.Errorf("unknown top-level field %q", sel)
		}
	}
	return nil
}

// PlannerConfig converts the job to the planner's configuration.
func (j Job) PlannerConfig() planner.Config {
	return planner.Config{
		Mode:       j.Mode,
		DeleteMode: j.DeleteMode,
		Era: planner.Era{
			Name:             j.Era.Name,
			RangeColumn:      j.Era.RangeColumn,
			ValidFromColumn:  j.Era.ValidFrom,
			ValidUntilColumn: j.Era.ValidUntil,
			ValidToColumn:    j.Era.ValidTo,
			Subtype:          j.Era.Subtype,
			SubtypeCategory:  j.Era.SubtypeCategory,
			EphemeralColumns: j.Era.EphemeralColumns,
		},
		IdentityColumns:      j.IdentityColumns,
		LookupKeys:           j.LookupKeys,
		EphemeralColumns:     j.EphemeralColumns,
		ExcludeIfNullColumns: j.ExcludeIfNullColumns,
		FoundingIDColumn:     j.FoundingIDColumn,
		RowIDColumn:          j.RowIDColumn,
		LogTrace:             j.LogTrace,
	}
}

// EngineJob converts the job to an engine job.
func (j Job) EngineJob() engine.Job {
	return engine.Job{
		Name:        j.Name,
		SourceTable: j.SourceTable,
		TargetTable: j.TargetTable,
		Config:      j.PlannerConfig(),
		Apply:       j.Apply,
	}
}

// Find returns the job with the given name.
func (f *File) Find(name string) (Job, bool) {
	for _, j := range f.Jobs {
		if j.Name == name {
			return j, true
		}
	}
	return Job{}, false
}

// LoadError reports a job file that could not be read or validated.
type LoadError struct {
	Code    string
	Message string
	Path    string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
}

// Error codes for job file loading.
const (
	ErrCodeRead   = "CONFIG_READ"
	ErrCodeParse  = "CONFIG_PARSE"
	ErrCodeSchema = "CONFIG_SCHEMA"
)

func schemaError(code, path string, err error) *LoadError {
	msgs := make([]string, 0, 1)
	for _, e := range cueerrors.Errors(err) {
		msgs = append(msgs, cueerrors.Details(e, nil))
	}
	if len(msgs) == 0 {
		msgs = append(msgs, err.Error())
	}
	return &LoadError{Code: code, Message: strings.TrimSpace(strings.Join(msgs, "; ")), Path: path}
}
