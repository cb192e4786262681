package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tmerge/internal/config"
	"github.com/roach88/tmerge/internal/engine"
	"github.com/roach88/tmerge/internal/planner"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("APPLY_FAILED", "plan already applied", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "APPLY_FAILED", resp.Error.Code)
	assert.Equal(t, "plan already applied", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"field": "era.subtype"}
	err := formatter.Error("UNSUPPORTED_SUBTYPE", "unsupported subtype", details)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}

type textReport struct{ n int }

func (r textReport) Text(w io.Writer) {
	fmt.Fprintf(w, "%d rows\n", r.n)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("All jobs valid")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "All jobs valid")

	buf.Reset()
	require.NoError(t, formatter.Success(textReport{n: 3}))
	assert.Equal(t, "3 rows\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("PLAN_FAILED", "planning failed", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [PLAN_FAILED]")
	assert.Contains(t, buf.String(), "planning failed")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"field": "mode"}
	err := formatter.Error("INVALID_MODE", "unknown mode", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [INVALID_MODE]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Loaded %s", "jobs.yaml")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Loaded jobs.yaml")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	cause := &engine.RuntimeError{Code: engine.ErrCodeApply, Message: "apply plan"}
	err := formatter.Fail(ExitFailure, cause)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, cause)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "APPLY_FAILED", resp.Error.Code)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"config", &planner.ConfigError{Code: planner.ErrCodeInvalidMode, Field: "mode"}, "INVALID_MODE"},
		{"runtime", &engine.RuntimeError{Code: engine.ErrCodeIntrospect}, "INTROSPECT_FAILED"},
		{"load", &config.LoadError{Code: config.ErrCodeSchema}, "CONFIG_SCHEMA"},
		{"wrapped", fmt.Errorf("job x: %w", &engine.RuntimeError{Code: engine.ErrCodePlan}), "PLAN_FAILED"},
		{"generic", errors.New("boom"), ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := errorCode(tt.err)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", WrapExitError(ExitCommandError, "x", errors.New("y")))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}

func TestTable(t *testing.T) {
	buf := &bytes.Buffer{}
	table(buf, []string{"JOB", "ROWS"}, [][]string{{"people", "3"}, {"prices_long", "12"}})
	assert.Equal(t, "JOB          ROWS\npeople       3\nprices_long  12\n", buf.String())
}

func TestCLIResponse_JSON(t *testing.T) {
	resp := CLIResponse{
		Status: "ok",
		Data:   map[string]int{"count": 42},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded CLIResponse
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "ok", decoded.Status)
}

func TestIsReported(t *testing.T) {
	formatter := &OutputFormatter{Format: "text", Writer: io.Discard}
	assert.True(t, IsReported(formatter.Fail(ExitFailure, errors.New("boom"))))
	assert.True(t, IsReported(reportedExitError(ExitFailure, "plan is stale")))
	assert.False(t, IsReported(NewExitError(ExitCommandError, "database not found")))
	assert.False(t, IsReported(errors.New("plain")))
}
