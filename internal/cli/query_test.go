// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jsonResult struct {
	Status string `json:"status"`
	Result any    `json:"result"`
	Detail string `json:"detail"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func sqliteConfig(t *testing.T) string {
	return writeFile(t, "config.yaml", "driver: sqlite3\ndsn: \":memory:\"\ntimeout: 10s\n")
}

func runCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func decodeResults(t *testing.T, out string) []jsonResult {
	t.Helper()
	var results []jsonResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	return results
}

func TestQueryCommandSQLite(t *testing.T) {
	params := writeFile(t, "params.yaml", "n: 3\na: overridden\n")
	out, _, err := runCommand(t, "",
		"query", "--config", sqliteConfig(t),
		"CREATE TABLE t (a text, n integer); INSERT INTO t VALUES ($a, $n); SELECT a, n FROM t",
		"--bind", "a=person:tobie",
		"--bind-file", params,
	)
	require.NoError(t, err)

	results := decodeResults(t, out)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, "OK", r.Status)
	}
	assert.Equal(t, []any{map[string]any{"a": "person:tobie", "n": float64(3)}}, results[2].Result)
}

func TestQueryCommandProgramFromStdin(t *testing.T) {
	out, _, err := runCommand(t, "SELECT $x AS x",
		"query", "--config", sqliteConfig(t), "--file", "-", "-b", "x=hello",
	)
	require.NoError(t, err)

	results := decodeResults(t, out)
	require.Len(t, results, 1)
	assert.Equal(t, []any{map[string]any{"x": "hello"}}, results[0].Result)
}

func TestQueryCommandProgramFromFile(t *testing.T) {
	program := writeFile(t, "program.surql", "SELECT 1 AS one;\nSELECT 2 AS two;\n")
	out, _, err := runCommand(t, "", "query", "--config", sqliteConfig(t), "--file", program)
	require.NoError(t, err)
	assert.Len(t, decodeResults(t, out), 2)
}

func TestQueryCommandStatementError(t *testing.T) {
	out, _, err := runCommand(t, "",
		"query", "--config", sqliteConfig(t), "SELECT * FROM missing; SELECT 1 AS one",
	)
	require.Error(t, err)
	assert.Equal(t, "statement 0 failed: no such table: missing", err.Error())

	// The response is printed before the error is returned.
	results := decodeResults(t, out)
	require.Len(t, results, 2)
	assert.Equal(t, "ERR", results[0].Status)
	assert.Equal(t, "no such table: missing", results[0].Detail)
	assert.Equal(t, "OK", results[1].Status)
}

func TestQueryCommandVerbose(t *testing.T) {
	_, stderr, err := runCommand(t, "", "query", "-v", "--config", sqliteConfig(t), "SELECT 1")
	require.NoError(t, err)
	assert.Contains(t, stderr, "query done")
	assert.Contains(t, stderr, "driver=sqlite3")
}

func TestQueryCommandErrors(t *testing.T) {
	config := sqliteConfig(t)
	tests := []struct {
		name string
		args []string
		err  string
	}{{
		name: "no program",
		args: []string{"query", "--config", config},
		err:  "no program given",
	}, {
		name: "file and argument",
		args: []string{"query", "--config", config, "--file", "x.surql", "SELECT 1"},
		err:  "cannot use --file with a program argument",
	}, {
		name: "invalid binding",
		args: []string{"query", "--config", config, "SELECT $a", "--bind", "a"},
		err:  `invalid binding "a": need name=value`,
	}, {
		name: "invalid program",
		args: []string{"query", "--config", config, "SELECT (1"},
		err:  "cannot parse statement: column 8: missing closing ')'",
	}, {
		name: "bind file not a map",
		args: []string{"query", "--config", config, "SELECT 1", "--bind-file", writeFile(t, "list.yaml", "- 1\n- 2\n")},
		err:  "cannot parse bind file",
	}, {
		name: "missing config",
		args: []string{"query", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "SELECT 1"},
		err:  "cannot read config",
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCommand(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}
