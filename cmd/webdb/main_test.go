package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/webdb/internal/config"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	contents := `default = "local"

[log]
level = "error"

[profiles.local]
driver = "sqlite"
driver_name = "sqlite"
host = "` + filepath.ToSlash(filepath.Join(dir, "data")) + `"
database = "app.db"

[profiles.reports]
driver = "pgsql"
host = "reports.internal"
database = "reports"
`
	path := filepath.Join(dir, "webdb.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func execute(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_Workflow(t *testing.T) {
	cfg := writeConfig(t)
	run := func(stdin io.Reader, args ...string) string {
		t.Helper()
		out, err := execute(t, stdin, append([]string{"--config", cfg}, args...)...)
		require.NoError(t, err, strings.Join(args, " "))
		return out
	}

	run(nil, "exec", "CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, age INTEGER)")

	out := run(nil, "exec", "INSERT INTO users (name, age) VALUES (?, ?)", "alice", "30")
	assert.Equal(t, "1 rows affected, last insert id 1\n", out)

	out = run(strings.NewReader("name,age\nbob,41\ncarol,52\n"), "import", "users")
	assert.Equal(t, "imported 2 rows\n", out)

	assert.Equal(t, "3\n", run(nil, "count", "users"))
	assert.Equal(t, "2\n", run(nil, "count", "users", "--where", "age > ?", "35"))

	out = run(nil, "query", "SELECT id, name, age FROM users ORDER BY id", "--format", "json")
	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "carol", rows[2]["name"])
	assert.EqualValues(t, 52, rows[2]["age"])

	out = run(nil, "query", "SELECT name FROM users WHERE age < ?", "40")
	assert.Contains(t, out, "alice")
	assert.NotContains(t, out, "bob")

	out = run(nil, "export", "users", "--columns", "id, name, age", "--where", "age > ?", "35")
	assert.Equal(t, "id,name,age\n2,bob,41\n3,carol,52\n", out)

	out = run(nil, "fields", "users")
	assert.Contains(t, out, "INTEGER")
	assert.Contains(t, out, "yes")
	assert.Contains(t, out, "age")
}

func TestCLI_ExportToFileAndImportFromFile(t *testing.T) {
	cfg := writeConfig(t)
	dir := filepath.Dir(cfg)
	_, err := execute(t, nil, "--config", cfg, "exec", "CREATE TABLE tags (name TEXT, note TEXT)")
	require.NoError(t, err)

	src := filepath.Join(dir, "tags.csv")
	require.NoError(t, os.WriteFile(src, []byte("name,note\ngo,\nsql,\"a, b\"\n"), 0o644))
	out, err := execute(t, nil, "--config", cfg, "import", "tags", src, "--batch", "1")
	require.NoError(t, err)
	assert.Equal(t, "imported 2 rows\n", out)

	dst := filepath.Join(dir, "out.csv")
	_, err = execute(t, nil, "--config", cfg, "export", "tags", "-o", dst, "--no-header")
	require.NoError(t, err)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "go,\nsql,\"a, b\"\n", string(data))

	out, err = execute(t, nil, "--config", cfg, "query", "SELECT name, note FROM tags WHERE note IS NULL", "-f", "csv")
	require.NoError(t, err)
	assert.Equal(t, "name,note\ngo,\n", out)
}

func TestCLI_Profiles(t *testing.T) {
	cfg := writeConfig(t)
	out, err := execute(t, nil, "--config", cfg, "profiles")
	require.NoError(t, err)
	assert.Contains(t, out, "local")
	assert.Contains(t, out, "reports.internal")
}

func TestCLI_Errors(t *testing.T) {
	cfg := writeConfig(t)

	_, err := execute(t, nil, "--config", cfg, "--profile", "missing", "count", "users")
	assert.ErrorIs(t, err, config.ErrUnknownProfile)

	_, err = execute(t, nil, "--config", cfg, "query", "SELECT 1", "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")

	_, err = execute(t, nil, "--config", cfg, "count", "no_such_table")
	assert.Error(t, err)

	_, err = execute(t, nil, "--config", filepath.Join(t.TempDir(), "none.toml"), "profiles")
	assert.ErrorContains(t, err, "load config")

	_, err = execute(t, nil, "--config", cfg, "fields")
	assert.Error(t, err)
}
