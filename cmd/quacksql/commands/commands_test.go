package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gandaldf/quacksql"
)

func init() {
	pterm.DisableStyling()
	color.NoColor = true
}

// moduleDir writes a module directory used by the command tests.
func moduleDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, q := range map[string]string{
		"a.sql":   "SELECT 1",
		"b.sql":   "SELECT ?::INT AS x",
		"add.sql": "SELECT $a::INT + $b::INT AS total",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(q), 0o644))
	}
	return dir
}

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestList(t *testing.T) {
	out, err := execute(t, "--module", moduleDir(t), "list")
	require.NoError(t, err)
	assert.Equal(t, "  • a\n  • add\n  • b\n", out)
}

func TestList_ShowSQL(t *testing.T) {
	out, err := execute(t, "--module", moduleDir(t), "list", "--sql")
	require.NoError(t, err)
	assert.Contains(t, out, "✔ b\nSELECT ?::INT AS x\n")
}

func TestRun_PositionalText(t *testing.T) {
	out, err := execute(t, "--module", moduleDir(t), "--format", "text", "run", "b", "5")
	require.NoError(t, err)
	assert.Equal(t, "[[5]]\n", out)
}

func TestRun_NamedJSON(t *testing.T) {
	out, err := execute(t, "--module", moduleDir(t), "--format", "json", "run", "add", "-p", "a=40", "-p", "b=2")
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.EqualValues(t, 42, got[0]["total"])
}

func TestRun_Table(t *testing.T) {
	out, err := execute(t, "--module", moduleDir(t), "run", "a")
	require.NoError(t, err)
	assert.Contains(t, out, "(1 rows)")
}

func TestRun_UnknownQuery(t *testing.T) {
	_, err := execute(t, "--module", moduleDir(t), "run", "nope")
	assert.ErrorIs(t, err, quacksql.ErrQueryNotFound)
}

func TestRun_MixedParams(t *testing.T) {
	_, err := execute(t, "--module", moduleDir(t), "run", "b", "5", "-p", "a=1")
	assert.ErrorIs(t, err, quacksql.ErrMixedParams)
}

func TestRun_MissingModule(t *testing.T) {
	_, err := execute(t, "--module", filepath.Join(t.TempDir(), "missing"), "list")
	assert.Error(t, err)
}

func TestParseParams(t *testing.T) {
	p, err := parseParams([]string{"a=1", "b=x=y"})
	require.NoError(t, err)
	assert.Equal(t, quacksql.P{"a": "1", "b": "x=y"}, p)

	_, err = parseParams([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseParams([]string{"=1"})
	assert.Error(t, err)

	p, err = parseParams(nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}
