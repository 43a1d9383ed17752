package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/picoboots/p8pp/internal/variant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const src = `--#if log
log("hi")
--#endif
local x = 1 -- comment
assert(x == 1)
print("##x", $stage_ver)
`

type result struct {
	out, err string
}

func execute(t *testing.T, stdin string, args ...string) (result, error) {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), "p8pp.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("logging:\n  level: warn\n"), 0o644))

	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", cfg}, args...))
	err := cmd.Execute()
	return result{out: stdout.String(), err: stderr.String()}, err
}

func TestPreprocessStdin(t *testing.T) {
	res, err := execute(t, src, "preprocess", "release")
	require.NoError(t, err)
	assert.Equal(t, "local x = 1\nprint(\"##x\", $stage_ver)\n", res.out)
}

func TestPreprocessStdinReplace(t *testing.T) {
	res, err := execute(t, src, "preprocess", "debug", "-", "-s", "stage_ver=3")
	require.NoError(t, err)
	assert.Equal(t, "log(\"hi\")\nlocal x = 1\nassert(x == 1)\nprint(\"❎\", 3)\n", res.out)
}

func TestPreprocessTree(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "main.lua"), []byte(src+"--#endif\n"), 0o644))

	res, err := execute(t, "", "preprocess", "release", in, "--out", out, "--replace")
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(out, "main.lua"))
	require.NoError(t, err)
	assert.Equal(t, "local x = 1\nprint(\"❎\", )\n", string(got))

	assert.Contains(t, res.out, "processed 1 file, 7 → 2 lines, 1 anomaly")
	assert.Contains(t, res.out, "main.lua:7:")
	assert.Contains(t, res.err, "unmatched-endif")
}

func TestPreprocessUnknownVariant(t *testing.T) {
	_, err := execute(t, src, "preprocess", "nightly")
	assert.ErrorIs(t, err, variant.ErrUnknownVariant)
}

func TestPreprocessBadSubstitute(t *testing.T) {
	_, err := execute(t, src, "preprocess", "release", "-s", "stage_ver")
	assert.ErrorContains(t, err, "name=value")
}

func TestSubstitute(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.lua")
	require.NoError(t, os.WriteFile(path, []byte("btnp(button_ids.x)\n--#if log\n"), 0o644))

	_, err := execute(t, "", "substitute", path)
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "btnp(5)\n--#if log\n", string(got))
}

func TestWatchNeedsOut(t *testing.T) {
	_, err := execute(t, "", "watch", "release", t.TempDir())
	assert.ErrorContains(t, err, "--out")
}

func TestVariants(t *testing.T) {
	res, err := execute(t, "", "variants")
	require.NoError(t, err)
	assert.Contains(t, res.out, "itest_light")
	assert.Contains(t, res.out, "assert, err, log, warn")
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.lua")
	require.NoError(t, os.WriteFile(path, []byte("if x then\n--#if log\nend\n--#endif\n"), 0o644))

	_, err := execute(t, "", "check", dir)
	require.NoError(t, err)

	_, err = execute(t, "", "check", dir, "--variant", "release")
	assert.ErrorContains(t, err, "main.lua")
}

func TestBadConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "variants"})
	assert.ErrorIs(t, cmd.Execute(), os.ErrNotExist)
}
