package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trainingData = `positive	I love cats
positive	what a lovely happy day
negative	I hate dogs
negative	a terrible awful day
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setup(t *testing.T) (dir, data, model string) {
	t.Helper()
	dir = t.TempDir()
	data = filepath.Join(dir, "train.tsv")
	require.NoError(t, os.WriteFile(data, []byte(trainingData), 0o644))
	return dir, data, filepath.Join(dir, "model.json")
}

func TestTrainClassify(t *testing.T) {
	_, data, model := setup(t)

	out, err := run(t, "train", "-m", model, data)
	require.NoError(t, err)
	assert.Contains(t, out, "Trained on 4 examples")
	assert.FileExists(t, model)

	out, err = run(t, "classify", "-m", model, "so", "happy", "and", "lovely")
	require.NoError(t, err)
	assert.Equal(t, "positive", strings.TrimSpace(out))

	out, err = run(t, "classify", "-m", model, "--scores", "awful dogs")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "positive"))
	assert.True(t, strings.HasPrefix(lines[1], "negative"))
}

func TestTrainAccumulates(t *testing.T) {
	_, data, model := setup(t)
	_, err := run(t, "train", "-m", model, data)
	require.NoError(t, err)
	_, err = run(t, "train", "-m", model, data)
	require.NoError(t, err)

	out, err := run(t, "info", "-m", model)
	require.NoError(t, err)
	assert.Contains(t, out, "Categories: 2")
	assert.Contains(t, out, "documents=4")

	_, err = run(t, "train", "-m", model, "--reset", data)
	require.NoError(t, err)
	out, err = run(t, "info", "-m", model)
	require.NoError(t, err)
	assert.Contains(t, out, "documents=2")
}

func TestClassifyUntrained(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "classify", "-m", filepath.Join(dir, "none.json"), "text")
	assert.Error(t, err)
}

func TestEvaluateCrossVal(t *testing.T) {
	_, data, model := setup(t)
	_, err := run(t, "train", "-m", model, data)
	require.NoError(t, err)

	out, err := run(t, "evaluate", "-m", model, data)
	require.NoError(t, err)
	assert.Contains(t, out, "Examples:  4")
	assert.Contains(t, out, "Accuracy:  1.0000")

	dir := filepath.Dir(data)
	eval := filepath.Join(dir, "eval.tsv")
	require.NoError(t, os.WriteFile(eval, []byte("positive\tlovely happy cats\nnegative\tlovely happy cats\n"), 0o644))
	wrong := filepath.Join(dir, "wrong.tsv")
	out, err = run(t, "evaluate", "-m", model, "--misclassified", wrong, eval)
	require.NoError(t, err)
	assert.Contains(t, out, "Accuracy:  0.5000")
	written, err := os.ReadFile(wrong)
	require.NoError(t, err)
	assert.Equal(t, "negative\tlovely happy cats\n", string(written))

	out, err = run(t, "crossval", "-k", "2", data)
	require.NoError(t, err)
	assert.Contains(t, out, "2-fold accuracy:")

	_, err = run(t, "crossval", "-k", "9", data)
	assert.Error(t, err)
}

func TestTermsExportImport(t *testing.T) {
	dir, data, model := setup(t)
	_, err := run(t, "train", "-m", model, data)
	require.NoError(t, err)

	out, err := run(t, "terms", "-m", model, "-l", "1", "negative")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "negative:\n   1. "))

	exported := filepath.Join(dir, "export.json")
	_, err = run(t, "export", "-m", model, exported)
	require.NoError(t, err)

	copied := filepath.Join(dir, "copy.json")
	_, err = run(t, "import", "-m", copied, exported)
	require.NoError(t, err)
	out, err = run(t, "info", "-m", copied)
	require.NoError(t, err)
	assert.Contains(t, out, "Categories: 2")
}

func TestBadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nbc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: mongo\n"), 0o644))
	_, err := run(t, "info", "-c", path)
	assert.Error(t, err)

	_, err = run(t, "info", "--backend", "mongo")
	assert.Error(t, err)
}

func TestRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	dir, data, _ := setup(t)
	cfgPath := filepath.Join(dir, "nbc.yaml")
	cfg := "store:\n  backend: redis\n  redis_url: redis://" + mr.Addr() + "/0\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	_, err := run(t, "train", "-c", cfgPath, data)
	require.NoError(t, err)
	out, err := run(t, "info", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Backend:    redis")
	assert.Contains(t, out, "N-gram:     1")
	assert.Contains(t, out, "Categories: 2")

	_, err = run(t, "terms", "-c", cfgPath, "positive")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only kept with the memory backend")
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nbc.yaml")
	out, err := run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "backend: memory")

	_, err = run(t, "config", "init", path)
	assert.Error(t, err)
	_, err = run(t, "config", "init", "--force", path)
	assert.NoError(t, err)

	out, err = run(t, "info", "-c", path, "-m", filepath.Join(dir, "model.json"))
	require.NoError(t, err)
	assert.Contains(t, out, "Categories: 0")
}
