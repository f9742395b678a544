package postprocess

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/taint-io/internal/labels"
	"github.com/scan-io-git/taint-io/pkg/shared/config"
)

func TestValidateFileArgs(t *testing.T) {
	dir := t.TempDir()
	report := filepath.Join(dir, "results.sarif")
	require.NoError(t, os.WriteFile(report, []byte("{}"), 0o644))
	cfg := &config.Config{Pipeline: config.Pipeline{Language: "python"}}

	opts := &FileOptions{SARIF: report, SourceRoot: dir}
	eco, err := validateFileArgs(opts, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, labels.PythonLike, eco)
	assert.Equal(t, filepath.Join(dir, "results-posthoc-filtered.sarif"), opts.Output)

	out := t.TempDir()
	opts = &FileOptions{SARIF: report, SourceRoot: dir, Output: out, Language: "java"}
	eco, err = validateFileArgs(opts, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, labels.JavaLike, eco)
	assert.Equal(t, filepath.Join(out, "results-posthoc-filtered.sarif"), opts.Output)

	_, err = validateFileArgs(&FileOptions{SARIF: report}, nil, cfg)
	assert.ErrorContains(t, err, "source-root")

	_, err = validateFileArgs(&FileOptions{SARIF: filepath.Join(dir, "missing.sarif"), SourceRoot: dir}, nil, cfg)
	assert.ErrorContains(t, err, "'sarif'")

	_, err = validateFileArgs(&FileOptions{SARIF: report, SourceRoot: dir}, []string{"demo"}, cfg)
	assert.Error(t, err)

	_, err = validateFileArgs(&FileOptions{SARIF: report, SourceRoot: dir, Language: "ruby"}, nil, cfg)
	assert.ErrorContains(t, err, "unsupported language")
}
