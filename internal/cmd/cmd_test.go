package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/taint-io/internal/pipeline"
)

func TestValidateStageArgs(t *testing.T) {
	tests := []struct {
		name         string
		opts         StageOptions
		args         []string
		requireRunID bool
		wantErr      string
	}{
		{name: "ok", opts: StageOptions{Query: "cwe-078wLLM", Threads: 1}, args: []string{"demo"}},
		{name: "no query", opts: StageOptions{Threads: 1}, args: []string{"demo"}, wantErr: "'query'"},
		{name: "unknown query", opts: StageOptions{Query: "cwe-000", Threads: 1}, args: []string{"demo"}, wantErr: "cwe-000"},
		{name: "no projects", opts: StageOptions{Query: "cwe-078wLLM", Threads: 1}, wantErr: "input-file"},
		{name: "both sources", opts: StageOptions{Query: "cwe-078wLLM", InputFile: "x", Threads: 1}, args: []string{"demo"}, wantErr: "same time"},
		{name: "resume without run id", opts: StageOptions{Query: "cwe-078wLLM", Threads: 1}, args: []string{"demo"}, requireRunID: true, wantErr: "run-id"},
		{name: "threads", opts: StageOptions{Query: "cwe-078wLLM"}, args: []string{"demo"}, wantErr: "threads"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStageArgs(&tt.opts, tt.args, tt.requireRunID)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestPrepareProjectsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.txt")
	require.NoError(t, os.WriteFile(path, []byte("# batch one\nalpha\n\n  beta  \n"), 0o644))

	opts := &StageOptions{InputFile: path}
	projects, err := PrepareProjects(opts, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, projects)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o644))
	_, err = PrepareProjects(&StageOptions{InputFile: empty}, nil)
	assert.ErrorContains(t, err, "no projects")
}

func TestPrepareProjectsFromArgs(t *testing.T) {
	opts := &StageOptions{}
	projects, err := PrepareProjects(opts, []string{"demo"})
	require.NoError(t, err)
	assert.Equal(t, []string{"demo"}, projects)
	assert.Equal(t, projects, opts.Projects)
}

func TestNeedsModel(t *testing.T) {
	assert.False(t, needsModel([]pipeline.Stage{pipeline.StageCollect, pipeline.StageCompile}))
	assert.True(t, needsModel([]pipeline.Stage{pipeline.StageLabelFuncParams}))
	assert.True(t, needsModel(pipeline.AllStages))
}
