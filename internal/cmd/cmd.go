package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/scan-io-git/taint-io/internal/codeql"
	"github.com/scan-io-git/taint-io/internal/llm"
	"github.com/scan-io-git/taint-io/internal/pipeline"
	"github.com/scan-io-git/taint-io/internal/projectinfo"
	"github.com/scan-io-git/taint-io/internal/queries"
	"github.com/scan-io-git/taint-io/pkg/shared"
	"github.com/scan-io-git/taint-io/pkg/shared/artifacts"
	"github.com/scan-io-git/taint-io/pkg/shared/config"
	"github.com/scan-io-git/taint-io/pkg/shared/errors"
)

// Mode constants
const (
	ModeProjects  = "projects"
	ModeInputFile = "input-file"
)

// StageOptions holds the arguments shared by every pipeline command.
type StageOptions struct {
	Query        string   `json:"query"`
	RunID        string   `json:"run_id,omitempty"`
	InputFile    string   `json:"input_file,omitempty"`
	Projects     []string `json:"projects,omitempty"`
	Stages       []string `json:"stages,omitempty"`
	ForceRefresh bool     `json:"force_refresh,omitempty"`
	Overwrite    bool     `json:"overwrite,omitempty"`
	Threads      int      `json:"threads"`
}

// AddStageFlags registers the common flags on a pipeline command.
func AddStageFlags(c *cobra.Command, opts *StageOptions) {
	c.Flags().StringVarP(&opts.Query, "query", "q", "", "Name of the weakness query to run (e.g., cwe-078wLLM).")
	c.Flags().StringVar(&opts.RunID, "run-id", "", "Identifier that scopes outputs and label caches.")
	c.Flags().StringVarP(&opts.InputFile, "input-file", "i", "", "Path to a file with one project name per line.")
	c.Flags().IntVarP(&opts.Threads, "threads", "j", 1, "Number of projects processed concurrently.")
	c.Flags().BoolP("help", "h", false, "Show help for the command.")
}

// DetermineMode determines the mode based on the provided arguments.
func DetermineMode(args []string) string {
	if len(args) > 0 {
		return ModeProjects
	}
	return ModeInputFile
}

// ValidateStageArgs checks the common arguments. Commands that resume an
// earlier run must name it.
func ValidateStageArgs(opts *StageOptions, args []string, requireRunID bool) error {
	if opts.Query == "" {
		return fmt.Errorf("the 'query' flag must be specified")
	}
	if _, err := queries.Lookup(opts.Query); err != nil {
		return err
	}
	if len(args) > 0 && opts.InputFile != "" {
		return fmt.Errorf("you cannot use an 'input-file' flag and project names at the same time")
	}
	if len(args) == 0 && opts.InputFile == "" {
		return fmt.Errorf("either 'input-file' flag or at least one project name must be specified")
	}
	if requireRunID && opts.RunID == "" {
		return fmt.Errorf("the 'run-id' flag must be specified to resume an existing run")
	}
	if opts.Threads <= 0 {
		return fmt.Errorf("the 'threads' flag must be a positive integer")
	}
	return nil
}

// PrepareProjects resolves the project names to process.
func PrepareProjects(opts *StageOptions, args []string) ([]string, error) {
	switch mode := DetermineMode(args); mode {
	case ModeProjects:
		opts.Projects = args
	case ModeInputFile:
		projects, err := ReadProjectsFile(opts.InputFile)
		if err != nil {
			return nil, fmt.Errorf("error parsing the input file %s: %w", opts.InputFile, err)
		}
		opts.Projects = projects
	default:
		return nil, fmt.Errorf("invalid mode: %s", mode)
	}
	if len(opts.Projects) == 0 {
		return nil, fmt.Errorf("no projects to process")
	}
	return opts.Projects, nil
}

// ReadProjectsFile reads project names, one per line. Blank lines and lines
// starting with '#' are ignored.
func ReadProjectsFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var projects []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		projects = append(projects, line)
	}
	return projects, scanner.Err()
}

func needsModel(stages []pipeline.Stage) bool {
	for _, s := range stages {
		if s == pipeline.StageLabelAPIs || s == pipeline.StageLabelFuncParams {
			return true
		}
	}
	return false
}

// NewRunner wires the model client, the engine and the README fetchers into
// a pipeline runner. The model client is only built when a labelling stage
// is selected.
func NewRunner(cfg *config.Config, logger hclog.Logger, stages []pipeline.Stage) (*pipeline.Runner, error) {
	var model llm.Model
	if needsModel(stages) {
		client, err := llm.NewChatClient(cfg, logger.Named("llm"))
		if err != nil {
			return nil, fmt.Errorf("failed to create model client: %w", err)
		}
		model = client
	}
	fetchers := func(p *projectinfo.Project) (projectinfo.ContentFetcher, error) {
		return projectinfo.NewFetcher(cfg, p, logger.Named("readme"))
	}
	return pipeline.New(cfg, model, codeql.NewRunner(cfg, logger.Named("codeql")), fetchers, logger), nil
}

// Execute runs the selected stages over every project, stores the command
// artifact and turns project failures into a CommandError.
func Execute(ctx context.Context, cfg *config.Config, logger hclog.Logger, command string, opts *StageOptions, stages []pipeline.Stage) error {
	runner, err := NewRunner(cfg, logger, stages)
	if err != nil {
		logger.Error("failed to prepare the pipeline", "error", err)
		return errors.NewCommandError(opts, nil, err, 1)
	}

	result := runner.RunMany(ctx, opts.Projects, pipeline.Options{
		Query:        opts.Query,
		RunID:        opts.RunID,
		Stages:       stages,
		ForceRefresh: opts.ForceRefresh || cfg.Pipeline.ForceRefresh,
		Overwrite:    opts.Overwrite,
	}, opts.Threads)

	if _, err := artifacts.SaveArtifactJSON(cfg.TaintIO.ArtifactsFolder, logger, command, opts.Query, result); err != nil {
		logger.Error("failed to write artifact", "error", err)
	}
	if err := shared.PrintResultAsJSON(result); err != nil {
		logger.Error("error serializing JSON result", "error", err)
	}

	if result.Failed() {
		err := fmt.Errorf("%s command failed for %d of %d projects", command, countFailed(result), len(result.Launches))
		logger.Error("command failed", "command", command, "error", err)
		return errors.NewCommandErrorWithResult(result, err, 2)
	}
	logger.Info("command completed successfully", "command", command, "projects", len(result.Launches))
	return nil
}

func countFailed(result shared.GenericLaunchesResult) int {
	n := 0
	for _, l := range result.Launches {
		if l.Status == shared.StatusFailed {
			n++
		}
	}
	return n
}
