package run

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	internalcmd "github.com/scan-io-git/taint-io/internal/cmd"
	"github.com/scan-io-git/taint-io/internal/pipeline"
	"github.com/scan-io-git/taint-io/internal/queries"
	"github.com/scan-io-git/taint-io/pkg/shared"
	"github.com/scan-io-git/taint-io/pkg/shared/config"
	"github.com/scan-io-git/taint-io/pkg/shared/errors"
)

// Global variables for configuration and command arguments
var (
	AppConfig  *config.Config
	logger     hclog.Logger
	runOptions internalcmd.StageOptions

	exampleRunUsage = `  # Running the whole pipeline for one project
  taintio run --query cwe-078wLLM perwendel__spark_CVE-2018-9159_2.7.1

  # Running several projects from a file with 4 concurrent projects
  taintio run --query cwe-022wLLM --input-file /path/to/projects.txt -j 4

  # Relabelling every candidate of an existing run
  taintio run --query cwe-078wLLM --run-id 2f1c6c1e --force-refresh my_project

  # Running only some stages of an existing run
  taintio run --query cwe-078wLLM --run-id 2f1c6c1e --stages compile,query,postprocess my_project`
)

// RunCmd represents the run command.
var RunCmd = &cobra.Command{
	Use:                   "run --query/-q QUERY [--run-id ID] [--stages STAGE,...] [--force-refresh] [--overwrite] [-j THREADS_NUMBER, default=1] {--input-file/-i PATH | PROJECT...}",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleRunUsage,
	Short:                 "Run the labelling pipeline end to end for one or more projects",
	RunE:                  runRunCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config, l hclog.Logger) {
	AppConfig = cfg
	logger = l
	RunCmd.Long = generateLongDescription()
}

func runRunCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !shared.HasFlags(cmd.Flags()) {
		return cmd.Help()
	}

	if err := internalcmd.ValidateStageArgs(&runOptions, args, false); err != nil {
		logger.Error("invalid run arguments", "error", err)
		return errors.NewCommandError(runOptions, nil, fmt.Errorf("invalid run arguments: %w", err), 1)
	}

	stages, err := pipeline.ParseStages(runOptions.Stages)
	if err != nil {
		logger.Error("invalid stages", "error", err)
		return errors.NewCommandError(runOptions, nil, err, 1)
	}

	if _, err := internalcmd.PrepareProjects(&runOptions, args); err != nil {
		logger.Error("failed to prepare projects", "error", err)
		return errors.NewCommandError(runOptions, nil, fmt.Errorf("failed to prepare projects: %w", err), 1)
	}

	return internalcmd.Execute(cmd.Context(), AppConfig, logger, "run", &runOptions, stages)
}

func generateLongDescription() string {
	return fmt.Sprintf(`Run the labelling pipeline end to end for one or more projects.

Every project runs in its own goroutine; a failing project does not stop the others.
A JSON artifact with the status of every project is written to the artifacts folder.

List of available queries:
  %s`, strings.Join(queries.Names(), "\n  "))
}

func init() {
	internalcmd.AddStageFlags(RunCmd, &runOptions)
	RunCmd.Flags().StringSliceVar(&runOptions.Stages, "stages", nil, "Comma-separated stages to run: collect, label-apis, label-func-params, compile, query, postprocess.")
	RunCmd.Flags().BoolVar(&runOptions.ForceRefresh, "force-refresh", false, "Ignore cached labels and relabel every candidate.")
	RunCmd.Flags().BoolVar(&runOptions.Overwrite, "overwrite", false, "Recompute artifacts that already exist on disk.")
}
