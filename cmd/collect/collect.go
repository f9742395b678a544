package collect

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	internalcmd "github.com/scan-io-git/taint-io/internal/cmd"
	"github.com/scan-io-git/taint-io/internal/pipeline"
	"github.com/scan-io-git/taint-io/pkg/shared"
	"github.com/scan-io-git/taint-io/pkg/shared/config"
	"github.com/scan-io-git/taint-io/pkg/shared/errors"
)

var (
	AppConfig      *config.Config
	logger         hclog.Logger
	collectOptions internalcmd.StageOptions

	exampleCollectUsage = `  # Collecting candidates for a new run (the generated run id is reported in the result)
  taintio collect --query cwe-078wLLM my_project

  # Collecting candidates again for an existing run
  taintio collect --query cwe-078wLLM --run-id 2f1c6c1e --overwrite my_project`
)

// CollectCmd extracts the engine facts and writes the candidate CSV files.
var CollectCmd = &cobra.Command{
	Use:                   "collect --query/-q QUERY [--run-id ID] [--overwrite] [-j THREADS_NUMBER, default=1] {--input-file/-i PATH | PROJECT...}",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleCollectUsage,
	Short:                 "Collect external API and function-parameter candidates",
	RunE:                  runCollectCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config, l hclog.Logger) {
	AppConfig = cfg
	logger = l
}

func runCollectCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !shared.HasFlags(cmd.Flags()) {
		return cmd.Help()
	}

	if err := internalcmd.ValidateStageArgs(&collectOptions, args, false); err != nil {
		logger.Error("invalid collect arguments", "error", err)
		return errors.NewCommandError(collectOptions, nil, fmt.Errorf("invalid collect arguments: %w", err), 1)
	}
	if _, err := internalcmd.PrepareProjects(&collectOptions, args); err != nil {
		logger.Error("failed to prepare projects", "error", err)
		return errors.NewCommandError(collectOptions, nil, fmt.Errorf("failed to prepare projects: %w", err), 1)
	}

	return internalcmd.Execute(cmd.Context(), AppConfig, logger, "collect", &collectOptions, []pipeline.Stage{pipeline.StageCollect})
}

func init() {
	internalcmd.AddStageFlags(CollectCmd, &collectOptions)
	CollectCmd.Flags().BoolVar(&collectOptions.Overwrite, "overwrite", false, "Re-extract facts even when their CSV files exist.")
}
