package query

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
	AppConfig    *config.Config
	logger       hclog.Logger
	queryOptions internalcmd.StageOptions

	exampleQueryUsage = `  # Running the compiled driver query of a run
  taintio query --query cwe-078wLLM --run-id 2f1c6c1e my_project

  # Running it for many projects, two databases at a time
  taintio query --query cwe-078wLLM --run-id 2f1c6c1e --input-file /path/to/projects.txt -j 2`
)

// QueryCmd runs the compiled driver query against the project database.
var QueryCmd = &cobra.Command{
	Use:                   "query --query/-q QUERY --run-id ID [-j THREADS_NUMBER, default=1] {--input-file/-i PATH | PROJECT...}",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleQueryUsage,
	Short:                 "Run the compiled weakness query and store SARIF and CSV results",
	RunE:                  runQueryCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config, l hclog.Logger) {
	AppConfig = cfg
	logger = l
}

func runQueryCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !shared.HasFlags(cmd.Flags()) {
		return cmd.Help()
	}

	if err := internalcmd.ValidateStageArgs(&queryOptions, args, true); err != nil {
		logger.Error("invalid query arguments", "error", err)
		return errors.NewCommandError(queryOptions, nil, fmt.Errorf("invalid query arguments: %w", err), 1)
	}
	if _, err := internalcmd.PrepareProjects(&queryOptions, args); err != nil {
		logger.Error("failed to prepare projects", "error", err)
		return errors.NewCommandError(queryOptions, nil, fmt.Errorf("failed to prepare projects: %w", err), 1)
	}

	return internalcmd.Execute(cmd.Context(), AppConfig, logger, "query", &queryOptions, []pipeline.Stage{pipeline.StageQuery})
}

func init() {
	internalcmd.AddStageFlags(QueryCmd, &queryOptions)
}
