package compile

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
	compileOptions internalcmd.StageOptions

	exampleCompileUsage = `  # Compiling the labels of a run into the driver query
  taintio compile --query cwe-078wLLM --run-id 2f1c6c1e my_project`
)

// CompileCmd renders labelled buckets into predicate bodies and the driver query.
var CompileCmd = &cobra.Command{
	Use:                   "compile --query/-q QUERY --run-id ID [-j THREADS_NUMBER, default=1] {--input-file/-i PATH | PROJECT...}",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleCompileUsage,
	Short:                 "Compile labels into CodeQL predicates and a driver query",
	RunE:                  runCompileCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config, l hclog.Logger) {
	AppConfig = cfg
	logger = l
}

func runCompileCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !shared.HasFlags(cmd.Flags()) {
		return cmd.Help()
	}

	if err := internalcmd.ValidateStageArgs(&compileOptions, args, true); err != nil {
		logger.Error("invalid compile arguments", "error", err)
		return errors.NewCommandError(compileOptions, nil, fmt.Errorf("invalid compile arguments: %w", err), 1)
	}
	if _, err := internalcmd.PrepareProjects(&compileOptions, args); err != nil {
		logger.Error("failed to prepare projects", "error", err)
		return errors.NewCommandError(compileOptions, nil, fmt.Errorf("failed to prepare projects: %w", err), 1)
	}

	return internalcmd.Execute(cmd.Context(), AppConfig, logger, "compile", &compileOptions, []pipeline.Stage{pipeline.StageCompile})
}

func init() {
	internalcmd.AddStageFlags(CompileCmd, &compileOptions)
}
