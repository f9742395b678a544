package label

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

// Kinds of candidates the label command can send to the model.
const (
	KindAPIs       = "apis"
	KindFuncParams = "func-params"
	KindAll        = "all"
)

var (
	AppConfig    *config.Config
	logger       hclog.Logger
	labelOptions internalcmd.StageOptions
	kind         string

	exampleLabelUsage = `  # Labelling both candidate kinds of a collected run
  taintio label --query cwe-078wLLM --run-id 2f1c6c1e my_project

  # Relabelling only the external APIs, ignoring the cache
  taintio label --query cwe-078wLLM --run-id 2f1c6c1e --kind apis --force-refresh my_project`
)

// LabelCmd sends collected candidates to the model and stores the reconciled labels.
var LabelCmd = &cobra.Command{
	Use:                   "label --query/-q QUERY --run-id ID [--kind apis|func-params|all] [--force-refresh] [-j THREADS_NUMBER, default=1] {--input-file/-i PATH | PROJECT...}",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleLabelUsage,
	Short:                 "Label collected candidates with the language model",
	RunE:                  runLabelCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config, l hclog.Logger) {
	AppConfig = cfg
	logger = l
}

// stagesFor maps the kind flag to pipeline stages.
func stagesFor(kind string) ([]pipeline.Stage, error) {
	switch kind {
	case KindAPIs:
		return []pipeline.Stage{pipeline.StageLabelAPIs}, nil
	case KindFuncParams:
		return []pipeline.Stage{pipeline.StageLabelFuncParams}, nil
	case KindAll, "":
		return []pipeline.Stage{pipeline.StageLabelAPIs, pipeline.StageLabelFuncParams}, nil
	default:
		return nil, fmt.Errorf("unknown kind %q, expected one of %s, %s, %s", kind, KindAPIs, KindFuncParams, KindAll)
	}
}

func runLabelCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !shared.HasFlags(cmd.Flags()) {
		return cmd.Help()
	}

	if err := internalcmd.ValidateStageArgs(&labelOptions, args, true); err != nil {
		logger.Error("invalid label arguments", "error", err)
		return errors.NewCommandError(labelOptions, nil, fmt.Errorf("invalid label arguments: %w", err), 1)
	}
	stages, err := stagesFor(kind)
	if err != nil {
		logger.Error("invalid label arguments", "error", err)
		return errors.NewCommandError(labelOptions, nil, err, 1)
	}
	if _, err := internalcmd.PrepareProjects(&labelOptions, args); err != nil {
		logger.Error("failed to prepare projects", "error", err)
		return errors.NewCommandError(labelOptions, nil, fmt.Errorf("failed to prepare projects: %w", err), 1)
	}

	return internalcmd.Execute(cmd.Context(), AppConfig, logger, "label", &labelOptions, stages)
}

func init() {
	internalcmd.AddStageFlags(LabelCmd, &labelOptions)
	LabelCmd.Flags().StringVar(&kind, "kind", KindAll, "Candidates to label: apis, func-params or all.")
	LabelCmd.Flags().BoolVar(&labelOptions.ForceRefresh, "force-refresh", false, "Ignore cached labels and relabel every candidate.")
}
