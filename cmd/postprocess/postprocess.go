package postprocess

import (
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	internalcmd "github.com/scan-io-git/taint-io/internal/cmd"
	"github.com/scan-io-git/taint-io/internal/labels"
	"github.com/scan-io-git/taint-io/internal/pipeline"
	pp "github.com/scan-io-git/taint-io/internal/postprocess"
	"github.com/scan-io-git/taint-io/pkg/shared"
	"github.com/scan-io-git/taint-io/pkg/shared/config"
	"github.com/scan-io-git/taint-io/pkg/shared/errors"
	"github.com/scan-io-git/taint-io/pkg/shared/files"
)

// FileOptions select the single-report mode.
type FileOptions struct {
	SARIF      string `json:"sarif"`
	Output     string `json:"output"`
	SourceRoot string `json:"source_root"`
	Language   string `json:"language"`
}

var (
	AppConfig          *config.Config
	logger             hclog.Logger
	postprocessOptions internalcmd.StageOptions
	fileOptions        FileOptions

	examplePostprocessUsage = `  # Filtering the results of a run
  taintio postprocess --query cwe-078wLLM --run-id 2f1c6c1e my_project

  # Filtering a single SARIF report
  taintio postprocess --sarif /path/to/results.sarif --source-root /path/to/sources --language java

  # Filtering a single SARIF report into a chosen file
  taintio postprocess --sarif /path/to/results.sarif --source-root /path/to/sources --output /path/to/filtered.sarif`
)

// PostprocessCmd removes spurious paths from engine results.
var PostprocessCmd = &cobra.Command{
	Use:                   "postprocess {--query/-q QUERY --run-id ID {--input-file/-i PATH | PROJECT...} | --sarif PATH --source-root PATH [--language LANGUAGE] [--output PATH]}",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               examplePostprocessUsage,
	Short:                 "Filter paths through test code or into print calls out of SARIF results",
	RunE:                  runPostprocessCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config, l hclog.Logger) {
	AppConfig = cfg
	logger = l
}

func runPostprocessCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !shared.HasFlags(cmd.Flags()) {
		return cmd.Help()
	}

	if fileOptions.SARIF != "" {
		return runFileMode(args)
	}

	if err := internalcmd.ValidateStageArgs(&postprocessOptions, args, true); err != nil {
		logger.Error("invalid postprocess arguments", "error", err)
		return errors.NewCommandError(postprocessOptions, nil, fmt.Errorf("invalid postprocess arguments: %w", err), 1)
	}
	if _, err := internalcmd.PrepareProjects(&postprocessOptions, args); err != nil {
		logger.Error("failed to prepare projects", "error", err)
		return errors.NewCommandError(postprocessOptions, nil, fmt.Errorf("failed to prepare projects: %w", err), 1)
	}

	return internalcmd.Execute(cmd.Context(), AppConfig, logger, "postprocess", &postprocessOptions, []pipeline.Stage{pipeline.StagePostprocess})
}

// validateFileArgs checks the single-report mode and fills in defaults.
func validateFileArgs(opts *FileOptions, args []string, cfg *config.Config) (labels.Ecosystem, error) {
	if len(args) > 0 {
		return labels.JavaLike, fmt.Errorf("project names cannot be combined with the 'sarif' flag")
	}
	if err := files.ValidatePath(opts.SARIF); err != nil {
		return labels.JavaLike, fmt.Errorf("the 'sarif' flag is invalid: %w", err)
	}
	if opts.SourceRoot == "" {
		return labels.JavaLike, fmt.Errorf("the 'source-root' flag must be specified together with 'sarif'")
	}
	if opts.Language == "" {
		opts.Language = cfg.Language()
	}
	if opts.Output == "" {
		opts.Output = pp.OutputPath(opts.SARIF)
	} else {
		output, _, err := files.DetermineFileFullPath(opts.Output, filepath.Base(pp.OutputPath(opts.SARIF)))
		if err != nil {
			return labels.JavaLike, fmt.Errorf("the 'output' flag is invalid: %w", err)
		}
		opts.Output = output
	}
	return labels.ParseEcosystem(opts.Language)
}

func runFileMode(args []string) error {
	eco, err := validateFileArgs(&fileOptions, args, AppConfig)
	if err != nil {
		logger.Error("invalid postprocess arguments", "error", err)
		return errors.NewCommandError(fileOptions, nil, fmt.Errorf("invalid postprocess arguments: %w", err), 1)
	}

	summary, err := pp.New(eco, fileOptions.SourceRoot, logger).ProcessFile(fileOptions.SARIF, fileOptions.Output)
	if err != nil {
		logger.Error("postprocess command failed", "error", err)
		return errors.NewCommandError(fileOptions, nil, fmt.Errorf("postprocess command failed: %w", err), 2)
	}

	result := shared.GenericLaunchesResult{Launches: []shared.GenericResult{{Args: fileOptions, Result: summary, Status: shared.StatusOK}}}
	if err := shared.PrintResultAsJSON(result); err != nil {
		logger.Error("error serializing JSON result", "error", err)
	}
	logger.Info("postprocess command completed successfully", "output", summary.Output)
	return nil
}

func init() {
	internalcmd.AddStageFlags(PostprocessCmd, &postprocessOptions)
	PostprocessCmd.Flags().StringVar(&fileOptions.SARIF, "sarif", "", "Path to a single SARIF report to filter instead of a run.")
	PostprocessCmd.Flags().StringVarP(&fileOptions.Output, "output", "o", "", "Path of the filtered report. Defaults to the input name with the -posthoc-filtered suffix.")
	PostprocessCmd.Flags().StringVar(&fileOptions.SourceRoot, "source-root", "", "Directory the report's artifact URIs are relative to.")
	PostprocessCmd.Flags().StringVar(&fileOptions.Language, "language", "", "Language of the analyzed sources (java, python, cpp).")
}
