package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/scan-io-git/taint-io/cmd/collect"
	"github.com/scan-io-git/taint-io/cmd/compile"
	"github.com/scan-io-git/taint-io/cmd/label"
	"github.com/scan-io-git/taint-io/cmd/postprocess"
	"github.com/scan-io-git/taint-io/cmd/query"
	"github.com/scan-io-git/taint-io/cmd/run"
	"github.com/scan-io-git/taint-io/cmd/version"
	"github.com/scan-io-git/taint-io/pkg/shared/config"
	taintioErrors "github.com/scan-io-git/taint-io/pkg/shared/errors"
	"github.com/scan-io-git/taint-io/pkg/shared/logger"
)

var (
	cfgFile   string
	AppConfig *config.Config
	Logger    hclog.Logger
	rootCmd   = &cobra.Command{
		Use:                   "taintio [command]",
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		Short:                 "Taintio labels taint specifications with a language model and runs them through CodeQL.",
		Long: `Taintio collects the third-party APIs and entry-point functions of a project,
	asks a language model to label them as sources, sinks and taint propagators,
	compiles the labels into CodeQL predicates, runs the weakness query and filters the reported paths.
	`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config.yml)")
	rootCmd.AddCommand(version.NewVersionCmd())
	rootCmd.AddCommand(run.RunCmd)
	rootCmd.AddCommand(collect.CollectCmd)
	rootCmd.AddCommand(label.LabelCmd)
	rootCmd.AddCommand(compile.CompileCmd)
	rootCmd.AddCommand(query.QueryCmd)
	rootCmd.AddCommand(postprocess.PostprocessCmd)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var cmdErr *taintioErrors.CommandError
		if errors.As(err, &cmdErr) {
			fmt.Fprintf(os.Stderr, "Error executing command: %v\n", cmdErr)
			return cmdErr.ExitCode
		}
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		return 1
	}
	return 0
}

func initConfig() {
	var err error

	required := cfgFile != ""
	if cfgFile == "" {
		cfgFile = "config.yml"
	}
	AppConfig, err = config.LoadConfig(cfgFile, required)
	if err != nil {
		fmt.Printf("initializing config file function is crashed - %v \n", err)
		os.Exit(1)
	}
	if err := config.ValidateConfig(AppConfig); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	Logger = logger.NewLogger(AppConfig, "core")
	version.Init(AppConfig)
	run.Init(AppConfig, Logger.Named("run"))
	collect.Init(AppConfig, Logger.Named("collect"))
	label.Init(AppConfig, Logger.Named("label"))
	compile.Init(AppConfig, Logger.Named("compile"))
	query.Init(AppConfig, Logger.Named("query"))
	postprocess.Init(AppConfig, Logger.Named("postprocess"))
}
