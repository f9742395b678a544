package version

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scan-io-git/taint-io/internal/queries"
	"github.com/scan-io-git/taint-io/pkg/shared/config"
)

var (
	AppConfig     *config.Config
	CoreVersion   = "unknown"
	GolangVersion = "unknown"
	BuildTime     = "unknown"
)

// Versions holds build information of the binary.
type Versions struct {
	Version       string `json:"version"`
	GolangVersion string `json:"golang_version"`
	BuildTime     string `json:"build_time"`
}

// CoreVersions adds what the binary was configured to drive.
type CoreVersions struct {
	Versions Versions `json:"versions"`
	Model    string   `json:"model"`
	Engine   string   `json:"engine"`
	Queries  []string `json:"queries"`
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// NewVersionCmd creates a new cobra.Command for the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "version",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Print the version number of the application and the available queries",
		Run: func(cmd *cobra.Command, args []string) {
			printVersionInfo(collect(AppConfig))
		},
	}
}

func collect(cfg *config.Config) *CoreVersions {
	v := &CoreVersions{
		Versions: Versions{
			Version:       CoreVersion,
			GolangVersion: GolangVersion,
			BuildTime:     BuildTime,
		},
		Model:   "unknown",
		Engine:  config.DefaultCodeQLBinary,
		Queries: queries.Names(),
	}
	if cfg != nil {
		v.Engine = cfg.CodeQLBinary()
		if cfg.LLM.Model != "" {
			v.Model = cfg.LLM.Model
		}
	}
	return v
}

// printVersionInfo prints the version information and the configured backends.
func printVersionInfo(versions *CoreVersions) {
	fmt.Printf("Core Version: v%s\n", versions.Versions.Version)
	fmt.Printf("Model: %s\n", versions.Model)
	fmt.Printf("Engine: %s\n", versions.Engine)
	fmt.Printf("Queries:\n  %s\n", strings.Join(versions.Queries, "\n  "))
	fmt.Printf("Go Version: %s\n", versions.Versions.GolangVersion)
	fmt.Printf("Build Time: %s\n", versions.Versions.BuildTime)
}
