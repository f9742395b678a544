package artifacts

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/taint-io/pkg/shared"
	"github.com/scan-io-git/taint-io/pkg/shared/files"
)

// GetArtifactName returns the artifact file name for a command run.
// Example: run_cwe-022wLLM_2025-09-15T08:28:46Z.taintio-artifact.
func GetArtifactName(command, query string, t time.Time) string {
	ts := t.UTC().Format(time.RFC3339)
	return fmt.Sprintf("%s_%s_%s.taintio-artifact", command, query, ts)
}

// SaveArtifactJSON writes the provided result to <dir>/<artifact name>.json and returns the full path.
func SaveArtifactJSON(dir string, logger hclog.Logger, command, query string, result shared.GenericLaunchesResult) (string, error) {
	path := filepath.Join(dir, GetArtifactName(command, query, time.Now())+".json")

	resultData, err := json.MarshalIndent(result, "", "    ")
	if err != nil {
		return path, fmt.Errorf("error marshaling the result data: %w", err)
	}
	if err := files.WriteJsonFile(path, resultData); err != nil {
		return path, fmt.Errorf("error writing result to artifact file: %w", err)
	}
	logger.Info("artifact saved to file", "path", path)
	return path, nil
}
