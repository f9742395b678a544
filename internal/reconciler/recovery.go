package reconciler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/scan-io-git/taint-io/internal/dispatcher"
	"github.com/scan-io-git/taint-io/internal/labels"
	taintioErrors "github.com/scan-io-git/taint-io/pkg/shared/errors"
	"github.com/scan-io-git/taint-io/pkg/shared/files"
)

// ManifestFile lists the response logs of a directory that were already merged.
const ManifestFile = "reconciled.json"

type responseLog struct {
	start int
	path  string
}

func listResponseLogs(logDir string) ([]responseLog, error) {
	entries, err := os.ReadDir(logDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var logs []responseLog
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if start, ok := dispatcher.ParseResponseFileName(e.Name()); ok {
			logs = append(logs, responseLog{start: start, path: filepath.Join(logDir, e.Name())})
		}
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].start < logs[j].start })
	return logs, nil
}

func readManifest(logDir string) (map[string]string, error) {
	path := filepath.Join(logDir, ManifestFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	manifest := map[string]string{}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, &taintioErrors.CacheCorruptionError{Path: path, Err: err}
	}
	return manifest, nil
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// RecoverFromOrphanedLogs re-parses response logs in logDir that no earlier
// pass merged, in batch order. Logs recorded in the manifest with unchanged
// content are skipped. The result may repeat records; fold it with Buckets.Fold
// or hand it to MergeAndCache.
func (r *Reconciler) RecoverFromOrphanedLogs(logDir string) ([]labels.LabelRecord, error) {
	logs, err := listResponseLogs(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list response logs in %q: %w", logDir, err)
	}
	manifest, err := readManifest(logDir)
	if err != nil {
		return nil, err
	}

	var recovered []labels.LabelRecord
	replayed := 0
	for _, l := range logs {
		data, err := os.ReadFile(l.path)
		if err != nil {
			r.logger.Warn("cannot read response log", "path", l.path, "error", err)
			continue
		}
		if manifest[filepath.Base(l.path)] == digest(data) {
			continue
		}
		replayed++
		recovered = append(recovered, r.parseOne(l.start, string(data))...)
	}
	if replayed > 0 {
		r.logger.Info("recovered labels from orphaned response logs", "logs", replayed, "records", len(recovered))
	}
	return recovered, nil
}

// MarkReconciled records every response log currently in logDir as merged.
func MarkReconciled(logDir string) error {
	logs, err := listResponseLogs(logDir)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		return nil
	}
	manifest := make(map[string]string, len(logs))
	for _, l := range logs {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return err
		}
		manifest[filepath.Base(l.path)] = digest(data)
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return files.WriteFileAtomic(filepath.Join(logDir, ManifestFile), data)
}
